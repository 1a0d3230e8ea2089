// Package config defines the unit configuration: the channel table, timing
// constants, monitored outputs, and the diagnostic frame bit layout. Built-in
// defaults describe the standard VCU fit; a YAML file overlays them.
package config

import (
	"os"

	"github.com/pkg/errors"
	"github.com/tiendc/go-deepcopy"
	"gopkg.in/yaml.v3"
)

// FrameBits is the fixed width of the diagnostic frame.
const FrameBits = 128

// Channel describes one logical input line.
type Channel struct {
	Name     string `yaml:"name"`
	Role     string `yaml:"role"`
	Group    string `yaml:"group"` // "ch1", "ch2" or "single"
	Spare    bool   `yaml:"spare"`
	Pin      int    `yaml:"pin"`
	FaultBit int    `yaml:"fault_bit"` // diagnostic frame position, -1 = unmapped
}

// Output describes one monitored driven output.
type Output struct {
	Name         string `yaml:"name"`
	Pin          int    `yaml:"pin"`
	FeedbackPin  int    `yaml:"feedback_pin"`
	PenaltyBrake bool   `yaml:"penalty_brake"`
	FaultBit     int    `yaml:"fault_bit"` // compare-fault frame position, -1 = unmapped
}

// Timing holds the sampling and timer constants. All periods are nanoseconds,
// all loads are tick counts in the domain named by the field.
type Timing struct {
	Stage1PeriodNs int64      `yaml:"stage1_period_ns"`
	Stage1Samples  int        `yaml:"stage1_samples"`
	Stage2PeriodNs int64      `yaml:"stage2_period_ns"`
	Stage2Samples  int        `yaml:"stage2_samples"`
	SyncTickNs     int64      `yaml:"sync_tick_ns"` // vigilance timer tick, 500us
	SettleTicks    int        `yaml:"settle_ticks"` // feedback settle, in sync ticks
	AckWindowTicks uint32     `yaml:"ack_window_ticks"`
	ModeDelayTicks uint32     `yaml:"mode_delay_ticks"`
	TimerLoads     TimerLoads `yaml:"timer_loads"`
}

// TimerLoads holds the state-tagged reload constants for the shared vigilance
// countdown, in 500us sync ticks.
type TimerLoads struct {
	FirstWarning  uint32 `yaml:"first_warning"`
	SecondWarning uint32 `yaml:"second_warning"`
	TrainStopped  uint32 `yaml:"train_stopped"`
}

// Serial holds the diagnostic serializer timing.
type Serial struct {
	BitClockPeriodNs int64 `yaml:"bit_clock_period_ns"`
	SyncWidthNs      int64 `yaml:"sync_width_ns"`
	PollingPeriodNs  int64 `yaml:"polling_period_ns"`
	SyncPin          int   `yaml:"sync_pin"`
	ClockPin         int   `yaml:"clock_pin"`
	DataPin          int   `yaml:"data_pin"`
}

// FrameLayout maps the aggregate status fields to frame bit positions.
// Positions not named here, and not claimed by a channel or output fault bit,
// stay at 0 in every frame.
type FrameLayout struct {
	OperatingMode int `yaml:"operating_mode"` // 3 bits wide
	VcutState     int `yaml:"vcut_state"`     // 3 bits wide
	Ch1Fault      int `yaml:"ch1_fault"`
	Ch2Fault      int `yaml:"ch2_fault"`
	MinorFault    int `yaml:"minor_fault"`
	MajorFault    int `yaml:"major_fault"`
}

// Config is the root unit configuration.
type Config struct {
	Timing   Timing      `yaml:"timing"`
	Serial   Serial      `yaml:"serial"`
	Frame    FrameLayout `yaml:"frame"`
	Channels []Channel   `yaml:"channels"`
	Outputs  []Output    `yaml:"outputs"`
}

// Known role names. Paired roles carry one channel per group; the rest are
// single-channel (latched) roles.
const (
	RoleVigilance     = "vigilance"
	RoleZeroSpeed     = "zero_speed"
	RoleCabActive     = "cab_active"
	RoleDriverless    = "driverless"
	RoleSuppression   = "suppression"
	RoleTestMode      = "test_mode"
	RoleForceFaultCh1 = "force_fault_ch1"
	RoleForceFaultCh2 = "force_fault_ch2"
	RoleSpare         = "spare"
)

var defaultConfig = Config{
	Timing: Timing{
		Stage1PeriodNs: 15_625,
		Stage1Samples:  4,
		Stage2PeriodNs: 100_000,
		Stage2Samples:  10_000,
		SyncTickNs:     500_000,
		SettleTicks:    256, // 128ms
		// Each conditioned edge lags the raw press by the full stage-2
		// debounce time (1s), so the dual-pulse window must span two
		// debounced edges plus the release between them.
		AckWindowTicks: 12_000, // 6s
		ModeDelayTicks: 1,
		TimerLoads: TimerLoads{
			FirstWarning:  90_000, // 45s
			SecondWarning: 90_000,
			TrainStopped:  90_000,
		},
	},
	Serial: Serial{
		BitClockPeriodNs: 20_480, // 48.83kHz nominal, within 0.2%
		SyncWidthNs:      20_500,
		PollingPeriodNs:  100_000_000,
		SyncPin:          5,
		ClockPin:         6,
		DataPin:          7,
	},
	Frame: FrameLayout{
		OperatingMode: 1,
		VcutState:     4,
		Ch1Fault:      8,
		Ch2Fault:      9,
		MinorFault:    10,
		MajorFault:    11,
	},
	Channels: []Channel{
		{Name: "vigilance_1", Role: RoleVigilance, Group: "ch1", Pin: 10, FaultBit: 16},
		{Name: "vigilance_2", Role: RoleVigilance, Group: "ch2", Pin: 11, FaultBit: 17},
		{Name: "zero_speed_1", Role: RoleZeroSpeed, Group: "ch1", Pin: 12, FaultBit: 18},
		{Name: "zero_speed_2", Role: RoleZeroSpeed, Group: "ch2", Pin: 13, FaultBit: 19},
		{Name: "cab_active_1", Role: RoleCabActive, Group: "ch1", Pin: 14, FaultBit: 20},
		{Name: "cab_active_2", Role: RoleCabActive, Group: "ch2", Pin: 15, FaultBit: 21},
		{Name: "driverless", Role: RoleDriverless, Group: "single", Pin: 16, FaultBit: -1},
		{Name: "suppression", Role: RoleSuppression, Group: "single", Pin: 17, FaultBit: -1},
		{Name: "test_mode", Role: RoleTestMode, Group: "single", Pin: 18, FaultBit: -1},
		{Name: "force_fault_ch1", Role: RoleForceFaultCh1, Group: "single", Pin: 19, FaultBit: -1},
		{Name: "force_fault_ch2", Role: RoleForceFaultCh2, Group: "single", Pin: 20, FaultBit: -1},
		{Name: "spare_1", Role: RoleSpare, Group: "ch1", Spare: true, Pin: 21, FaultBit: 22},
		{Name: "spare_2", Role: RoleSpare, Group: "ch2", Spare: true, Pin: 22, FaultBit: 23},
	},
	Outputs: []Output{
		{Name: "penalty_brake_1", Pin: 30, FeedbackPin: 40, PenaltyBrake: true, FaultBit: 32},
		{Name: "penalty_brake_2", Pin: 31, FeedbackPin: 41, PenaltyBrake: true, FaultBit: 33},
		{Name: "warning_lamp", Pin: 32, FeedbackPin: 42, FaultBit: 34},
	},
}

// Default returns a deep copy of the built-in configuration. Callers may
// mutate the result freely without affecting later calls.
func Default() Config {
	var cfg Config
	if err := deepcopy.Copy(&cfg, &defaultConfig); err != nil {
		// The default table is copyable by construction.
		panic(err)
	}
	return cfg
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrap(err, "parse config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks structural invariants: positive periods, paired roles with
// exactly one channel per group, and non-colliding frame bit positions.
func (c *Config) Validate() error {
	if c.Timing.Stage1PeriodNs <= 0 || c.Timing.Stage2PeriodNs <= 0 || c.Timing.SyncTickNs <= 0 {
		return errors.New("config: sampling periods must be positive")
	}
	if c.Timing.Stage1Samples < 1 || c.Timing.Stage2Samples < 1 {
		return errors.New("config: sample counts must be at least 1")
	}
	if c.Timing.SettleTicks < 1 {
		return errors.New("config: settle_ticks must be at least 1")
	}
	if c.Serial.BitClockPeriodNs <= 0 || c.Serial.SyncWidthNs <= 0 || c.Serial.PollingPeriodNs <= 0 {
		return errors.New("config: serial periods must be positive")
	}
	if c.Serial.PollingPeriodNs < c.Serial.BitClockPeriodNs*FrameBits {
		return errors.New("config: polling period shorter than one frame")
	}

	// Two conditioned rising edges are at least two stage-2 debounce times
	// apart (press plus release), so a shorter acknowledge window can never
	// pair them.
	stage2Ticks := c.Timing.Stage2PeriodNs * int64(c.Timing.Stage2Samples) / c.Timing.SyncTickNs
	if int64(c.Timing.AckWindowTicks) <= 2*stage2Ticks {
		return errors.Errorf("config: ack_window_ticks %d cannot span a dual pulse (stage-2 debounce is %d sync ticks)",
			c.Timing.AckWindowTicks, stage2Ticks)
	}

	used := map[int]string{}
	claim := func(bit int, owner string) error {
		if bit < 0 {
			return nil
		}
		if bit >= FrameBits {
			return errors.Errorf("config: %s: frame bit %d out of range", owner, bit)
		}
		if prev, ok := used[bit]; ok {
			return errors.Errorf("config: frame bit %d claimed by both %s and %s", bit, prev, owner)
		}
		used[bit] = owner
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := claim(c.Frame.OperatingMode+i, "operating_mode"); err != nil {
			return err
		}
		if err := claim(c.Frame.VcutState+i, "vcut_state"); err != nil {
			return err
		}
	}
	for _, pair := range []struct {
		bit  int
		name string
	}{
		{c.Frame.Ch1Fault, "ch1_fault"},
		{c.Frame.Ch2Fault, "ch2_fault"},
		{c.Frame.MinorFault, "minor_fault"},
		{c.Frame.MajorFault, "major_fault"},
	} {
		if err := claim(pair.bit, pair.name); err != nil {
			return err
		}
	}

	groups := map[string]map[string]int{}
	names := map[string]bool{}
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return errors.New("config: channel with empty name")
		}
		if names[ch.Name] {
			return errors.Errorf("config: duplicate channel %q", ch.Name)
		}
		names[ch.Name] = true
		switch ch.Group {
		case "ch1", "ch2", "single":
		default:
			return errors.Errorf("config: channel %q: unknown group %q", ch.Name, ch.Group)
		}
		if err := claim(ch.FaultBit, ch.Name); err != nil {
			return err
		}
		if ch.Role != RoleSpare {
			if groups[ch.Role] == nil {
				groups[ch.Role] = map[string]int{}
			}
			groups[ch.Role][ch.Group]++
		}
	}

	for _, role := range []string{RoleVigilance, RoleZeroSpeed} {
		g := groups[role]
		if g["ch1"] != 1 || g["ch2"] != 1 {
			return errors.Errorf("config: role %q needs exactly one ch1 and one ch2 channel", role)
		}
	}
	for _, role := range []string{RoleForceFaultCh1, RoleForceFaultCh2} {
		if groups[role]["single"] != 1 {
			return errors.Errorf("config: role %q needs exactly one single channel", role)
		}
	}

	for _, out := range c.Outputs {
		if out.Name == "" {
			return errors.New("config: output with empty name")
		}
		if err := claim(out.FaultBit, out.Name); err != nil {
			return err
		}
	}

	return nil
}
