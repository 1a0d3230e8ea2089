// Package core assembles the unit: raw levels in, conditioned vector through
// the vigilance timing system, commanded outputs through the feedback
// comparator, and the aggregated fault state out through the diagnostic
// serializer. All components share one master time base; Advance runs every
// due periodic task in timestamp order, and tasks due at the same instant run
// in the fixed pipeline order mask -> conditioner -> timing FSM -> feedback
// -> serializer, so no stage ever sees a half-updated upstream.
package core

import (
	"fmt"
	"time"

	"github.com/sweeney/vcu-core/internal/config"
	"github.com/sweeney/vcu-core/internal/diag"
	"github.com/sweeney/vcu-core/internal/feedback"
	"github.com/sweeney/vcu-core/internal/input"
	"github.com/sweeney/vcu-core/internal/signal"
	"github.com/sweeney/vcu-core/internal/vigilance"
)

// IO is the hardware boundary: raw input levels and driven output lines.
// Implementations must not block.
type IO interface {
	// ReadLevel returns the current raw level of an input pin.
	ReadLevel(pin int) signal.Level
	// DriveOutput drives an output pin. true = energized.
	DriveOutput(pin int, energized bool)
}

// EventType classifies a state change reported by Advance.
type EventType string

const (
	EventModeChange EventType = "MODE_CHANGE"
	EventVcutChange EventType = "VCUT_CHANGE"
	EventMinorFault EventType = "MINOR_FAULT"
	EventMajorFault EventType = "MAJOR_FAULT"
)

// Event is one observable state change, stamped on the master time base.
type Event struct {
	At   time.Duration
	Type EventType
	Mode vigilance.Mode
	Vcut vigilance.VcutState
}

// Core is the unit. It is not safe for concurrent use; one goroutine owns it
// and hands out value snapshots.
type Core struct {
	cfg config.Config

	io         IO
	cond       *input.Conditioner
	vig        *vigilance.System
	cmp        *feedback.Comparator
	serializer *diag.Serializer

	channelPins []int
	outputPins  []int
	fbPins      []int

	speed vigilance.SpeedCategory

	now       int64 // master clock, ns
	nextS1    int64
	nextS2    int64
	nextSync  int64
	syncTicks uint64

	prevMinor bool
	prevMajor bool

	events []Event
}

// New builds a core from the configuration. The serial waveform is emitted
// into sink; pass a diag.Recorder in tests.
func New(cfg config.Config, io IO, sink diag.Sink) (*Core, error) {
	channels := make([]input.Channel, len(cfg.Channels))
	pins := make([]int, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		g, err := parseGroup(ch.Group)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", ch.Name, err)
		}
		channels[i] = input.Channel{Name: ch.Name, Role: ch.Role, Group: g, Spare: ch.Spare}
		pins[i] = ch.Pin
	}

	cond, err := input.New(channels, cfg.Timing.Stage1Samples, cfg.Timing.Stage2Samples)
	if err != nil {
		return nil, err
	}

	outs := make([]feedback.Output, len(cfg.Outputs))
	outPins := make([]int, len(cfg.Outputs))
	fbPins := make([]int, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		outs[i] = feedback.Output{Name: o.Name, PenaltyBrake: o.PenaltyBrake}
		outPins[i] = o.Pin
		fbPins[i] = o.FeedbackPin
	}

	c := &Core{
		cfg:         cfg,
		io:          io,
		cond:        cond,
		cmp:         feedback.New(outs, cfg.Timing.SettleTicks),
		channelPins: pins,
		outputPins:  outPins,
		fbPins:      fbPins,
		nextS1:      cfg.Timing.Stage1PeriodNs,
		nextS2:      cfg.Timing.Stage2PeriodNs,
		nextSync:    cfg.Timing.SyncTickNs,
	}
	c.vig = vigilance.New(vigilance.Config{
		Loads: vigilance.TimerLoads{
			FirstWarning:  cfg.Timing.TimerLoads.FirstWarning,
			SecondWarning: cfg.Timing.TimerLoads.SecondWarning,
			TrainStopped:  cfg.Timing.TimerLoads.TrainStopped,
		},
		AckWindow: cfg.Timing.AckWindowTicks,
		ModeDelay: cfg.Timing.ModeDelayTicks,
	})
	c.serializer = diag.NewSerializer(diag.Timing{
		BitClockPeriod: cfg.Serial.BitClockPeriodNs,
		SyncWidth:      cfg.Serial.SyncWidthNs,
		PollingPeriod:  cfg.Serial.PollingPeriodNs,
	}, c.buildFrame, sink)

	c.driveOutputs()
	return c, nil
}

func parseGroup(s string) (input.Group, error) {
	switch s {
	case "ch1":
		return input.GroupCh1, nil
	case "ch2":
		return input.GroupCh2, nil
	case "single":
		return input.GroupSingle, nil
	}
	return input.GroupSingle, fmt.Errorf("unknown group %q", s)
}

// SetSpeed supplies the externally decoded speed category.
func (c *Core) SetSpeed(cat vigilance.SpeedCategory) {
	c.speed = cat
}

// Now returns the master clock position.
func (c *Core) Now() time.Duration {
	return time.Duration(c.now)
}

// SyncTicks returns the total number of synchronization ticks processed.
func (c *Core) SyncTicks() uint64 {
	return c.syncTicks
}

// Advance moves the master clock forward by d, running every due periodic
// task, and returns the state-change events that occurred.
func (c *Core) Advance(d time.Duration) []Event {
	target := c.now + d.Nanoseconds()
	c.events = c.events[:0]

	for {
		t := c.nextS1
		if c.nextS2 < t {
			t = c.nextS2
		}
		if c.nextSync < t {
			t = c.nextSync
		}
		if t > target {
			break
		}

		// Emit the waveform up to the task instant before any state
		// changes: a frame built at t reflects the state established by
		// the previous tick boundary.
		c.serializer.Advance(t)
		c.now = t

		// Pipeline order within one instant.
		if c.nextS1 == t {
			c.sampleStage1()
			c.nextS1 += c.cfg.Timing.Stage1PeriodNs
		}
		if c.nextS2 == t {
			c.cond.SampleStage2()
			c.nextS2 += c.cfg.Timing.Stage2PeriodNs
		}
		if c.nextSync == t {
			c.syncTick()
			c.nextSync += c.cfg.Timing.SyncTickNs
		}
	}

	c.serializer.Advance(target)
	c.now = target
	return c.events
}

func (c *Core) sampleStage1() {
	for i, pin := range c.channelPins {
		c.cond.SetRaw(i, c.io.ReadLevel(pin))
	}
	c.cond.SampleStage1()
}

// syncTick runs one 500us pipeline pass: conditioned vector -> timing FSM ->
// commanded outputs -> feedback compare -> driven outputs.
func (c *Core) syncTick() {
	c.syncTicks++

	prevMode := c.vig.Mode()
	prevVcut := c.vig.Vcut()

	in := vigilance.Inputs{
		Vigilance:   c.cond.Output(config.RoleVigilance),
		ZeroSpeed:   c.cond.Output(config.RoleZeroSpeed),
		Driverless:  c.cond.Output(config.RoleDriverless),
		Suppression: c.cond.Output(config.RoleSuppression),
		TestWindow:  c.cond.Output(config.RoleTestMode),
		Speed:       c.speed,
		MajorFault:  c.cmp.MajorFault(),
	}
	c.cond.SetBlanking(in.TestWindow)
	c.vig.Tick(in)

	// Commanded levels follow the FSM; the warning lamp is energized during
	// the warning states.
	warning := c.vig.Vcut() == vigilance.VcutFirstWarning || c.vig.Vcut() == vigilance.VcutSecondWarning
	for i, o := range c.cfg.Outputs {
		if o.PenaltyBrake {
			c.cmp.Command(i, c.vig.BrakeEnergized())
		} else {
			c.cmp.Command(i, warning)
		}
	}

	fb := make([]bool, len(c.fbPins))
	for i, pin := range c.fbPins {
		fb[i] = c.io.ReadLevel(pin) == signal.Asserted
	}
	c.cmp.Tick(fb)

	c.driveOutputs()
	c.recordEvents(prevMode, prevVcut)
}

func (c *Core) driveOutputs() {
	for i, pin := range c.outputPins {
		c.io.DriveOutput(pin, c.cmp.DrivenLevel(i))
	}
}

func (c *Core) recordEvents(prevMode vigilance.Mode, prevVcut vigilance.VcutState) {
	at := time.Duration(c.now)
	mode, vcut := c.vig.Mode(), c.vig.Vcut()
	if mode != prevMode {
		c.events = append(c.events, Event{At: at, Type: EventModeChange, Mode: mode, Vcut: vcut})
	}
	if vcut != prevVcut {
		c.events = append(c.events, Event{At: at, Type: EventVcutChange, Mode: mode, Vcut: vcut})
	}

	minor, major := c.FaultSummary()
	if minor && !c.prevMinor {
		c.events = append(c.events, Event{At: at, Type: EventMinorFault, Mode: mode, Vcut: vcut})
	}
	if major && !c.prevMajor {
		c.events = append(c.events, Event{At: at, Type: EventMajorFault, Mode: mode, Vcut: vcut})
	}
	c.prevMinor = minor
	c.prevMajor = major
}

// Reset re-initializes every component synchronously. The serial waveform
// keeps running; frames built after the reset report the cleared state.
// Resetting twice is indistinguishable from resetting once.
func (c *Core) Reset() {
	c.cond.Reset()
	c.vig.Reset()
	c.cmp.Reset()
	c.speed = vigilance.SpeedZero
	c.prevMinor = false
	c.prevMajor = false
	c.driveOutputs()
}
