package core

import (
	"testing"
	"time"

	"github.com/sweeney/vcu-core/internal/config"
	"github.com/sweeney/vcu-core/internal/diag"
	"github.com/sweeney/vcu-core/internal/gpio"
	"github.com/sweeney/vcu-core/internal/signal"
	"github.com/sweeney/vcu-core/internal/vigilance"
)

// testConfig shrinks the timing constants so scenarios run in microseconds
// of simulated time instead of minutes.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Timing.Stage1PeriodNs = 1_000
	cfg.Timing.Stage1Samples = 2
	cfg.Timing.Stage2PeriodNs = 2_000
	cfg.Timing.Stage2Samples = 3
	cfg.Timing.SyncTickNs = 10_000
	cfg.Timing.SettleTicks = 4
	cfg.Timing.AckWindowTicks = 100
	cfg.Timing.ModeDelayTicks = 1
	cfg.Timing.TimerLoads = config.TimerLoads{FirstWarning: 20, SecondWarning: 20, TrainStopped: 20}
	return cfg
}

// rig drives a Core through fake lines. Feedback pins mirror their output's
// driven level on every tick, except pins a test has stuck at a fixed level.
type rig struct {
	t     *testing.T
	cfg   config.Config
	core  *Core
	lines *gpio.FakeLines
	rec   *diag.Recorder

	stuckFb map[int]signal.Level
	events  []Event
}

func newRig(t *testing.T) *rig {
	return newRigFor(t, testConfig())
}

func newRigFor(t *testing.T, cfg config.Config) *rig {
	t.Helper()
	lines := gpio.NewFakeLines()
	rec := diag.NewRecorder()
	c, err := New(cfg, lines, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &rig{
		t:       t,
		cfg:     cfg,
		core:    c,
		lines:   lines,
		rec:     rec,
		stuckFb: make(map[int]signal.Level),
	}
}

func (r *rig) pin(channel string) int {
	for _, ch := range r.cfg.Channels {
		if ch.Name == channel {
			return ch.Pin
		}
	}
	r.t.Fatalf("unknown channel %q", channel)
	return 0
}

func (r *rig) output(name string) config.Output {
	for _, o := range r.cfg.Outputs {
		if o.Name == name {
			return o
		}
	}
	r.t.Fatalf("unknown output %q", name)
	return config.Output{}
}

func (r *rig) set(channel string, level signal.Level) {
	r.lines.SetLevel(r.pin(channel), level)
}

// stick pins an output's feedback at a fixed level, simulating a failed
// driver stage or a shorted readback line.
func (r *rig) stick(outputName string, level signal.Level) {
	r.stuckFb[r.output(outputName).FeedbackPin] = level
}

// advance moves simulated time forward one sync tick at a time, refreshing
// the feedback pins before each step.
func (r *rig) advance(d time.Duration) {
	tick := time.Duration(r.cfg.Timing.SyncTickNs)
	for d > 0 {
		step := tick
		if d < step {
			step = d
		}
		for _, o := range r.cfg.Outputs {
			if level, ok := r.stuckFb[o.FeedbackPin]; ok {
				r.lines.SetLevel(o.FeedbackPin, level)
			} else {
				r.lines.SetLevel(o.FeedbackPin, signal.FromBool(r.lines.DrivenLevel(o.Pin)))
			}
		}
		r.events = append(r.events, r.core.Advance(step)...)
		d -= step
	}
}

// pulse drives both vigilance channels through one debounced pulse.
func (r *rig) pulse() {
	r.set("vigilance_1", signal.Asserted)
	r.set("vigilance_2", signal.Asserted)
	r.advance(50 * time.Microsecond)
	r.set("vigilance_1", signal.Deasserted)
	r.set("vigilance_2", signal.Deasserted)
	r.advance(50 * time.Microsecond)
}

// timeout is one shortened timer load plus slack for edge propagation.
func (r *rig) timeout() time.Duration {
	load := time.Duration(r.cfg.Timing.TimerLoads.FirstWarning)
	return (load + 5) * time.Duration(r.cfg.Timing.SyncTickNs)
}

func (r *rig) vcutEvents() []vigilance.VcutState {
	var out []vigilance.VcutState
	for _, e := range r.events {
		if e.Type == EventVcutChange {
			out = append(out, e.Vcut)
		}
	}
	return out
}

func TestInitialSnapshot(t *testing.T) {
	r := newRig(t)
	r.advance(time.Millisecond)

	snap := r.core.Snapshot()
	if snap.Mode != vigilance.ModeNormal || snap.Vcut != vigilance.VcutNormal {
		t.Errorf("expected NORMAL/NORMAL, got %s/%s", snap.Mode, snap.Vcut)
	}
	if snap.MinorFault || snap.MajorFault {
		t.Error("fresh unit should report no faults")
	}
	if !snap.BrakeEnergized {
		t.Error("brakes should be energized at rest")
	}
	for _, o := range snap.Outputs {
		if o.PenaltyBrake && !o.Energized {
			t.Errorf("%s should be driven energized at rest", o.Name)
		}
	}
}

func TestVigilanceEscalationScenario(t *testing.T) {
	r := newRig(t)

	// Zero speed held on both channels throughout.
	r.set("zero_speed_1", signal.Asserted)
	r.set("zero_speed_2", signal.Asserted)
	r.advance(time.Millisecond)

	// Qualifying dual pulse.
	r.pulse()
	r.pulse()
	if got := r.core.Snapshot().Vcut; got != vigilance.VcutFirstWarning {
		t.Fatalf("expected FIRST_WARNING after dual pulse, got %s", got)
	}

	// Two chained timeouts. Zero speed is already held, so BRAKE_NO_RESET
	// hands over to TRAIN_STOPPED_NO_RESET on the following tick.
	r.advance(r.timeout())
	r.advance(r.timeout())

	states := r.vcutEvents()
	if !containsState(states, vigilance.VcutSecondWarning) ||
		!containsState(states, vigilance.VcutBrakeNoReset) ||
		!containsState(states, vigilance.VcutTrainStoppedNoReset) {
		t.Fatalf("escalation path incomplete: %v", states)
	}

	snap := r.core.Snapshot()
	if snap.Vcut != vigilance.VcutTrainStoppedNoReset {
		t.Fatalf("expected TRAIN_STOPPED_NO_RESET, got %s", snap.Vcut)
	}
	if snap.BrakeEnergized {
		t.Error("penalty brakes must be applied")
	}
	for _, name := range []string{"penalty_brake_1", "penalty_brake_2"} {
		if r.lines.DrivenLevel(r.output(name).Pin) {
			t.Errorf("%s pin should be driven de-energized", name)
		}
	}

	// Third timeout releases.
	r.advance(r.timeout())
	snap = r.core.Snapshot()
	if snap.Vcut != vigilance.VcutNormal {
		t.Errorf("expected NORMAL after the third timeout, got %s", snap.Vcut)
	}
	if !snap.BrakeEnergized {
		t.Error("brakes should release on return to NORMAL")
	}
	if snap.MinorFault || snap.MajorFault {
		t.Error("a completed escalation cycle is not a fault")
	}
}

// TestDualPulseQualifiesUnderDefaultTiming runs the production constants
// end to end. Stage-2 conditioning delays each edge by a full second, so the
// two conditioned rising edges of a realistic press/release/press sequence
// arrive about 2.4s apart; the default acknowledge window must pair them.
func TestDualPulseQualifiesUnderDefaultTiming(t *testing.T) {
	r := newRigFor(t, config.Default())

	hold := 1200 * time.Millisecond
	for i := 0; i < 2; i++ {
		r.set("vigilance_1", signal.Asserted)
		r.set("vigilance_2", signal.Asserted)
		r.advance(hold)
		r.set("vigilance_1", signal.Deasserted)
		r.set("vigilance_2", signal.Deasserted)
		r.advance(hold)
	}

	if got := r.core.Snapshot().Vcut; got != vigilance.VcutFirstWarning {
		t.Fatalf("expected FIRST_WARNING under default timing, got %s", got)
	}
	snap := r.core.Snapshot()
	if snap.MinorFault || snap.MajorFault {
		t.Error("a qualifying dual pulse must not raise faults")
	}
}

func TestAcknowledgeReturnsToNormal(t *testing.T) {
	r := newRig(t)
	r.advance(time.Millisecond)
	r.pulse()
	r.pulse()
	if got := r.core.Snapshot().Vcut; got != vigilance.VcutFirstWarning {
		t.Fatalf("setup: expected FIRST_WARNING, got %s", got)
	}

	// Let the pairing window lapse, then a single pulse acknowledges.
	window := time.Duration(r.cfg.Timing.AckWindowTicks) * time.Duration(r.cfg.Timing.SyncTickNs)
	r.advance(window + 50*time.Microsecond)
	r.pulse()

	snap := r.core.Snapshot()
	if snap.Vcut != vigilance.VcutNormal {
		t.Errorf("expected NORMAL after acknowledge, got %s", snap.Vcut)
	}
	if !snap.BrakeEnergized {
		t.Error("brakes should stay energized across an acknowledged warning")
	}
}

func TestSelfTestFaultMasksGroup(t *testing.T) {
	r := newRig(t)

	r.set("force_fault_ch1", signal.Asserted)
	// Longer than the stage-2 debounce time.
	r.advance(time.Millisecond)

	snap := r.core.Snapshot()
	if !snap.Ch1Masked || snap.Ch2Masked {
		t.Fatalf("expected CH1 masked only, got ch1=%v ch2=%v", snap.Ch1Masked, snap.Ch2Masked)
	}
	for _, ch := range snap.Channels {
		want := ch.Group == "CH1" && !ch.Spare
		if ch.Fault != want {
			t.Errorf("channel %s: fault=%v, want %v", ch.Name, ch.Fault, want)
		}
	}
	if !snap.MinorFault {
		t.Error("a masked group is a minor fault")
	}
	if snap.MajorFault {
		t.Error("a masked group alone is not a major fault")
	}

	// Frame bits follow.
	if !snap.Frame.Bit(r.cfg.Frame.Ch1Fault) {
		t.Error("CH1 fault frame bit should be set")
	}
	if snap.Frame.Bit(r.cfg.Frame.Ch2Fault) {
		t.Error("CH2 fault frame bit should be clear")
	}
	if !snap.Frame.Bit(r.cfg.Frame.MinorFault) {
		t.Error("minor fault frame bit should be set")
	}
}

func TestMaskedGroupFallsBackToHealthyChannel(t *testing.T) {
	r := newRig(t)
	r.set("force_fault_ch1", signal.Asserted)
	r.advance(time.Millisecond)

	// Only the CH2 vigilance channel asserts; with CH1 masked the pair
	// degrades to the healthy channel, so pulses still qualify.
	for i := 0; i < 2; i++ {
		r.set("vigilance_2", signal.Asserted)
		r.advance(50 * time.Microsecond)
		r.set("vigilance_2", signal.Deasserted)
		r.advance(50 * time.Microsecond)
	}

	if got := r.core.Snapshot().Vcut; got != vigilance.VcutFirstWarning {
		t.Errorf("expected FIRST_WARNING via the healthy channel, got %s", got)
	}
}

func TestLampCompareFaultIsMinorOnly(t *testing.T) {
	r := newRig(t)
	r.stick("warning_lamp", signal.Deasserted)
	r.advance(time.Millisecond)

	// Entering FIRST_WARNING commands the lamp energized. Its feedback is
	// stuck low, so the compare at settle expiry latches a fault.
	r.pulse()
	r.pulse()
	settle := time.Duration(r.cfg.Timing.SettleTicks) * time.Duration(r.cfg.Timing.SyncTickNs)
	r.advance(settle + 50*time.Microsecond)

	snap := r.core.Snapshot()
	if !snap.MinorFault {
		t.Error("lamp compare fault should raise the minor report")
	}
	if snap.MajorFault {
		t.Error("lamp compare fault must not raise the major report")
	}
	lamp := r.output("warning_lamp")
	if !snap.Frame.Bit(lamp.FaultBit) {
		t.Error("lamp compare-fault frame bit should be set")
	}
	for _, o := range snap.Outputs {
		if o.Name == lamp.Name && !o.Fault {
			t.Error("lamp should report a latched compare fault")
		}
	}
}

func TestPenaltyBrakeCompareFaultForcesMajorAndSafe(t *testing.T) {
	r := newRig(t)
	r.stick("penalty_brake_1", signal.Asserted)
	r.advance(time.Millisecond)

	// Escalate to BRAKE_NO_RESET so the brakes are commanded de-energized.
	// Brake 1's feedback is stuck energized, so the compare fails.
	r.pulse()
	r.pulse()
	r.advance(r.timeout())
	r.advance(r.timeout())
	settle := time.Duration(r.cfg.Timing.SettleTicks) * time.Duration(r.cfg.Timing.SyncTickNs)
	r.advance(settle + 50*time.Microsecond)

	snap := r.core.Snapshot()
	if !snap.MajorFault {
		t.Fatal("penalty-brake compare fault must raise the major report")
	}
	if snap.Mode != vigilance.ModeMajorFault {
		t.Errorf("expected MAJOR_FAULT mode, got %s", snap.Mode)
	}
	brake := r.output("penalty_brake_1")
	if r.lines.DrivenLevel(brake.Pin) {
		t.Error("faulted penalty brake must be driven de-energized")
	}
	if !snap.Frame.Bit(r.cfg.Frame.MajorFault) {
		t.Error("major fault frame bit should be set")
	}
	if !snap.Frame.Bit(brake.FaultBit) {
		t.Error("brake compare-fault frame bit should be set")
	}
}

func TestFrameCarriesVcutField(t *testing.T) {
	r := newRig(t)
	r.advance(time.Millisecond)
	r.pulse()
	r.pulse()

	snap := r.core.Snapshot()
	if snap.Vcut != vigilance.VcutFirstWarning {
		t.Fatalf("setup: expected FIRST_WARNING, got %s", snap.Vcut)
	}
	// FIRST_WARNING encodes as 1 in the 3-bit field.
	base := r.cfg.Frame.VcutState
	if !snap.Frame.Bit(base) || snap.Frame.Bit(base+1) || snap.Frame.Bit(base+2) {
		t.Error("vcut field should encode FIRST_WARNING")
	}
}

func TestSerialWaveformRuns(t *testing.T) {
	r := newRig(t)
	// One full frame: 128 bits at the configured bit clock.
	frameTime := time.Duration(config.FrameBits * r.cfg.Serial.BitClockPeriodNs)
	r.advance(frameTime + time.Millisecond)

	var clockFalls int
	for _, e := range r.rec.Edges(diag.LineClock) {
		if !e.Level {
			clockFalls++
		}
	}
	if clockFalls < config.FrameBits-1 {
		t.Errorf("expected at least %d falling clock edges, got %d", config.FrameBits-1, clockFalls)
	}
	sync := r.rec.Edges(diag.LineSync)
	if len(sync) < 2 {
		t.Fatalf("expected a sync strobe, got %d edges", len(sync))
	}
	if width := sync[1].At - sync[0].At; width != r.cfg.Serial.SyncWidthNs {
		t.Errorf("sync strobe width = %dns, want %dns", width, r.cfg.Serial.SyncWidthNs)
	}
}

func TestResetIdempotent(t *testing.T) {
	r := newRig(t)
	r.set("force_fault_ch1", signal.Asserted)
	r.advance(time.Millisecond)
	r.pulse()
	r.pulse()

	r.core.Reset()
	once := r.core.Snapshot()
	r.core.Reset()
	twice := r.core.Snapshot()

	if once.Mode != twice.Mode || once.Vcut != twice.Vcut ||
		once.MinorFault != twice.MinorFault || once.MajorFault != twice.MajorFault ||
		once.Frame != twice.Frame {
		t.Error("resetting twice must equal resetting once")
	}
	if once.Vcut != vigilance.VcutNormal || once.MinorFault {
		t.Error("reset should clear state and faults")
	}
}

func TestEventsEmittedOnTransitions(t *testing.T) {
	r := newRig(t)
	r.advance(time.Millisecond)
	r.pulse()
	r.pulse()

	found := false
	for _, e := range r.events {
		if e.Type == EventVcutChange && e.Vcut == vigilance.VcutFirstWarning {
			found = true
		}
	}
	if !found {
		t.Error("expected a VCUT_CHANGE event for FIRST_WARNING entry")
	}
}

func containsState(states []vigilance.VcutState, want vigilance.VcutState) bool {
	for _, s := range states {
		if s == want {
			return true
		}
	}
	return false
}
