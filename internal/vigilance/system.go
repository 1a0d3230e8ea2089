package vigilance

// System is the vigilance timing core. Tick is invoked once per 500us
// synchronization pulse with the conditioned input vector; everything else
// reads the resulting state between ticks.
type System struct {
	cfg Config

	mode Mode
	vcut VcutState

	// Single shared countdown. Only one countdown is ever active; re-arm is
	// a state-tagged reload of this one counter.
	timer      uint32
	timerArmed bool
	timerInit  bool // true only on the tick a reload occurred

	majorLatched bool

	prevVigilance bool
	pulseCount    int
	windowLeft    uint32

	driverlessSeen  bool
	driverlessDelay uint32

	brakeEnergized bool
}

// New creates a system in NORMAL/NORMAL with brakes energized (released).
func New(cfg Config) *System {
	s := &System{cfg: cfg}
	s.Reset()
	return s
}

// Reset re-initializes the state machine synchronously. Resetting twice is
// indistinguishable from resetting once.
func (s *System) Reset() {
	s.mode = ModeNormal
	s.vcut = VcutNormal
	s.timer = 0
	s.timerArmed = false
	s.timerInit = false
	s.majorLatched = false
	s.prevVigilance = false
	s.pulseCount = 0
	s.windowLeft = 0
	s.driverlessSeen = false
	s.driverlessDelay = 0
	s.brakeEnergized = true
}

// Tick advances the state machine by one synchronization tick.
func (s *System) Tick(in Inputs) {
	s.timerInit = false

	if in.MajorFault {
		s.majorLatched = true
	}

	// Countdown first: an expiry is an event of this tick.
	expired := false
	if s.timerArmed {
		if s.timer > 0 {
			s.timer--
		}
		if s.timer == 0 {
			s.timerArmed = false
			expired = true
		}
	}

	// Acknowledge edge and dual-pulse pattern detection.
	rising := in.Vigilance && !s.prevVigilance
	s.prevVigilance = in.Vigilance

	if s.windowLeft > 0 {
		s.windowLeft--
		if s.windowLeft == 0 {
			s.pulseCount = 0
		}
	}
	dualPulse := false
	if rising {
		if s.windowLeft == 0 {
			s.windowLeft = s.cfg.AckWindow
			s.pulseCount = 1
		} else {
			s.pulseCount++
			if s.pulseCount >= 2 {
				dualPulse = true
				s.windowLeft = 0
				s.pulseCount = 0
			}
		}
	}

	s.stepVcut(in, rising, dualPulse, expired)
	s.stepMode(in)

	// Penalty brakes: applied (de-energized) in the no-reset states unless
	// the operating mode inhibits application; a latched major fault forces
	// the safe level no matter what.
	inhibited := s.mode == ModeDepressed || s.mode == ModeSuppressed
	braking := s.vcut == VcutBrakeNoReset || s.vcut == VcutTrainStoppedNoReset
	s.brakeEnergized = !(braking && !inhibited) && !s.majorLatched
}

func (s *System) stepVcut(in Inputs, rising, dualPulse, expired bool) {
	switch s.vcut {
	case VcutNormal:
		if dualPulse {
			s.vcut = VcutFirstWarning
			s.rearm(s.cfg.Loads.FirstWarning)
		}

	case VcutFirstWarning:
		switch {
		case rising:
			s.vcut = VcutNormal
			s.disarm()
		case expired:
			s.vcut = VcutSecondWarning
			s.rearm(s.cfg.Loads.SecondWarning)
		}

	case VcutSecondWarning:
		switch {
		case rising:
			s.vcut = VcutNormal
			s.disarm()
		case expired:
			// No countdown runs in BRAKE_NO_RESET; the next reload happens
			// at TRAIN_STOPPED entry.
			s.vcut = VcutBrakeNoReset
		}

	case VcutBrakeNoReset:
		// Acknowledge is ignored here.
		if in.ZeroSpeed && in.Speed == SpeedZero {
			s.vcut = VcutTrainStoppedNoReset
			s.rearm(s.cfg.Loads.TrainStopped)
		}

	case VcutTrainStoppedNoReset:
		if expired {
			s.vcut = VcutNormal
		}
	}
}

func (s *System) stepMode(in Inputs) {
	if s.majorLatched {
		s.mode = ModeMajorFault
		return
	}

	// Self-test window.
	if in.TestWindow {
		if s.mode == ModeNormal {
			s.mode = ModeTest
		}
		return
	}
	if s.mode == ModeTest {
		s.mode = ModeNormal
	}

	// Driverless changes take effect one tick (ModeDelay) after the
	// conditioned input settles.
	if in.Driverless != s.driverlessSeen {
		s.driverlessSeen = in.Driverless
		s.driverlessDelay = s.cfg.ModeDelay
	}
	driverless := s.driverlessSeen
	if s.driverlessDelay > 0 {
		s.driverlessDelay--
		driverless = s.mode == ModeDepressed // hold the applied value
	}

	noReset := s.vcut == VcutBrakeNoReset || s.vcut == VcutTrainStoppedNoReset

	// Suppression first; entering it from DEPRESSED, or during the no-reset
	// states, is rejected as a silent no-op.
	switch {
	case in.Suppression && s.mode == ModeNormal && !noReset:
		s.mode = ModeSuppressed
		return
	case !in.Suppression && s.mode == ModeSuppressed:
		s.mode = ModeNormal
	}

	// Driverless/CBTC mode. Entering from SUPPRESSED or during the no-reset
	// states is rejected.
	switch {
	case driverless && s.mode == ModeNormal && !noReset:
		s.mode = ModeDepressed
	case !driverless && s.mode == ModeDepressed:
		s.mode = ModeNormal
	}
}

func (s *System) rearm(load uint32) {
	s.timer = load
	s.timerArmed = load > 0
	s.timerInit = true
}

func (s *System) disarm() {
	s.timer = 0
	s.timerArmed = false
}

// Mode returns the current operating mode.
func (s *System) Mode() Mode { return s.mode }

// Vcut returns the current vigilance-timer state.
func (s *System) Vcut() VcutState { return s.vcut }

// TimerTicks returns the remaining countdown, zero when disarmed.
func (s *System) TimerTicks() uint32 { return s.timer }

// TimerArmed reports whether the shared countdown is running.
func (s *System) TimerArmed() bool { return s.timerArmed }

// TimerInitPulse is true only for the tick on which the countdown was
// reloaded.
func (s *System) TimerInitPulse() bool { return s.timerInit }

// BrakeEnergized returns the commanded penalty-brake level. Both penalty
// brake outputs carry the same command; false means de-energized, i.e. brake
// applied.
func (s *System) BrakeEnergized() bool { return s.brakeEnergized }

// MajorFault reports whether a major fault has been latched.
func (s *System) MajorFault() bool { return s.majorLatched }
