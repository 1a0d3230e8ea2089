// Package vigilance implements the two-stage timing state machine at the
// heart of the unit: the operating-mode FSM and the vigilance-timer FSM
// sharing one countdown counter, ticked once per 500us synchronization pulse.
package vigilance

// Mode is the operating mode of the unit.
type Mode int

const (
	ModeNormal Mode = iota
	ModeDepressed
	ModeSuppressed
	ModeTest
	ModeMajorFault
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeDepressed:
		return "DEPRESSED"
	case ModeSuppressed:
		return "SUPPRESSED"
	case ModeTest:
		return "TEST"
	case ModeMajorFault:
		return "MAJOR_FAULT"
	}
	return "INVALID"
}

// VcutState is the vigilance-timer state.
type VcutState int

const (
	VcutNormal VcutState = iota
	VcutFirstWarning
	VcutSecondWarning
	VcutBrakeNoReset
	VcutTrainStoppedNoReset
)

// String returns the state name.
func (s VcutState) String() string {
	switch s {
	case VcutNormal:
		return "NORMAL"
	case VcutFirstWarning:
		return "FIRST_WARNING"
	case VcutSecondWarning:
		return "SECOND_WARNING"
	case VcutBrakeNoReset:
		return "BRAKE_NO_RESET"
	case VcutTrainStoppedNoReset:
		return "TRAIN_STOPPED_NO_RESET"
	}
	return "INVALID"
}

// SpeedCategory is the already-decoded discrete speed bin supplied by the
// external measurement chain. The zero value is standstill so an unconnected
// source reads as stopped.
type SpeedCategory int

const (
	SpeedZero SpeedCategory = iota
	SpeedLow
	SpeedHigh
)

// String returns the category name.
func (s SpeedCategory) String() string {
	switch s {
	case SpeedZero:
		return "ZERO"
	case SpeedLow:
		return "LOW"
	case SpeedHigh:
		return "HIGH"
	}
	return "INVALID"
}

// Inputs is the conditioned input vector sampled once per synchronization
// tick. All booleans are post-debounce, post-masking compared values.
type Inputs struct {
	Vigilance   bool
	ZeroSpeed   bool
	Driverless  bool
	Suppression bool
	TestWindow  bool
	Speed       SpeedCategory
	// MajorFault is the externally detected major-fault condition (penalty
	// brake compare failure and similar). Once seen it latches the mode.
	MajorFault bool
}

// TimerLoads holds the state-tagged reload constants for the shared
// countdown, in synchronization ticks.
type TimerLoads struct {
	FirstWarning  uint32
	SecondWarning uint32
	TrainStopped  uint32
}

// Config parameterizes the system.
type Config struct {
	Loads TimerLoads
	// AckWindow is the number of ticks within which the two rising edges of
	// the qualifying dual pulse must both occur.
	AckWindow uint32
	// ModeDelay is the number of ticks between the driverless input settling
	// and the operating-mode change taking effect.
	ModeDelay uint32
}
