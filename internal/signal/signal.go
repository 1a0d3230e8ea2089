// Package signal defines the tri-state logic level carried by a physical input
// line. Undriven (floating) lines are distinct from deasserted ones at the raw
// boundary; the debounce stages collapse Undriven to Deasserted before any
// safety logic sees the level.
package signal

// Level is the sampled state of a line.
type Level int

const (
	// Deasserted indicates a logical 0 (line driven inactive).
	Deasserted Level = 0
	// Asserted indicates a logical 1 (line driven active).
	Asserted Level = 1
	// Undriven indicates a floating or disconnected line.
	Undriven Level = -1
)

// String returns the level name for logs and diagnostics.
func (l Level) String() string {
	switch l {
	case Asserted:
		return "ASSERTED"
	case Deasserted:
		return "DEASSERTED"
	case Undriven:
		return "UNDRIVEN"
	}
	return "INVALID"
}

// Bool collapses the level to a driven boolean. Undriven reads as false.
func (l Level) Bool() bool {
	return l == Asserted
}

// FromBool converts a driven boolean to a Level.
func FromBool(b bool) Level {
	if b {
		return Asserted
	}
	return Deasserted
}
