// Package debounce implements the sampled persistence filter used by every
// input path. The filter is pure logic with no clock of its own: the caller
// invokes Sample once per sampling tick of whatever stage the filter belongs
// to.
package debounce

import "github.com/sweeney/vcu-core/internal/signal"

// Filter rejects pulses narrower than the configured number of consecutive
// agreeing samples. The output level changes only when `required` identical
// raw samples have been seen in a row since the last output change; a single
// disagreeing sample resets the run to zero. There is no partial credit when
// the candidate changes.
type Filter struct {
	required  int
	stable    signal.Level
	candidate signal.Level
	count     int
}

// New creates a filter requiring `required` consecutive identical samples,
// with the given initial stable output. Undriven initial levels are collapsed
// to Deasserted.
func New(required int, initial signal.Level) *Filter {
	if required < 1 {
		required = 1
	}
	return &Filter{
		required:  required,
		stable:    driven(initial),
		candidate: driven(initial),
	}
}

// Sample feeds one raw sample into the filter and returns true if the stable
// output changed on this sample. Undriven reads as Deasserted.
func (f *Filter) Sample(raw signal.Level) bool {
	raw = driven(raw)

	if raw == f.stable {
		// Agreement with the committed output discards any run in flight.
		f.candidate = f.stable
		f.count = 0
		return false
	}

	if raw != f.candidate {
		// New candidate: the run restarts, counting this sample.
		f.candidate = raw
		f.count = 1
		return f.commitIfSaturated()
	}

	f.count++
	return f.commitIfSaturated()
}

func (f *Filter) commitIfSaturated() bool {
	if f.count < f.required {
		return false
	}
	f.stable = f.candidate
	f.count = 0
	return true
}

// Stable returns the current debounced output level.
func (f *Filter) Stable() signal.Level { return f.stable }

// Candidate returns the level of the run currently in flight. Equal to
// Stable when no change is pending.
func (f *Filter) Candidate() signal.Level { return f.candidate }

// Count returns the length of the agreeing run in flight.
func (f *Filter) Count() int { return f.count }

// Required returns the configured run length.
func (f *Filter) Required() int { return f.required }

// Reset discards any run in flight and forces the stable output to the given
// level.
func (f *Filter) Reset(level signal.Level) {
	f.stable = driven(level)
	f.candidate = f.stable
	f.count = 0
}

func driven(l signal.Level) signal.Level {
	if l == signal.Asserted {
		return signal.Asserted
	}
	return signal.Deasserted
}
