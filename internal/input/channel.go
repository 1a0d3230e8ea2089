// Package input conditions raw channel levels into the validated input vector
// consumed by the vigilance timing system. Every channel runs through two
// debounce stages; redundant channel pairs are voted, single channels are
// latched, and channels whose group failed self-test are masked out of the
// safety logic while still reporting their diagnostic fault bit.
package input

// Group identifies which redundant channel group a channel belongs to.
type Group int

const (
	// GroupSingle marks an ungrouped (latched) channel.
	GroupSingle Group = iota
	// GroupCh1 is the first redundant group.
	GroupCh1
	// GroupCh2 is the second redundant group.
	GroupCh2
)

// String returns the group name.
func (g Group) String() string {
	switch g {
	case GroupCh1:
		return "CH1"
	case GroupCh2:
		return "CH2"
	}
	return "SINGLE"
}

// Channel describes one logical input line. The set of channels is fixed at
// configuration time.
type Channel struct {
	Name  string
	Role  string
	Group Group
	// Spare channels are physically present but unused: they are filtered
	// and reported like any other channel except that they never assert a
	// fault bit.
	Spare bool
}

// MaskState is the per-group self-test fault mask.
type MaskState struct {
	Ch1Faulted bool
	Ch2Faulted bool
}

// Faulted reports whether the given group is masked. Single channels are
// never masked.
func (m MaskState) Faulted(g Group) bool {
	switch g {
	case GroupCh1:
		return m.Ch1Faulted
	case GroupCh2:
		return m.Ch2Faulted
	}
	return false
}
