package input

import (
	"fmt"

	"github.com/sweeney/vcu-core/internal/debounce"
	"github.com/sweeney/vcu-core/internal/signal"
)

// Role names with dedicated meaning to the conditioner. The force-fault
// roles feed the self-test mask; everything else is opaque to this package.
const (
	RoleForceFaultCh1 = "force_fault_ch1"
	RoleForceFaultCh2 = "force_fault_ch2"
)

type channelState struct {
	def    Channel
	raw    signal.Level
	stage1 *debounce.Filter
	stage2 *debounce.Filter
}

// Conditioner owns the per-channel filter pipeline and the self-test mask.
// SampleStage1 and SampleStage2 are driven by two different periodic ticks;
// stage 2 consumes stage 1's already-filtered output, and while test blanking
// is active stage 2 holds its input so self-test pulses never reach it.
type Conditioner struct {
	channels []*channelState
	byName   map[string]int
	byRole   map[string][]*channelState

	stage1Required int
	stage2Required int

	mask     MaskState
	blanking bool
}

// New builds a conditioner for the given channel table.
func New(channels []Channel, stage1Required, stage2Required int) (*Conditioner, error) {
	c := &Conditioner{
		byName:         make(map[string]int, len(channels)),
		byRole:         make(map[string][]*channelState),
		stage1Required: stage1Required,
		stage2Required: stage2Required,
	}
	for i, def := range channels {
		if _, dup := c.byName[def.Name]; dup {
			return nil, fmt.Errorf("input: duplicate channel %q", def.Name)
		}
		st := &channelState{
			def:    def,
			raw:    signal.Undriven,
			stage1: debounce.New(stage1Required, signal.Deasserted),
			stage2: debounce.New(stage2Required, signal.Deasserted),
		}
		c.channels = append(c.channels, st)
		c.byName[def.Name] = i
		c.byRole[def.Role] = append(c.byRole[def.Role], st)
	}
	return c, nil
}

// Channels returns the channel definitions in table order.
func (c *Conditioner) Channels() []Channel {
	out := make([]Channel, len(c.channels))
	for i, st := range c.channels {
		out[i] = st.def
	}
	return out
}

// Index returns the table index for a channel name.
func (c *Conditioner) Index(name string) (int, bool) {
	i, ok := c.byName[name]
	return i, ok
}

// SetRaw records the latest raw level for the channel at table index i.
// The level is consumed at the next stage-1 sampling tick.
func (c *Conditioner) SetRaw(i int, level signal.Level) {
	c.channels[i].raw = level
}

// SetBlanking controls test blanking. While active, stage 2 does not sample,
// so self-test pulses present on the stage-1 outputs are removed from the
// signal stage 2 sees.
func (c *Conditioner) SetBlanking(active bool) {
	c.blanking = active
}

// SampleStage1 runs one stage-1 sampling tick over every channel.
func (c *Conditioner) SampleStage1() {
	for _, st := range c.channels {
		st.stage1.Sample(st.raw)
	}
}

// SampleStage2 runs one stage-2 sampling tick over every channel, then
// re-evaluates the self-test mask from the filtered force-fault inputs.
// The mask is recomputed here, before any compared output is read, so one
// pipeline pass always sees a consistent mask.
func (c *Conditioner) SampleStage2() {
	if !c.blanking {
		for _, st := range c.channels {
			st.stage2.Sample(st.stage1.Stable())
		}
	}
	c.mask.Ch1Faulted = c.roleLevel(RoleForceFaultCh1)
	c.mask.Ch2Faulted = c.roleLevel(RoleForceFaultCh2)
}

// roleLevel returns the stage-2 output of a single-channel role, false if the
// role is absent.
func (c *Conditioner) roleLevel(role string) bool {
	states := c.byRole[role]
	if len(states) == 0 {
		return false
	}
	return states[0].stage2.Stable() == signal.Asserted
}

// Mask returns the current self-test fault mask.
func (c *Conditioner) Mask() MaskState {
	return c.mask
}

// Output computes the compared (paired) or latched (single) value for a role.
//
// Paired roles: both groups healthy -> AND of both channels; exactly one
// group faulted -> the healthy channel alone; both faulted -> forced to the
// safe default (false). Single roles are never masked.
func (c *Conditioner) Output(role string) bool {
	states := c.byRole[role]
	switch len(states) {
	case 0:
		return false
	case 1:
		return states[0].stage2.Stable() == signal.Asserted
	}

	var ch1, ch2 *channelState
	for _, st := range states {
		switch st.def.Group {
		case GroupCh1:
			ch1 = st
		case GroupCh2:
			ch2 = st
		}
	}
	if ch1 == nil || ch2 == nil {
		// Malformed pair, treat as unavailable.
		return false
	}

	f1 := c.mask.Faulted(GroupCh1)
	f2 := c.mask.Faulted(GroupCh2)
	v1 := ch1.stage2.Stable() == signal.Asserted
	v2 := ch2.stage2.Stable() == signal.Asserted

	switch {
	case f1 && f2:
		return false
	case f1:
		return v2
	case f2:
		return v1
	}
	return v1 && v2
}

// Level returns the stage-2 debounced level of the channel at table index i,
// for diagnostics.
func (c *Conditioner) Level(i int) signal.Level {
	return c.channels[i].stage2.Stable()
}

// Stage1Level returns the stage-1 debounced level of the channel at table
// index i.
func (c *Conditioner) Stage1Level(i int) signal.Level {
	return c.channels[i].stage1.Stable()
}

// FaultBits returns the per-channel self-test fault bits in table order.
// A channel's bit is set when its group is masked; spares never report.
func (c *Conditioner) FaultBits() []bool {
	bits := make([]bool, len(c.channels))
	for i, st := range c.channels {
		if st.def.Spare {
			continue
		}
		bits[i] = c.mask.Faulted(st.def.Group)
	}
	return bits
}

// Reset re-initializes every filter and clears the mask and blanking state.
func (c *Conditioner) Reset() {
	for _, st := range c.channels {
		st.raw = signal.Undriven
		st.stage1.Reset(signal.Deasserted)
		st.stage2.Reset(signal.Deasserted)
	}
	c.mask = MaskState{}
	c.blanking = false
}
