package core

import (
	"time"

	"github.com/sweeney/vcu-core/internal/diag"
	"github.com/sweeney/vcu-core/internal/signal"
	"github.com/sweeney/vcu-core/internal/vigilance"
)

// FaultSummary returns the flat minor/major fault reports. Each report is
// the AND of two redundant vectors computed over different representations
// of the same state: a per-element walk and the components' aggregate
// queries. A report is raised only when both vectors agree.
func (c *Core) FaultSummary() (minor, major bool) {
	// Vector A: per-element walk.
	var minorA, majorA bool
	for i := range c.cfg.Outputs {
		if c.cmp.Fault(i) {
			minorA = true
			if c.cfg.Outputs[i].PenaltyBrake {
				majorA = true
			}
		}
	}
	for _, bit := range c.cond.FaultBits() {
		if bit {
			minorA = true
		}
	}
	if c.vig.Mode() == vigilance.ModeMajorFault {
		majorA = true
	}

	// Vector B: aggregate queries.
	mask := c.cond.Mask()
	minorB := c.cmp.MinorFault() || mask.Ch1Faulted || mask.Ch2Faulted
	majorB := c.cmp.MajorFault() || c.vig.MajorFault()

	return minorA && minorB, majorA && majorB
}

// buildFrame assembles the current diagnostic frame. Called by the
// serializer once per polling period; every unclaimed bit position stays 0.
func (c *Core) buildFrame() diag.Frame {
	var f diag.Frame

	f.SetField(c.cfg.Frame.OperatingMode, 3, uint(c.vig.Mode()))
	f.SetField(c.cfg.Frame.VcutState, 3, uint(c.vig.Vcut()))

	mask := c.cond.Mask()
	if mask.Ch1Faulted {
		f.Set(c.cfg.Frame.Ch1Fault)
	}
	if mask.Ch2Faulted {
		f.Set(c.cfg.Frame.Ch2Fault)
	}

	minor, major := c.FaultSummary()
	if minor {
		f.Set(c.cfg.Frame.MinorFault)
	}
	if major {
		f.Set(c.cfg.Frame.MajorFault)
	}

	for i, bit := range c.cond.FaultBits() {
		if bit {
			f.Set(c.cfg.Channels[i].FaultBit)
		}
	}
	for i := range c.cfg.Outputs {
		if c.cmp.Fault(i) {
			f.Set(c.cfg.Outputs[i].FaultBit)
		}
	}

	return f
}

// ChannelStatus is the per-channel view exposed to diagnostics.
type ChannelStatus struct {
	Name  string
	Group string
	Spare bool
	Level bool // stage-2 conditioned level
	Fault bool
}

// OutputStatus is the per-output view exposed to diagnostics.
type OutputStatus struct {
	Name         string
	PenaltyBrake bool
	Energized    bool // driven level
	Fault        bool
}

// Snapshot is a point-in-time value copy of the unit state, safe to hand to
// other goroutines.
type Snapshot struct {
	Now            time.Duration
	Mode           vigilance.Mode
	Vcut           vigilance.VcutState
	TimerTicks     uint32
	TimerArmed     bool
	BrakeEnergized bool
	Ch1Masked      bool
	Ch2Masked      bool
	MinorFault     bool
	MajorFault     bool
	Channels       []ChannelStatus
	Outputs        []OutputStatus
	Frame          diag.Frame
}

// Snapshot builds a value snapshot of the current state.
func (c *Core) Snapshot() Snapshot {
	mask := c.cond.Mask()
	minor, major := c.FaultSummary()
	s := Snapshot{
		Now:            time.Duration(c.now),
		Mode:           c.vig.Mode(),
		Vcut:           c.vig.Vcut(),
		TimerTicks:     c.vig.TimerTicks(),
		TimerArmed:     c.vig.TimerArmed(),
		BrakeEnergized: c.vig.BrakeEnergized(),
		Ch1Masked:      mask.Ch1Faulted,
		Ch2Masked:      mask.Ch2Faulted,
		MinorFault:     minor,
		MajorFault:     major,
		Frame:          c.buildFrame(),
	}

	bits := c.cond.FaultBits()
	for i, ch := range c.cond.Channels() {
		s.Channels = append(s.Channels, ChannelStatus{
			Name:  ch.Name,
			Group: ch.Group.String(),
			Spare: ch.Spare,
			Level: c.cond.Level(i) == signal.Asserted,
			Fault: bits[i],
		})
	}
	for i, o := range c.cfg.Outputs {
		s.Outputs = append(s.Outputs, OutputStatus{
			Name:         o.Name,
			PenaltyBrake: o.PenaltyBrake,
			Energized:    c.cmp.DrivenLevel(i),
			Fault:        c.cmp.Fault(i),
		})
	}
	return s
}
