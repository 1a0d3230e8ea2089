// Package feedback compares each driven output against its feedback input a
// fixed settle time after every commanded change. A mismatch latches a
// compare fault that only an explicit reset clears; penalty-brake outputs
// additionally escalate to a major fault and are forced to the safe
// (de-energized) level instead of remaining where they were.
package feedback

// Output describes one monitored output.
type Output struct {
	Name         string
	PenaltyBrake bool
}

type monitor struct {
	def        Output
	commanded  bool // true = energized
	settleLeft int  // ticks until the single compare sample; 0 = idle
	fault      bool
}

// Comparator owns the per-output compare state. Tick is called once per
// synchronization tick with the sampled feedback levels.
type Comparator struct {
	outputs     []*monitor
	settleTicks int
}

// New creates a comparator. settleTicks is the settle delay in ticks
// (128ms at the 500us synchronization tick by default). All outputs start
// commanded energized with no compare pending.
func New(outputs []Output, settleTicks int) *Comparator {
	c := &Comparator{settleTicks: settleTicks}
	for _, def := range outputs {
		c.outputs = append(c.outputs, &monitor{def: def, commanded: true})
	}
	return c
}

// Command records the commanded level for output i. Every change restarts
// the settle timer, faulted or not; the feedback is sampled exactly once, at
// expiry. A later compare never clears the latch.
func (c *Comparator) Command(i int, energized bool) {
	m := c.outputs[i]
	if m.commanded == energized {
		return
	}
	m.commanded = energized
	m.settleLeft = c.settleTicks
}

// Tick advances every pending settle timer by one tick and performs the
// single compare sample for timers that expire. feedback holds the sampled
// feedback level per output, indexed like the constructor slice.
func (c *Comparator) Tick(feedback []bool) {
	for i, m := range c.outputs {
		if m.settleLeft == 0 {
			continue
		}
		m.settleLeft--
		if m.settleLeft > 0 {
			continue
		}
		if feedback[i] != m.commanded {
			m.fault = true
		}
	}
}

// Fault reports the latched compare fault for output i.
func (c *Comparator) Fault(i int) bool {
	return c.outputs[i].fault
}

// Faults returns the latched compare faults in output order.
func (c *Comparator) Faults() []bool {
	out := make([]bool, len(c.outputs))
	for i, m := range c.outputs {
		out[i] = m.fault
	}
	return out
}

// MinorFault reports whether any output has a latched compare fault.
func (c *Comparator) MinorFault() bool {
	for _, m := range c.outputs {
		if m.fault {
			return true
		}
	}
	return false
}

// MajorFault reports whether a penalty-brake output has a latched compare
// fault.
func (c *Comparator) MajorFault() bool {
	for _, m := range c.outputs {
		if m.fault && m.def.PenaltyBrake {
			return true
		}
	}
	return false
}

// DrivenLevel returns the level actually driven on output i: the commanded
// level, except that a faulted penalty brake is forced de-energized. Faulted
// dry outputs remain at their commanded level.
func (c *Comparator) DrivenLevel(i int) bool {
	m := c.outputs[i]
	if m.fault && m.def.PenaltyBrake {
		return false
	}
	return m.commanded
}

// Pending reports whether output i has a compare sample scheduled.
func (c *Comparator) Pending(i int) bool {
	return c.outputs[i].settleLeft > 0
}

// Reset clears every latched fault and pending compare and returns all
// outputs to the energized command.
func (c *Comparator) Reset() {
	for _, m := range c.outputs {
		m.commanded = true
		m.settleLeft = 0
		m.fault = false
	}
}
