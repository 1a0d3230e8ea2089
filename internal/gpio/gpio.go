// Package gpio provides line-level I/O with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"github.com/sweeney/vcu-core/internal/diag"
	"github.com/sweeney/vcu-core/internal/signal"
)

// Lines reads raw input levels and drives output lines.
type Lines interface {
	// ReadLevel returns the raw level of an input pin. A pin that cannot
	// be read reports Undriven.
	ReadLevel(pin int) signal.Level

	// DriveOutput drives an output pin. true = energized.
	DriveOutput(pin int, energized bool)

	// Close releases GPIO resources.
	Close() error
}

// serialSink adapts Lines to the diagnostic serializer's Sink: each serial
// line transition is driven onto its configured pin. The timestamp is a
// master-clock instant and has no meaning at the hardware boundary.
type serialSink struct {
	lines Lines
	pins  [3]int
}

// NewSerialSink returns a diag.Sink driving the sync/sclk/sdata transitions
// onto the given pins.
func NewSerialSink(lines Lines, syncPin, clockPin, dataPin int) diag.Sink {
	return &serialSink{lines: lines, pins: [3]int{syncPin, clockPin, dataPin}}
}

func (s *serialSink) Set(line diag.Line, level bool, _ int64) {
	s.lines.DriveOutput(s.pins[line], level)
}
