//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/vcu-core/internal/signal"
)

// RealLines is not available on non-Linux platforms.
type RealLines struct{}

// NewRealLines returns an error on non-Linux platforms.
func NewRealLines(inputPins, outputPins []int) (*RealLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// ReadLevel is not implemented on non-Linux platforms.
func (r *RealLines) ReadLevel(pin int) signal.Level {
	return signal.Undriven
}

// DriveOutput is not implemented on non-Linux platforms.
func (r *RealLines) DriveOutput(pin int, energized bool) {}

// Close is not implemented on non-Linux platforms.
func (r *RealLines) Close() error { return nil }
