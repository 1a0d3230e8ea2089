//go:build linux

package gpio

import (
	"fmt"
	"log"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/vcu-core/internal/signal"
)

// RealLines drives actual hardware using the Linux GPIO character device.
type RealLines struct {
	chip    *gpiocdev.Chip
	inputs  map[int]*gpiocdev.Line
	outputs map[int]*gpiocdev.Line
}

// NewRealLines opens gpiochip0 and requests the given input and output pins.
// Inputs are requested with pull-down to match boot defaults, so a
// disconnected optocoupler module reads inactive rather than floating.
func NewRealLines(inputPins, outputPins []int) (*RealLines, error) {
	chip, err := gpiocdev.NewChip("gpiochip0")
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealLines{
		chip:    chip,
		inputs:  make(map[int]*gpiocdev.Line),
		outputs: make(map[int]*gpiocdev.Line),
	}

	for _, pin := range inputPins {
		line, err := chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullDown)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input pin %d: %w", pin, err)
		}
		r.inputs[pin] = line
	}
	for _, pin := range outputPins {
		line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		r.outputs[pin] = line
	}

	return r, nil
}

// ReadLevel returns the raw level of an input pin. Read failures and
// unrequested pins report Undriven.
func (r *RealLines) ReadLevel(pin int) signal.Level {
	line, ok := r.inputs[pin]
	if !ok {
		return signal.Undriven
	}
	v, err := line.Value()
	if err != nil {
		log.Printf("gpio: read pin %d: %v", pin, err)
		return signal.Undriven
	}
	return signal.FromBool(v != 0)
}

// DriveOutput drives an output pin. Failures are logged; the caller's tick
// loop must not stall on a single bad line.
func (r *RealLines) DriveOutput(pin int, energized bool) {
	line, ok := r.outputs[pin]
	if !ok {
		return
	}
	v := 0
	if energized {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		log.Printf("gpio: drive pin %d: %v", pin, err)
	}
}

// Close releases GPIO resources. Inputs are reconfigured to pull-down first
// so external hardware sees boot-default levels across a restart.
func (r *RealLines) Close() error {
	var errs []error

	for pin, line := range r.inputs {
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	for pin, line := range r.outputs {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
