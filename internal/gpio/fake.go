package gpio

import (
	"sync"

	"github.com/sweeney/vcu-core/internal/signal"
)

// FakeLines is a test double with settable input levels and recorded output
// drives.
type FakeLines struct {
	mu sync.Mutex

	// levels holds the current level per input pin. Unset pins read
	// Undriven, like a floating line.
	levels map[int]signal.Level

	// Driven holds the last driven level per output pin.
	Driven map[int]bool

	// Drives counts DriveOutput calls per pin.
	Drives map[int]int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeLines creates a FakeLines with all inputs undriven.
func NewFakeLines() *FakeLines {
	return &FakeLines{
		levels: make(map[int]signal.Level),
		Driven: make(map[int]bool),
		Drives: make(map[int]int),
	}
}

// SetLevel sets the level an input pin will read.
func (f *FakeLines) SetLevel(pin int, level signal.Level) {
	f.mu.Lock()
	f.levels[pin] = level
	f.mu.Unlock()
}

// ReadLevel returns the scripted level for the pin, Undriven if never set.
func (f *FakeLines) ReadLevel(pin int) signal.Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	if level, ok := f.levels[pin]; ok {
		return level
	}
	return signal.Undriven
}

// DriveOutput records the drive.
func (f *FakeLines) DriveOutput(pin int, energized bool) {
	f.mu.Lock()
	f.Driven[pin] = energized
	f.Drives[pin]++
	f.mu.Unlock()
}

// DrivenLevel returns the last driven level of an output pin.
func (f *FakeLines) DrivenLevel(pin int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Driven[pin]
}

// Close marks the fake as closed.
func (f *FakeLines) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Reset clears all scripted levels and recorded drives.
func (f *FakeLines) Reset() {
	f.mu.Lock()
	f.levels = make(map[int]signal.Level)
	f.Driven = make(map[int]bool)
	f.Drives = make(map[int]int)
	f.Closed = false
	f.mu.Unlock()
}
