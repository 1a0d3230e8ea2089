// Package diag builds the 128-bit diagnostic frame and emits it as the
// sync/sclk/sdata serial triplet: a free-running bit clock, a fixed-width
// sync strobe once per polling period, and one data bit per falling clock
// edge. The stream never terminates; a fresh frame is built at every polling
// period and replaces the previous one wholesale.
package diag

// FrameBits is the fixed frame width.
const FrameBits = 128

// Frame is one immutable diagnostic frame. Bit 0 is emitted coincident with
// the sync strobe assertion; bits 1..127 follow on successive falling edges
// of the bit clock. Bits never claimed by any source stay 0.
type Frame [FrameBits / 8]byte

// Set sets bit i. Out-of-range positions are ignored; negative positions
// mark unmapped sources.
func (f *Frame) Set(i int) {
	if i < 0 || i >= FrameBits {
		return
	}
	f[i/8] |= 1 << uint(i%8)
}

// SetField writes the low `width` bits of v starting at position i.
func (f *Frame) SetField(i, width int, v uint) {
	for b := 0; b < width; b++ {
		if v&(1<<uint(b)) != 0 {
			f.Set(i + b)
		}
	}
}

// Bit returns bit i. Out-of-range positions read 0.
func (f *Frame) Bit(i int) bool {
	if i < 0 || i >= FrameBits {
		return false
	}
	return f[i/8]&(1<<uint(i%8)) != 0
}

// PopCount returns the number of set bits, for diagnostics and tests.
func (f *Frame) PopCount() int {
	n := 0
	for i := 0; i < FrameBits; i++ {
		if f.Bit(i) {
			n++
		}
	}
	return n
}
