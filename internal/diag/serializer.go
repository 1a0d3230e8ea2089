package diag

// Line identifies one of the three serial output lines.
type Line int

const (
	LineSync Line = iota
	LineClock
	LineData
)

// String returns the line name.
func (l Line) String() string {
	switch l {
	case LineSync:
		return "sync"
	case LineClock:
		return "sclk"
	case LineData:
		return "sdata"
	}
	return "invalid"
}

// Sink receives line level changes with their timestamps (nanoseconds on the
// master time base).
type Sink interface {
	Set(line Line, level bool, at int64)
}

// Timing holds the serializer periods in nanoseconds.
type Timing struct {
	BitClockPeriod int64
	SyncWidth      int64
	PollingPeriod  int64
}

// Serializer generates the serial waveform. Advance processes every line
// event up to the given instant, pulling a fresh frame from the provider at
// each polling period boundary. The bit clock free-runs regardless of the
// strobe.
type Serializer struct {
	timing   Timing
	provider func() Frame
	sink     Sink

	frame    Frame
	bitIndex int   // next bit position; FrameBits = frame done
	frameAt  int64 // instant of the current frame start

	clockLevel    bool
	nextClockEdge int64
	nextFrame     int64
	syncFall      int64 // 0 = no strobe pending
}

// NewSerializer creates a serializer starting at instant 0 with the first
// frame emitted immediately.
func NewSerializer(timing Timing, provider func() Frame, sink Sink) *Serializer {
	return &Serializer{
		timing:        timing,
		provider:      provider,
		sink:          sink,
		bitIndex:      FrameBits,
		nextClockEdge: timing.BitClockPeriod / 2,
	}
}

// Advance emits every event with a timestamp <= now, in time order. Events
// sharing an instant are processed frame-start first, then strobe fall, then
// clock edge, so bit 0 always coincides with the strobe assertion. A falling
// clock edge at the frame-start instant does not consume bit 0; every bit
// dwells on the data line for a full clock period.
func (s *Serializer) Advance(now int64) {
	for {
		t, kind := s.nextEvent()
		if t > now {
			return
		}
		switch kind {
		case evFrame:
			s.frame = s.provider()
			s.bitIndex = 0
			s.frameAt = t
			s.sink.Set(LineSync, true, t)
			s.sink.Set(LineData, s.frame.Bit(0), t)
			s.syncFall = t + s.timing.SyncWidth
			s.nextFrame = t + s.timing.PollingPeriod
		case evSyncFall:
			s.sink.Set(LineSync, false, t)
			s.syncFall = 0
		case evClock:
			s.clockLevel = !s.clockLevel
			s.sink.Set(LineClock, s.clockLevel, t)
			if !s.clockLevel && s.bitIndex < FrameBits && t != s.frameAt {
				s.bitIndex++
				if s.bitIndex < FrameBits {
					s.sink.Set(LineData, s.frame.Bit(s.bitIndex), t)
				} else {
					// Frame complete: the data line idles low until the
					// next strobe.
					s.sink.Set(LineData, false, t)
				}
			}
			s.nextClockEdge = t + s.timing.BitClockPeriod/2
		}
	}
}

type eventKind int

const (
	evFrame eventKind = iota
	evSyncFall
	evClock
)

func (s *Serializer) nextEvent() (int64, eventKind) {
	t, kind := s.nextFrame, evFrame
	if s.syncFall != 0 && s.syncFall < t {
		t, kind = s.syncFall, evSyncFall
	}
	if s.nextClockEdge < t {
		t, kind = s.nextClockEdge, evClock
	}
	return t, kind
}
