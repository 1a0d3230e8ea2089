package diag

// Transition is one recorded line level change.
type Transition struct {
	Line  Line
	Level bool
	At    int64
}

// Recorder is a Sink that records every transition for test assertions.
type Recorder struct {
	// Events contains all transitions in emission order.
	Events []Transition

	levels [3]bool
}

// NewRecorder creates an empty recorder. All lines start low.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Set records the transition. Writes that do not change the line level are
// still recorded; Edges filters them out.
func (r *Recorder) Set(line Line, level bool, at int64) {
	r.Events = append(r.Events, Transition{Line: line, Level: level, At: at})
	r.levels[line] = level
}

// Level returns the last written level of a line.
func (r *Recorder) Level(line Line) bool {
	return r.levels[line]
}

// Edges returns the recorded transitions of one line with repeated levels
// collapsed, i.e. true edges only.
func (r *Recorder) Edges(line Line) []Transition {
	var out []Transition
	last := false
	for _, tr := range r.Events {
		if tr.Line != line {
			continue
		}
		if tr.Level == last {
			continue
		}
		last = tr.Level
		out = append(out, tr)
	}
	return out
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
	r.levels = [3]bool{}
}
