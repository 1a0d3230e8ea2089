// Package status provides a thread-safe status tracker for the vcu-core
// daemon. It is read by HTTP handlers and by the MQTT heartbeat publisher.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/vcu-core/internal/core"
)

// Config contains daemon configuration for display.
type Config struct {
	BatchMs     int64
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	ConfigPath  string
}

// EventCounts tallies state-change events since startup. This is a local
// copy to avoid importing internal/mqtt from status.
type EventCounts struct {
	ModeChanges int64
	VcutChanges int64
	MinorFaults int64
	MajorFaults int64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Unit          core.Snapshot
	Counts        EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update stores the latest unit snapshot and event counts.
// Called from the run loop after every batch of ticks.
func (t *Tracker) Update(unit core.Snapshot, counts EventCounts) {
	t.mu.Lock()
	t.snap.Unit = unit
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
