// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/vcu-core/internal/core"
	"github.com/sweeney/vcu-core/internal/vigilance"
)

// Topic is the MQTT topic for unit state-change events.
const Topic = "rail/vcu/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "rail/vcu/system"

// Event is one unit state change stamped with wall-clock time. The core
// reports events on its own monotonic time base; the run loop converts them
// before publishing.
type Event struct {
	Timestamp time.Time
	Type      core.EventType
	Mode      vigilance.Mode
	Vcut      vigilance.VcutState
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a unit state-change event to the broker.
	// Returns error if publishing fails (must not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown,
// heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	Config     *SystemConfig
	Heartbeat  *HeartbeatInfo
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemConfig carries the effective runtime configuration in STARTUP events.
type SystemConfig struct {
	SyncTickUs  int64  `json:"sync_tick_us"`
	BatchMs     int64  `json:"batch_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
}

// HeartbeatInfo carries uptime and event counters in HEARTBEAT events.
type HeartbeatInfo struct {
	UptimeSeconds int64           `json:"uptime_seconds"`
	EventCounts   HeartbeatCounts `json:"event_counts"`
}

// HeartbeatCounts tallies published events since startup.
type HeartbeatCounts struct {
	ModeChanges int64 `json:"mode_changes"`
	VcutChanges int64 `json:"vcut_changes"`
	MinorFaults int64 `json:"minor_faults"`
	MajorFaults int64 `json:"major_faults"`
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Vcu VcuPayload `json:"vcu"`
}

// VcuPayload contains the unit event details.
type VcuPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Mode      string `json:"mode"`
	VcutState string `json:"vcut_state"`
}

// FormatPayload creates the JSON payload for a unit event.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Vcu: VcuPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Mode:      event.Mode.String(),
			VcutState: event.Vcut.String(),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string         `json:"timestamp"`
	Event     string         `json:"event"`
	Reason    string         `json:"reason,omitempty"`
	Config    *SystemConfig  `json:"config,omitempty"`
	Heartbeat *HeartbeatInfo `json:"heartbeat,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status
// snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Config:    event.Config,
			Heartbeat: event.Heartbeat,
		},
	}
	return json.Marshal(payload)
}
