package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string        `json:"event,omitempty"`
	Reason         string        `json:"reason,omitempty"`
	Mode           string        `json:"mode"`
	VcutState      string        `json:"vcut_state"`
	TimerTicks     uint32        `json:"timer_ticks"`
	TimerArmed     bool          `json:"timer_armed"`
	BrakeEnergized bool          `json:"brake_energized"`
	Ch1Masked      bool          `json:"ch1_masked"`
	Ch2Masked      bool          `json:"ch2_masked"`
	MinorFault     bool          `json:"minor_fault"`
	MajorFault     bool          `json:"major_fault"`
	UptimeSeconds  int64         `json:"uptime_seconds"`
	StartTime      string        `json:"start_time"`
	Timestamp      string        `json:"timestamp"`
	MQTT           MQTTStatus    `json:"mqtt"`
	Counts         CountsJSON    `json:"event_counts"`
	Channels       []ChannelJSON `json:"channels"`
	Outputs        []OutputJSON  `json:"outputs"`
	Config         ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	ModeChanges int64 `json:"mode_changes"`
	VcutChanges int64 `json:"vcut_changes"`
	MinorFaults int64 `json:"minor_faults"`
	MajorFaults int64 `json:"major_faults"`
}

// ChannelJSON is the JSON representation of one input channel.
type ChannelJSON struct {
	Name  string `json:"name"`
	Group string `json:"group"`
	Spare bool   `json:"spare,omitempty"`
	Level bool   `json:"level"`
	Fault bool   `json:"fault"`
}

// OutputJSON is the JSON representation of one output.
type OutputJSON struct {
	Name         string `json:"name"`
	PenaltyBrake bool   `json:"penalty_brake"`
	Energized    bool   `json:"energized"`
	Fault        bool   `json:"fault"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	BatchMs     int64  `json:"batch_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	ConfigPath  string `json:"config_path,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Mode:           snap.Unit.Mode.String(),
		VcutState:      snap.Unit.Vcut.String(),
		TimerTicks:     snap.Unit.TimerTicks,
		TimerArmed:     snap.Unit.TimerArmed,
		BrakeEnergized: snap.Unit.BrakeEnergized,
		Ch1Masked:      snap.Unit.Ch1Masked,
		Ch2Masked:      snap.Unit.Ch2Masked,
		MinorFault:     snap.Unit.MinorFault,
		MajorFault:     snap.Unit.MajorFault,
		UptimeSeconds:  int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:      snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:      snap.Now.UTC().Format(time.RFC3339),
		MQTT:           MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			ModeChanges: snap.Counts.ModeChanges,
			VcutChanges: snap.Counts.VcutChanges,
			MinorFaults: snap.Counts.MinorFaults,
			MajorFaults: snap.Counts.MajorFaults,
		},
		Config: ConfigJSON{
			BatchMs:     snap.Config.BatchMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			ConfigPath:  snap.Config.ConfigPath,
		},
	}

	for _, ch := range snap.Unit.Channels {
		inner.Channels = append(inner.Channels, ChannelJSON{
			Name:  ch.Name,
			Group: ch.Group,
			Spare: ch.Spare,
			Level: ch.Level,
			Fault: ch.Fault,
		})
	}
	for _, o := range snap.Unit.Outputs {
		inner.Outputs = append(inner.Outputs, OutputJSON{
			Name:         o.Name,
			PenaltyBrake: o.PenaltyBrake,
			Energized:    o.Energized,
			Fault:        o.Fault,
		})
	}

	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
