package status

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sweeney/vcu-core/internal/core"
	"github.com/sweeney/vcu-core/internal/vigilance"
)

func testUnitSnapshot() core.Snapshot {
	return core.Snapshot{
		Mode:           vigilance.ModeNormal,
		Vcut:           vigilance.VcutFirstWarning,
		TimerTicks:     88_000,
		TimerArmed:     true,
		BrakeEnergized: true,
		Ch1Masked:      true,
		MinorFault:     true,
		Channels: []core.ChannelStatus{
			{Name: "vigilance_1", Group: "CH1", Level: false, Fault: true},
			{Name: "vigilance_2", Group: "CH2", Level: false, Fault: false},
		},
		Outputs: []core.OutputStatus{
			{Name: "penalty_brake_1", PenaltyBrake: true, Energized: true},
			{Name: "warning_lamp", Energized: true},
		},
	}
}

func testConfig() Config {
	return Config{
		BatchMs:     10,
		HeartbeatMs: 900000,
		Broker:      "tcp://localhost:1883",
		HTTPPort:    ":8080",
	}
}

func TestTrackerInitialState(t *testing.T) {
	start := time.Now()
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("unexpected start time: %v", snap.StartTime)
	}
	if snap.Config.Broker != "tcp://localhost:1883" {
		t.Errorf("unexpected broker: %s", snap.Config.Broker)
	}
	if snap.MQTTConnected {
		t.Error("should not be connected initially")
	}
	if snap.Unit.Vcut != vigilance.VcutNormal {
		t.Errorf("unexpected initial vcut state: %s", snap.Unit.Vcut)
	}
}

func TestTrackerUpdate(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	tr.Update(testUnitSnapshot(), EventCounts{VcutChanges: 3, MinorFaults: 1})

	snap := tr.Snapshot()
	if snap.Unit.Vcut != vigilance.VcutFirstWarning {
		t.Errorf("unexpected vcut state: %s", snap.Unit.Vcut)
	}
	if !snap.Unit.Ch1Masked {
		t.Error("expected CH1 masked")
	}
	if snap.Counts.VcutChanges != 3 || snap.Counts.MinorFaults != 1 {
		t.Errorf("unexpected counts: %+v", snap.Counts)
	}
}

func TestTrackerSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected connected")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected disconnected")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Now().Add(-90 * time.Second)
	tr := NewTracker(start, testConfig())

	up := tr.Snapshot().Uptime()
	if up < 89*time.Second || up > 92*time.Second {
		t.Errorf("unexpected uptime: %v", up)
	}
}

func TestFormatJSON(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Update(testUnitSnapshot(), EventCounts{VcutChanges: 3, MinorFaults: 1})
	tr.SetMQTTConnected(true)

	data := FormatJSON(tr.Snapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.Event != "" || s.Reason != "" {
		t.Error("web status should not carry event/reason")
	}
	if s.Mode != "NORMAL" {
		t.Errorf("unexpected mode: %s", s.Mode)
	}
	if s.VcutState != "FIRST_WARNING" {
		t.Errorf("unexpected vcut state: %s", s.VcutState)
	}
	if s.TimerTicks != 88_000 || !s.TimerArmed {
		t.Errorf("unexpected timer: ticks=%d armed=%v", s.TimerTicks, s.TimerArmed)
	}
	if !s.Ch1Masked || s.Ch2Masked {
		t.Errorf("unexpected masks: ch1=%v ch2=%v", s.Ch1Masked, s.Ch2Masked)
	}
	if !s.MinorFault || s.MajorFault {
		t.Errorf("unexpected faults: minor=%v major=%v", s.MinorFault, s.MajorFault)
	}
	if !s.MQTT.Connected || s.MQTT.Broker != "tcp://localhost:1883" {
		t.Errorf("unexpected mqtt status: %+v", s.MQTT)
	}
	if s.Counts.VcutChanges != 3 {
		t.Errorf("unexpected vcut_changes: %d", s.Counts.VcutChanges)
	}
	if len(s.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(s.Channels))
	}
	if s.Channels[0].Name != "vigilance_1" || !s.Channels[0].Fault {
		t.Errorf("unexpected channel 0: %+v", s.Channels[0])
	}
	if len(s.Outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(s.Outputs))
	}
	if !s.Outputs[0].PenaltyBrake || !s.Outputs[0].Energized {
		t.Errorf("unexpected output 0: %+v", s.Outputs[0])
	}
	if s.Config.BatchMs != 10 || s.Config.HTTPPort != ":8080" {
		t.Errorf("unexpected config: %+v", s.Config)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Update(testUnitSnapshot(), EventCounts{})

	data := FormatStatusEvent(tr.Snapshot(), "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("unexpected event: %s", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("unexpected reason: %s", parsed.Status.Reason)
	}
	if parsed.Status.VcutState != "FIRST_WARNING" {
		t.Errorf("unexpected vcut state: %s", parsed.Status.VcutState)
	}
}

func TestFormatJSONTimestampsUTC(t *testing.T) {
	loc, _ := time.LoadLocation("America/New_York")
	start := time.Date(2026, 2, 3, 10, 30, 0, 0, loc) // 15:30 UTC
	tr := NewTracker(start, testConfig())

	data := FormatJSON(tr.Snapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Status.StartTime != "2026-02-03T15:30:00Z" {
		t.Errorf("expected UTC start time, got %s", parsed.Status.StartTime)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(time.Now(), testConfig())
	tr.Update(testUnitSnapshot(), EventCounts{VcutChanges: 1})

	snap := tr.Snapshot()
	tr.Update(core.Snapshot{Vcut: vigilance.VcutBrakeNoReset}, EventCounts{VcutChanges: 2})

	if snap.Unit.Vcut != vigilance.VcutFirstWarning {
		t.Error("snapshot should not see later updates")
	}
	if snap.Counts.VcutChanges != 1 {
		t.Error("snapshot counts should not see later updates")
	}
}
