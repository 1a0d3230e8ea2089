package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestDefaultIsACopy(t *testing.T) {
	a := Default()
	a.Channels[0].Name = "mangled"
	a.Timing.Stage1Samples = 99

	b := Default()
	if b.Channels[0].Name == "mangled" {
		t.Error("mutating one Default() result leaked into the next")
	}
	if b.Timing.Stage1Samples != 4 {
		t.Errorf("expected stage1_samples 4, got %d", b.Timing.Stage1Samples)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Timing.SyncTickNs != 500_000 {
		t.Errorf("expected 500us sync tick, got %d", cfg.Timing.SyncTickNs)
	}
	if len(cfg.Channels) != 13 {
		t.Errorf("expected 13 default channels, got %d", len(cfg.Channels))
	}
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vcu.yaml")
	body := "timing:\n  stage1_samples: 6\nserial:\n  polling_period_ns: 50000000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timing.Stage1Samples != 6 {
		t.Errorf("overlay lost: stage1_samples=%d", cfg.Timing.Stage1Samples)
	}
	// Untouched fields keep their defaults.
	if cfg.Timing.Stage2Samples != 10_000 {
		t.Errorf("default lost: stage2_samples=%d", cfg.Timing.Stage2Samples)
	}
	if cfg.Serial.PollingPeriodNs != 50_000_000 {
		t.Errorf("overlay lost: polling_period_ns=%d", cfg.Serial.PollingPeriodNs)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejectsBitCollision(t *testing.T) {
	cfg := Default()
	cfg.Channels[0].FaultBit = cfg.Frame.MajorFault
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected frame bit collision error")
	}
}

func TestValidateRejectsOutOfRangeBit(t *testing.T) {
	cfg := Default()
	cfg.Outputs[0].FaultBit = FrameBits
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected out-of-range bit error")
	}
}

func TestValidateRejectsBrokenPair(t *testing.T) {
	cfg := Default()
	for i := range cfg.Channels {
		if cfg.Channels[i].Name == "vigilance_2" {
			cfg.Channels[i].Group = "ch1"
		}
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected paired-role validation error")
	}
}

func TestValidateRejectsUnreachableAckWindow(t *testing.T) {
	cfg := Default()
	// Two conditioned edges are 2s apart at the default stage-2 debounce;
	// a 2s window can never pair them.
	cfg.Timing.AckWindowTicks = 4_000
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected ack window validation error")
	}
}

func TestValidateRejectsShortPollingPeriod(t *testing.T) {
	cfg := Default()
	cfg.Serial.PollingPeriodNs = cfg.Serial.BitClockPeriodNs * (FrameBits - 1)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected polling period error")
	}
}
