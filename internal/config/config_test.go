package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CAMERA_FRAME_INTERVAL_MS", "")
	t.Setenv("MATCH_THRESHOLD", "")

	cfg := Load()

	if cfg.Match.Threshold != 0.35 {
		t.Errorf("expected default threshold 0.35, got %v", cfg.Match.Threshold)
	}
	if cfg.Camera.FrameInterval != 100*time.Millisecond {
		t.Errorf("expected default frame interval 100ms, got %v", cfg.Camera.FrameInterval)
	}
	if cfg.Camera.MaxConsecutiveFailures != 10 {
		t.Errorf("expected default failure budget 10, got %d", cfg.Camera.MaxConsecutiveFailures)
	}
	if cfg.Pipeline.Cooldown != 5*time.Second {
		t.Errorf("expected default cooldown 5s, got %v", cfg.Pipeline.Cooldown)
	}
	if cfg.Detector.Dim != 512 {
		t.Errorf("expected default detector dim 512, got %d", cfg.Detector.Dim)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MATCH_THRESHOLD", "0.5")
	t.Setenv("CAMERA_FRAME_INTERVAL_MS", "250")
	t.Setenv("LEDGER_BACKEND", "postgres")

	cfg := Load()

	if cfg.Match.Threshold != 0.5 {
		t.Errorf("expected threshold 0.5, got %v", cfg.Match.Threshold)
	}
	if cfg.Camera.FrameInterval != 250*time.Millisecond {
		t.Errorf("expected frame interval 250ms, got %v", cfg.Camera.FrameInterval)
	}
	if cfg.Ledger.Backend != "postgres" {
		t.Errorf("expected ledger backend postgres, got %s", cfg.Ledger.Backend)
	}
}

func TestEnvInt_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  int
	}{
		{"empty", "", 7},
		{"garbage", "abc", 7},
		{"negative", "-3", 7},
		{"zero", "0", 7},
		{"valid", "42", 42},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tc.value)
			if got := envInt("TEST_ENV_INT", 7); got != tc.want {
				t.Errorf("envInt(%q) = %d; want %d", tc.value, got, tc.want)
			}
		})
	}
}
