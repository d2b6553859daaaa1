package config

import (
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port(), DefaultPort)
	}
	if cfg.BatchSize() != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", cfg.BatchSize(), DefaultBatchSize)
	}
	if cfg.SweepInterval() != 5*time.Second {
		t.Errorf("SweepInterval = %v, want 5s", cfg.SweepInterval())
	}
	if cfg.SettleDelay() != 2*time.Second {
		t.Errorf("SettleDelay = %v, want 2s", cfg.SettleDelay())
	}
	if got := cfg.SupportedFormats(); len(got) != 5 || got[0] != "jpg" || got[3] != "pdf" {
		t.Errorf("SupportedFormats = %v", got)
	}
	if cfg.MaxFileSizeBytes() != 10*1024*1024 {
		t.Errorf("MaxFileSizeBytes = %d", cfg.MaxFileSizeBytes())
	}
}

func TestNew_EnvOverrides(t *testing.T) {
	t.Setenv(EnvPort, "9000")
	t.Setenv(EnvBatchSize, "2")
	t.Setenv(EnvSupportedFormats, " JPG , Png ")
	t.Setenv(EnvIncomingDir, "/tmp/in")

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port())
	}
	if cfg.BatchSize() != 2 {
		t.Errorf("BatchSize = %d, want 2", cfg.BatchSize())
	}
	if got := cfg.SupportedFormats(); len(got) != 2 || got[0] != "jpg" || got[1] != "png" {
		t.Errorf("SupportedFormats = %v, want [jpg png]", got)
	}
	if cfg.IncomingDir() != "/tmp/in" {
		t.Errorf("IncomingDir = %q", cfg.IncomingDir())
	}
}

func TestNew_InvalidPort(t *testing.T) {
	t.Setenv(EnvPort, "70000")
	if _, err := New(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}

	t.Setenv(EnvPort, "abc")
	if _, err := New(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}
}

func TestNew_TimeoutOrdering(t *testing.T) {
	t.Setenv(EnvModelTimeoutS, "600")
	t.Setenv(EnvFileTimeoutS, "300")

	if _, err := New(); err == nil {
		t.Fatal("expected error when file timeout < model timeout")
	}

	t.Setenv(EnvFileTimeoutS, "600")
	cfg, err := New()
	if err != nil {
		t.Fatalf("equal timeouts should be accepted: %v", err)
	}
	if cfg.FileTimeout() != cfg.ModelTimeout() {
		t.Errorf("timeouts = %v / %v", cfg.FileTimeout(), cfg.ModelTimeout())
	}
}

func TestNew_InvalidBatchSize(t *testing.T) {
	t.Setenv(EnvBatchSize, "0")
	if _, err := New(); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}
