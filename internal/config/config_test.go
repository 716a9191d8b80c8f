package config

import (
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Backends = []Backend{
		{Name: "claude", Command: "claude", Args: []string{"-p"}, Role: "design"},
		{Name: "codex", Command: "codex", Args: []string{"exec"}, Timeout: 120_000},
	}
	cfg.StrictAudit = true

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Backends) != 2 {
		t.Fatalf("got %d backends, want 2", len(loaded.Backends))
	}
	if loaded.Backends[1].Timeout != 120_000 {
		t.Errorf("codex timeout = %d, want 120000", loaded.Backends[1].Timeout)
	}
	if !loaded.StrictAudit {
		t.Error("strict_audit did not survive the round trip")
	}
	if loaded.DefaultLevel != "medium" {
		t.Errorf("default level = %q, want medium", loaded.DefaultLevel)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Fatal("expected an error when no config exists")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.FailureThreshold = -1 },
			wantErr: "failure_threshold",
		},
		{
			name:    "negative reset timeout",
			mutate:  func(c *Config) { c.ResetTimeoutMs = -1 },
			wantErr: "reset_timeout_ms",
		},
		{
			name: "empty backend name",
			mutate: func(c *Config) {
				c.Backends = []Backend{{Name: "", Command: "claude"}}
			},
			wantErr: "empty name",
		},
		{
			name: "missing command",
			mutate: func(c *Config) {
				c.Backends = []Backend{{Name: "claude"}}
			},
			wantErr: "no command",
		},
		{
			name: "duplicate backend",
			mutate: func(c *Config) {
				c.Backends = []Backend{
					{Name: "claude", Command: "claude"},
					{Name: "claude", Command: "claude2"},
				}
			},
			wantErr: "duplicate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestBackendLookup(t *testing.T) {
	cfg := Default()
	cfg.Backends = []Backend{{Name: "claude", Command: "claude"}}

	if b := cfg.Backend("claude"); b == nil || b.Command != "claude" {
		t.Errorf("Backend(claude) = %+v", b)
	}
	if b := cfg.Backend("ghost"); b != nil {
		t.Errorf("Backend(ghost) = %+v, want nil", b)
	}
}

func TestBreakerTuningDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.BreakerThreshold(); got != DefaultFailureThreshold {
		t.Errorf("BreakerThreshold = %d, want %d", got, DefaultFailureThreshold)
	}
	if got := cfg.BreakerResetMs(); got != DefaultResetTimeoutMs {
		t.Errorf("BreakerResetMs = %d, want %d", got, DefaultResetTimeoutMs)
	}

	cfg.FailureThreshold = 2
	cfg.ResetTimeoutMs = int(10 * time.Second / time.Millisecond)
	if got := cfg.BreakerThreshold(); got != 2 {
		t.Errorf("BreakerThreshold = %d, want 2", got)
	}
	if got := cfg.BreakerResetMs(); got != 10_000 {
		t.Errorf("BreakerResetMs = %d, want 10000", got)
	}
}
