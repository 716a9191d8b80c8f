package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Backend describes one external AI CLI backend warden can invoke.
type Backend struct {
	Name    string   `json:"name"`              // logical name, e.g. "architect"
	Command string   `json:"command"`           // binary to execute
	Args    []string `json:"args,omitempty"`    // fixed arguments prepended to every invocation
	Role    string   `json:"role,omitempty"`    // free-form description for humans
	Timeout int      `json:"timeout_ms,omitempty"` // default invocation timeout, 0 means DefaultTimeoutMs
}

// Config represents the flat warden configuration.
type Config struct {
	Version          string    `json:"version"`
	Backends         []Backend `json:"backends"`
	FailureThreshold int       `json:"failure_threshold,omitempty"` // consecutive failures before a circuit opens
	ResetTimeoutMs   int       `json:"reset_timeout_ms,omitempty"`  // open-state cooldown before a recovery probe
	DefaultLevel     string    `json:"default_level,omitempty"`     // autonomy level used when the caller passes none
	StrictAudit      bool      `json:"strict_audit,omitempty"`      // fail closed when the audit append fails
}

// Defaults used when the corresponding config field is zero.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeoutMs   = 60_000
	DefaultTimeoutMs        = 300_000
	DefaultLevel            = "medium"
)

// Default returns a config with sane defaults and no backends.
func Default() *Config {
	return &Config{
		Version:          "1",
		FailureThreshold: DefaultFailureThreshold,
		ResetTimeoutMs:   DefaultResetTimeoutMs,
		DefaultLevel:     DefaultLevel,
	}
}

// Load reads .warden/config.json from the specified directory.
// Resolution order: cwd only (no home fallback).
// Returns error if no config found - caller should handle accordingly.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ".warden", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes config.json to the .warden directory under dir.
func Save(dir string, cfg *Config) error {
	wardenDir := filepath.Join(dir, ".warden")
	if err := os.MkdirAll(wardenDir, 0755); err != nil {
		return fmt.Errorf("failed to create .warden dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(wardenDir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate checks tuning values for nonsense before they reach the registry.
func (c *Config) Validate() error {
	if c.FailureThreshold < 0 {
		return fmt.Errorf("failure_threshold must be >= 0, got %d", c.FailureThreshold)
	}
	if c.ResetTimeoutMs < 0 {
		return fmt.Errorf("reset_timeout_ms must be >= 0, got %d", c.ResetTimeoutMs)
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backend with empty name")
		}
		if b.Command == "" {
			return fmt.Errorf("backend %s has no command", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name: %s", b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}

// Backend returns the backend definition for the given name, or nil.
func (c *Config) Backend(name string) *Backend {
	for i := range c.Backends {
		if c.Backends[i].Name == name {
			return &c.Backends[i]
		}
	}
	return nil
}

// BreakerThreshold returns the configured failure threshold, or the default.
func (c *Config) BreakerThreshold() int {
	if c.FailureThreshold == 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

// BreakerResetMs returns the configured reset timeout in ms, or the default.
func (c *Config) BreakerResetMs() int {
	if c.ResetTimeoutMs == 0 {
		return DefaultResetTimeoutMs
	}
	return c.ResetTimeoutMs
}
