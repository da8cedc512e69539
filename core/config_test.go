package core

import (
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Name != "jobsystem" || cfg.Backend != BackendFiber {
		t.Errorf("identity = (%q, %q), want (jobsystem, fiber)", cfg.Name, cfg.Backend)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, runtime.NumCPU())
	}
	if cfg.StackSize != 65536 || cfg.MaxFibers != 4096 || cfg.HistorySize != 128 {
		t.Errorf("sizes = (%d, %d, %d), want (65536, 4096, 128)", cfg.StackSize, cfg.MaxFibers, cfg.HistorySize)
	}
	if cfg.ExhaustionPolicy != ExhaustionFatal || cfg.IdleBackoffMax != 2*time.Millisecond {
		t.Errorf("policy=%q backoff=%v", cfg.ExhaustionPolicy, cfg.IdleBackoffMax)
	}
	if cfg.Logger == nil || cfg.PanicHandler == nil || cfg.Metrics == nil {
		t.Error("default hooks not set")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_ApplyDefaultsKeepsExplicitValues(t *testing.T) {
	logger := NewNoOpLogger()
	cfg := Config{Name: "custom", Workers: 3, StackSize: 8192, Logger: logger}

	if err := cfg.ApplyDefaults(); err != nil {
		t.Fatalf("ApplyDefaults() error = %v", err)
	}
	if cfg.Name != "custom" || cfg.Workers != 3 || cfg.StackSize != 8192 {
		t.Errorf("explicit values overwritten: %+v", cfg)
	}
	if cfg.Logger != logger {
		t.Error("explicit logger replaced")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"unknown backend", func(c *Config) { c.Backend = "green" }},
		{"unknown policy", func(c *Config) { c.ExhaustionPolicy = "retry" }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
		{"tiny stack", func(c *Config) { c.StackSize = 1024 }},
		{"no fibers", func(c *Config) { c.MaxFibers = -1 }},
		{"no history", func(c *Config) { c.HistorySize = -1 }},
		{"zero backoff", func(c *Config) { c.IdleBackoffMax = -time.Millisecond }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}
