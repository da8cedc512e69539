package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/Swind/go-job-system/core"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Name != "jobsystem" || cfg.Backend != core.BackendFiber {
		t.Errorf("identity = (%q, %q)", cfg.Name, cfg.Backend)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Workers = %d, want %d", cfg.Workers, runtime.NumCPU())
	}
	if cfg.IdleBackoffMax != 2*time.Millisecond {
		t.Errorf("IdleBackoffMax = %v, want 2ms", cfg.IdleBackoffMax)
	}
	if cfg.StatsOutput != nil {
		t.Errorf("StatsOutput = %v, want nil", cfg.StatsOutput)
	}
}

// TestLoad_FileAndEnvironment verifies source precedence
// Given: A YAML file and an environment override for workers
// When: The config is loaded
// Then: File values apply and the environment wins where both are set
func TestLoad_FileAndEnvironment(t *testing.T) {
	path := writeConfigFile(t, "jobs.yaml", `
name: render
backend: thread
workers: 3
max_fibers: 64
exhaustion_policy: wait
idle_backoff_max: 5ms
stats_output: stderr
`)
	t.Setenv("JOBSYSTEM_WORKERS", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Name != "render" || cfg.Backend != core.BackendThread {
		t.Errorf("identity = (%q, %q), want (render, thread)", cfg.Name, cfg.Backend)
	}
	if cfg.Workers != 7 {
		t.Errorf("Workers = %d, want 7 from the environment", cfg.Workers)
	}
	if cfg.MaxFibers != 64 || cfg.ExhaustionPolicy != core.ExhaustionWait {
		t.Errorf("fibers = (%d, %q), want (64, wait)", cfg.MaxFibers, cfg.ExhaustionPolicy)
	}
	if cfg.IdleBackoffMax != 5*time.Millisecond {
		t.Errorf("IdleBackoffMax = %v, want 5ms", cfg.IdleBackoffMax)
	}
	if cfg.StatsOutput != os.Stderr {
		t.Errorf("StatsOutput = %v, want stderr", cfg.StatsOutput)
	}
	if cfg.StackSize != 65536 {
		t.Errorf("StackSize = %d, want default 65536", cfg.StackSize)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "backend: green\n"},
		{"tiny stack", "stack_size: 16\n"},
		{"unknown stats output", "stats_output: syslog\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, "bad.yaml", tt.body)
			if _, err := Load(path); !errors.Is(err, core.ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("Load() of missing file succeeded")
	}
}
