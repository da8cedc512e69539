// Package config loads a core.Config from a file and the environment.
//
// Keys match the mapstructure tags of core.Config (name, backend, workers,
// stack_size, max_fibers, exhaustion_policy, history_size, idle_backoff_max)
// plus stats_output, which accepts "stdout", "stderr" or nothing. Environment
// variables take precedence over the file and use the JOBSYSTEM_ prefix, e.g.
// JOBSYSTEM_WORKERS=8.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Swind/go-job-system/core"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "JOBSYSTEM"

const statsOutputKey = "stats_output"

// Load reads path (skipped when empty) and the environment into a validated
// config. Hooks such as Logger and Metrics are left for the caller to set;
// ApplyDefaults fills them when the system is built.
func Load(path string) (core.Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return core.Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return FromViper(v)
}

// New returns a viper instance with every key defaulted and environment
// lookup enabled, ready for flag binding.
func New() *viper.Viper {
	v := viper.New()

	def := core.DefaultConfig()
	v.SetDefault("name", def.Name)
	v.SetDefault("backend", string(def.Backend))
	v.SetDefault("workers", 0)
	v.SetDefault("stack_size", def.StackSize)
	v.SetDefault("max_fibers", def.MaxFibers)
	v.SetDefault("exhaustion_policy", string(def.ExhaustionPolicy))
	v.SetDefault("history_size", def.HistorySize)
	v.SetDefault("idle_backoff_max", def.IdleBackoffMax)
	v.SetDefault(statsOutputKey, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (core.Config, error) {
	var cfg core.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return core.Config{}, fmt.Errorf("config: decode: %w", err)
	}

	out, err := statsWriter(v.GetString(statsOutputKey))
	if err != nil {
		return core.Config{}, err
	}
	cfg.StatsOutput = out

	if err := cfg.ApplyDefaults(); err != nil {
		return core.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return core.Config{}, err
	}
	return cfg, nil
}

func statsWriter(name string) (io.Writer, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("%w: unknown stats output %q", core.ErrInvalidConfig, name)
	}
}
