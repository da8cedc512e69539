package core

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/creasty/defaults"
)

// Backend selects the JobSystem implementation at construction time.
type Backend string

const (
	// BackendFiber multiplexes jobs onto fibers over a fixed worker set.
	BackendFiber Backend = "fiber"

	// BackendThread runs every job on its own goroutine and blocks waiters.
	BackendThread Backend = "thread"
)

// ExhaustionPolicy decides what a worker does when the fiber pool is empty.
type ExhaustionPolicy string

const (
	// ExhaustionFatal aborts: the pool limit was sized too small.
	ExhaustionFatal ExhaustionPolicy = "fatal"

	// ExhaustionWait requeues the fresh job and keeps resuming suspended
	// fibers until one is released. MaxFibers must exceed the number of
	// waiters that can be suspended at once, or the system stalls.
	ExhaustionWait ExhaustionPolicy = "wait"
)

const minStackSize = 4 << 10

// Config holds the options of a job system. Zero values are replaced by the
// `default` tags; Workers 0 means one worker per CPU.
type Config struct {
	Name             string           `default:"jobsystem" mapstructure:"name"`
	Backend          Backend          `default:"fiber" mapstructure:"backend"`
	Workers          int              `mapstructure:"workers"`
	StackSize        int              `default:"65536" mapstructure:"stack_size"`
	MaxFibers        int              `default:"4096" mapstructure:"max_fibers"`
	ExhaustionPolicy ExhaustionPolicy `default:"fatal" mapstructure:"exhaustion_policy"`
	HistorySize      int              `default:"128" mapstructure:"history_size"`
	IdleBackoffMax   time.Duration    `default:"2ms" mapstructure:"idle_backoff_max"`

	// StatsOutput receives lifetime statistics on Shutdown when set.
	StatsOutput io.Writer `mapstructure:"-"`

	Logger       Logger       `mapstructure:"-"`
	PanicHandler PanicHandler `mapstructure:"-"`
	Metrics      Metrics      `mapstructure:"-"`
}

// DefaultConfig returns a config with every default applied.
func DefaultConfig() Config {
	var cfg Config
	if err := cfg.ApplyDefaults(); err != nil {
		panic(err)
	}
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config: apply defaults: %w", err)
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Logger == nil {
		c.Logger = NewDefaultLogger()
	}
	if c.PanicHandler == nil {
		c.PanicHandler = &DefaultPanicHandler{}
	}
	if c.Metrics == nil {
		c.Metrics = &NilMetrics{}
	}
	return nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFiber, BackendThread:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	switch c.ExhaustionPolicy {
	case ExhaustionFatal, ExhaustionWait:
	default:
		return fmt.Errorf("%w: unknown exhaustion policy %q", ErrInvalidConfig, c.ExhaustionPolicy)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.StackSize < minStackSize {
		return fmt.Errorf("%w: stack size must be at least %d, got %d", ErrInvalidConfig, minStackSize, c.StackSize)
	}
	if c.MaxFibers < 1 {
		return fmt.Errorf("%w: max fibers must be at least 1, got %d", ErrInvalidConfig, c.MaxFibers)
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("%w: history size must be at least 1, got %d", ErrInvalidConfig, c.HistorySize)
	}
	if c.IdleBackoffMax <= 0 {
		return fmt.Errorf("%w: idle backoff max must be positive", ErrInvalidConfig)
	}
	return nil
}

// prepare applies defaults and validates.
func (c Config) prepare() (Config, error) {
	if err := c.ApplyDefaults(); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}
