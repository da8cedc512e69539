package jobsystem

import (
	"fmt"

	"github.com/Swind/go-job-system/core"
)

// New builds the job system selected by cfg.Backend and starts its workers.
// The caller owns the returned handle and must call Shutdown on teardown.
func New(cfg Config) (JobSystem, error) {
	switch cfg.Backend {
	case "", BackendFiber:
		s, err := core.NewFiberJobSystem(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendThread:
		s, err := core.NewThreadJobSystem(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}
}

// NewFiberJobSystem creates a fiber backend directly, exposing its
// fiber-specific accessors such as RecentJobs.
func NewFiberJobSystem(cfg Config) (*core.FiberJobSystem, error) {
	return core.NewFiberJobSystem(cfg)
}

// NewThreadJobSystem creates a thread backend directly.
func NewThreadJobSystem(cfg Config) (*core.ThreadJobSystem, error) {
	return core.NewThreadJobSystem(cfg)
}
