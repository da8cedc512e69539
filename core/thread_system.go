package core

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type threadSlotKeyType struct{}

var threadSlotKey threadSlotKeyType

// ThreadJobSystem runs every job on its own goroutine. WaitForJobs blocks the
// calling goroutine on the batch's errgroup; no fibers are involved.
//
// At most Workers jobs execute at once. A job blocked in WaitForJobs gives its
// slot back for the duration of the wait, so nesting never deadlocks; the cost
// is one parked goroutine per waiting job.
type ThreadJobSystem struct {
	id  string
	cfg Config

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics

	slots *semaphore.Weighted
	base  context.Context

	// lifecycle guards outstanding and closed. drained is broadcast each
	// time outstanding drops to zero.
	lifecycle    sync.Mutex
	drained      *sync.Cond
	outstanding  int
	closed       bool
	shutdownOnce sync.Once

	dispatched atomic.Uint64
	completed  atomic.Uint64
	panicked   atomic.Uint64
	rejected   atomic.Uint64
	active     atomic.Int64
	waiting    atomic.Int64
}

var _ JobSystem = (*ThreadJobSystem)(nil)

// NewThreadJobSystem validates cfg and returns a ready system.
func NewThreadJobSystem(cfg Config) (*ThreadJobSystem, error) {
	cfg.Backend = BackendThread
	cfg, err := cfg.prepare()
	if err != nil {
		return nil, err
	}

	s := &ThreadJobSystem{
		id:           uuid.NewString(),
		cfg:          cfg,
		logger:       cfg.Logger,
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		slots:        semaphore.NewWeighted(int64(cfg.Workers)),
	}
	s.drained = sync.NewCond(&s.lifecycle)
	s.base = context.WithValue(context.Background(), threadSlotKey, s)

	s.logger.Info("job system started",
		F("name", cfg.Name),
		F("id", s.id),
		F("backend", string(BackendThread)),
		F("workers", cfg.Workers),
	)
	return s, nil
}

// ID returns the unique identifier of this system instance.
func (s *ThreadJobSystem) ID() string { return s.id }

// Name returns the configured name.
func (s *ThreadJobSystem) Name() string { return s.cfg.Name }

// admit counts n jobs as outstanding. It returns false once Shutdown has
// finished draining.
func (s *ThreadJobSystem) admit(n int) bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.closed {
		return false
	}
	s.outstanding += n
	s.dispatched.Add(uint64(n))
	return true
}

func (s *ThreadJobSystem) done() {
	s.lifecycle.Lock()
	s.outstanding--
	if s.outstanding == 0 {
		s.drained.Broadcast()
	}
	s.lifecycle.Unlock()
}

// AddJobs starts each job asynchronously. Nil jobs are ignored.
func (s *ThreadJobSystem) AddJobs(jobs ...Job) {
	jobs = compactJobs(jobs)
	if len(jobs) == 0 {
		return
	}
	if !s.admit(len(jobs)) {
		s.reject(len(jobs))
		return
	}
	for _, job := range jobs {
		go func() {
			defer s.done()
			s.execute(job)
		}()
	}
}

// WaitForJobs starts each job asynchronously and blocks until all finish.
// Jobs may call it again with their own context.
func (s *ThreadJobSystem) WaitForJobs(ctx context.Context, jobs ...Job) {
	jobs = compactJobs(jobs)
	if len(jobs) == 0 {
		return
	}

	if !s.admit(len(jobs)) {
		s.reject(len(jobs))
		return
	}
	inJob := ctx != nil && ctx.Value(threadSlotKey) == s

	var g errgroup.Group
	for _, job := range jobs {
		g.Go(func() error {
			defer s.done()
			s.execute(job)
			return nil
		})
	}

	if inJob {
		s.slots.Release(1)
		s.waiting.Add(1)
	}
	_ = g.Wait()
	if inJob {
		s.waiting.Add(-1)
		s.acquire()
	}
}

func (s *ThreadJobSystem) acquire() {
	// Acquire only fails on context cancellation.
	_ = s.slots.Acquire(context.Background(), 1)
}

// execute runs job in a slot, recovering panics.
func (s *ThreadJobSystem) execute(job Job) {
	s.acquire()
	defer s.slots.Release(1)

	startedAt := time.Now()
	s.active.Add(1)
	defer func() {
		if rec := recover(); rec != nil {
			if IsFatal(rec) {
				s.logger.Error("scheduler contract violation", F("name", s.cfg.Name), F("error", rec))
				panic(rec)
			}
			s.panicked.Add(1)
			s.panicHandler.HandlePanic(s.base, s.cfg.Name, -1, rec, debug.Stack())
			s.metrics.RecordJobPanic(s.cfg.Name, rec)
		}
		s.active.Add(-1)
		s.completed.Add(1)
		s.metrics.RecordJobDuration(s.cfg.Name, time.Since(startedAt))
	}()

	job(s.base)
}

func (s *ThreadJobSystem) reject(n int) {
	s.rejected.Add(uint64(n))
	for range n {
		s.metrics.RecordJobRejected(s.cfg.Name, "stopped")
	}
	s.logger.Warn("job rejected", F("name", s.cfg.Name), F("reason", "stopped"), F("count", n))
}

// Shutdown waits for every admitted job, including the ones they spawn while
// it waits, then rejects further submissions. It must not be called from a
// job.
func (s *ThreadJobSystem) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("job system shutting down", F("name", s.cfg.Name), F("active", s.active.Load()))

		s.lifecycle.Lock()
		for s.outstanding > 0 {
			s.drained.Wait()
		}
		s.closed = true
		s.lifecycle.Unlock()

		stats := s.Stats()
		if s.cfg.StatsOutput != nil {
			if err := writeLifetimeStats(s.cfg.StatsOutput, stats); err != nil {
				s.logger.Warn("failed to write job system stats", F("name", s.cfg.Name), F("error", err))
			}
		}
		s.logger.Info("job system stopped",
			F("name", s.cfg.Name),
			F("dispatched", stats.Dispatched),
			F("completed", stats.Completed),
		)
	})
}

// Stats returns current observability data for this system.
func (s *ThreadJobSystem) Stats() SystemStats {
	s.lifecycle.Lock()
	closed := s.closed
	s.lifecycle.Unlock()

	active := int(s.active.Load())
	waiting := int(s.waiting.Load())

	return SystemStats{
		ID:         s.id,
		Name:       s.cfg.Name,
		Backend:    BackendThread,
		Workers:    s.cfg.Workers,
		Running:    !closed,
		Active:     max(active-waiting, 0),
		Suspended:  waiting,
		Dispatched: s.dispatched.Load(),
		Completed:  s.completed.Load(),
		Panicked:   s.panicked.Load(),
		Rejected:   s.rejected.Load(),
	}
}
