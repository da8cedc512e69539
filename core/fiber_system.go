package core

import (
	"context"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FiberJobSystem runs jobs on pooled fibers over a fixed set of workers.
//
// A job that calls WaitForJobs suspends its own fiber and hands the worker
// back to the scheduling loop, so nested waits never park a worker. The
// waiting fiber is resumed by whichever worker finishes the last job of its
// batch.
type FiberJobSystem struct {
	id  string
	cfg Config

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics

	workers []*worker
	pool    *FiberPool
	history *jobHistory

	signal chan struct{}
	next   atomic.Uint64 // round-robin cursor for AddJobs

	// pending counts entries pushed and not yet finished by a worker.
	pending atomic.Int64

	// lifecycle guards stopped: pushes hold it shared, the worker that
	// observes the drained state takes it exclusively.
	lifecycle    sync.RWMutex
	stopped      bool
	shuttingDown atomic.Bool
	running      atomic.Bool
	wg           sync.WaitGroup
	shutdownOnce sync.Once

	dispatched atomic.Uint64
	completed  atomic.Uint64
	panicked   atomic.Uint64
	rejected   atomic.Uint64
	stolen     atomic.Uint64
	active     atomic.Int64
	suspended  atomic.Int64
}

var _ JobSystem = (*FiberJobSystem)(nil)

// NewFiberJobSystem validates cfg and starts the workers.
func NewFiberJobSystem(cfg Config) (*FiberJobSystem, error) {
	cfg.Backend = BackendFiber
	cfg, err := cfg.prepare()
	if err != nil {
		return nil, err
	}

	s := &FiberJobSystem{
		id:           uuid.NewString(),
		cfg:          cfg,
		logger:       cfg.Logger,
		panicHandler: cfg.PanicHandler,
		metrics:      cfg.Metrics,
		history:      newJobHistory(cfg.HistorySize),
		signal:       make(chan struct{}, cfg.Workers*2),
	}

	base := context.Background()
	s.pool = NewFiberPool(cfg.MaxFibers, cfg.StackSize, func(id uint64) *Fiber {
		return newFiber(id, base, s.runFiber)
	})

	s.workers = make([]*worker, cfg.Workers)
	for i := range s.workers {
		s.workers[i] = newWorker(i, s)
	}

	s.running.Store(true)
	for _, w := range s.workers {
		s.wg.Add(1)
		go w.loop()
	}

	s.logger.Info("job system started",
		F("name", cfg.Name),
		F("id", s.id),
		F("backend", string(BackendFiber)),
		F("workers", cfg.Workers),
		F("max_fibers", cfg.MaxFibers),
	)
	return s, nil
}

// ID returns the unique identifier of this system instance.
func (s *FiberJobSystem) ID() string { return s.id }

// Name returns the configured name.
func (s *FiberJobSystem) Name() string { return s.cfg.Name }

// WorkerCount returns the number of workers.
func (s *FiberJobSystem) WorkerCount() int { return len(s.workers) }

// AddJobs submits jobs fire-and-forget, spread round-robin over the workers.
// Nil jobs are ignored.
func (s *FiberJobSystem) AddJobs(jobs ...Job) {
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if !s.push(nil, entry{job: job}) {
			s.reject("stopped")
			continue
		}
		s.dispatched.Add(1)
	}
}

// WaitForJobs submits jobs and returns once all of them have run.
//
// When ctx belongs to a job of this system, the jobs are queued on the
// current worker and the calling fiber is suspended; the worker goes on with
// other work. Any other ctx is a bootstrap call: the wait is wrapped in a job
// and the calling goroutine blocks until it finishes.
func (s *FiberJobSystem) WaitForJobs(ctx context.Context, jobs ...Job) {
	jobs = compactJobs(jobs)
	if len(jobs) == 0 {
		return
	}

	f := CurrentFiber(ctx)
	if f == nil || f.worker == nil || f.worker.system != s {
		s.bootstrapWait(jobs)
		return
	}
	if st := f.Status(); st != FiberRunning {
		fatalf(ErrInvalidSwitch, "wait from fiber %d while %s", f.id, st)
	}

	w := f.worker
	c := NewCounter(len(jobs))
	for _, job := range jobs {
		if !s.push(w, entry{job: job, counter: c}) {
			// Unreachable while f holds a fiber, kept so the count stays exact.
			s.reject("stopped")
			c.Decrement()
			continue
		}
		s.dispatched.Add(1)
	}
	if c.Value() == 0 {
		return
	}

	f.waitOn = c
	f.suspensions++
	s.metrics.RecordFiberSwitch(s.cfg.Name, SwitchSuspend)
	SwitchTo(f, w.root)
}

// bootstrapWait runs the wait inside a fiber and blocks the caller until it
// is done.
func (s *FiberJobSystem) bootstrapWait(jobs []Job) {
	done := make(chan struct{})
	e := entry{
		bootstrap: true,
		job: func(ctx context.Context) {
			defer close(done)
			s.WaitForJobs(ctx, jobs...)
		},
	}
	if !s.push(nil, e) {
		for range jobs {
			s.reject("stopped")
		}
		return
	}
	<-done
}

// push queues e on w, or round-robin when w is nil, and wakes an idle
// worker. It returns false once the system has stopped.
func (s *FiberJobSystem) push(w *worker, e entry) bool {
	return s.enqueue(w, e, true)
}

// requeue puts back a job that found the fiber pool empty. No worker is
// woken: nothing it could do has changed until a fiber is released.
func (s *FiberJobSystem) requeue(w *worker, e entry) {
	s.enqueue(w, e, false)
}

func (s *FiberJobSystem) enqueue(w *worker, e entry, wake bool) bool {
	s.lifecycle.RLock()
	defer s.lifecycle.RUnlock()

	if s.stopped {
		return false
	}
	if w == nil {
		w = s.workers[int(s.next.Add(1)%uint64(len(s.workers)))]
	}
	s.pending.Add(1)
	depth := w.queue.Push(e)
	s.metrics.RecordQueueDepth(s.cfg.Name, w.id, depth)

	if !wake {
		return true
	}
	select {
	case s.signal <- struct{}{}:
	default:
		// Signal channel full, every idle worker will look at the queues anyway
	}
	return true
}

func (s *FiberJobSystem) reject(reason string) {
	s.rejected.Add(1)
	s.metrics.RecordJobRejected(s.cfg.Name, reason)
	s.logger.Warn("job rejected", F("name", s.cfg.Name), F("reason", reason))
}

// tryPop takes from w's own queue first, then steals from the back of the
// other queues starting at a random victim.
func (s *FiberJobSystem) tryPop(w *worker) (entry, bool) {
	if e, ok := w.queue.Pop(); ok {
		return e, true
	}

	n := len(s.workers)
	if n == 1 {
		return entry{}, false
	}
	start := rand.IntN(n)
	for i := range n {
		victim := s.workers[(start+i)%n]
		if victim == w {
			continue
		}
		if e, ok := victim.queue.Steal(); ok {
			s.stolen.Add(1)
			return e, true
		}
	}
	return entry{}, false
}

// tryStop reports whether the worker loop may exit: shutdown was requested
// and no entry or fiber is outstanding.
func (s *FiberJobSystem) tryStop() bool {
	if !s.shuttingDown.Load() {
		return false
	}

	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.stopped {
		return true
	}
	if s.pending.Load() != 0 || s.pool.InUse() != 0 {
		return false
	}
	s.stopped = true
	s.wakeAll()
	return true
}

func (s *FiberJobSystem) wakeAll() {
	for range s.workers {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

// runFiber is the body every pooled fiber executes for a fresh entry.
func (s *FiberJobSystem) runFiber(f *Fiber) {
	e := f.entry
	startedAt := time.Now()
	if !e.bootstrap {
		s.active.Add(1)
	}

	defer func() {
		panicked := false
		if rec := recover(); rec != nil {
			if IsFatal(rec) {
				s.logger.Error("scheduler contract violation", F("name", s.cfg.Name), F("error", rec))
				panic(rec)
			}
			panicked = true
			s.panicked.Add(1)
			s.panicHandler.HandlePanic(f.ctx, s.cfg.Name, f.WorkerID(), rec, debug.Stack())
			s.metrics.RecordJobPanic(s.cfg.Name, rec)
		}

		finishedAt := time.Now()
		if !e.bootstrap {
			s.active.Add(-1)
			s.completed.Add(1)
			s.metrics.RecordJobDuration(s.cfg.Name, finishedAt.Sub(startedAt))
			s.history.Add(JobExecutionRecord{
				FiberID:     f.id,
				Name:        resolveJobName(e.job),
				WorkerID:    f.WorkerID(),
				StartedAt:   startedAt,
				FinishedAt:  finishedAt,
				Duration:    finishedAt.Sub(startedAt),
				Suspensions: f.suspensions,
				Panicked:    panicked,
			})
		}

		if e.counter != nil {
			if waiter, zero := e.counter.decrement(); zero && waiter != nil {
				s.push(f.worker, entry{fiber: waiter})
			}
		}
	}()

	e.job(f.ctx)
}

// Shutdown drains every queued job and suspended fiber, then stops the
// workers and releases the fibers. It must not be called from a job.
func (s *FiberJobSystem) Shutdown() {
	s.shutdownOnce.Do(func() {
		s.logger.Info("job system shutting down", F("name", s.cfg.Name), F("pending", s.pending.Load()))

		s.shuttingDown.Store(true)
		s.wakeAll()
		s.wg.Wait()
		s.pool.Close()
		s.running.Store(false)

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
			F("stolen", stats.Stolen),
		)
	})
}

// Stats returns current observability data for this system.
func (s *FiberJobSystem) Stats() SystemStats {
	states := make([]WorkerState, len(s.workers))
	queued := 0
	for i, w := range s.workers {
		states[i] = w.State()
		queued += w.queue.Len()
	}
	suspended := int(s.suspended.Load())

	return SystemStats{
		ID:           s.id,
		Name:         s.cfg.Name,
		Backend:      BackendFiber,
		Workers:      len(s.workers),
		Running:      s.running.Load(),
		Queued:       queued,
		Active:       max(int(s.active.Load())-suspended, 0),
		Suspended:    suspended,
		Dispatched:   s.dispatched.Load(),
		Completed:    s.completed.Load(),
		Panicked:     s.panicked.Load(),
		Rejected:     s.rejected.Load(),
		Stolen:       s.stolen.Load(),
		WorkerStates: states,
		FiberPool:    s.pool.Stats(),
	}
}

// RecentJobs returns completed job execution records in newest-first order.
func (s *FiberJobSystem) RecentJobs(limit int) []JobExecutionRecord {
	return s.history.Recent(limit)
}

func compactJobs(jobs []Job) []Job {
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job != nil {
			out = append(out, job)
		}
	}
	return out
}
