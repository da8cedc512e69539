package core

import (
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const idleBackoffInitial = 20 * time.Microsecond

// worker is one scheduling loop of a FiberJobSystem. Its goroutine is wrapped
// by the root fiber; job fibers switch back to it when they finish or wait.
type worker struct {
	id      int
	system  *FiberJobSystem
	queue   *WorkQueue
	root    *Fiber
	state   atomic.Int32
	backoff *backoff.ExponentialBackOff
}

func newWorker(id int, s *FiberJobSystem) *worker {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = idleBackoffInitial
	b.MaxInterval = s.cfg.IdleBackoffMax
	b.Multiplier = 2
	b.Reset()

	w := &worker{
		id:      id,
		system:  s,
		queue:   NewWorkQueue(),
		root:    newRootFiber(0),
		backoff: b,
	}
	w.root.worker = w
	return w
}

// State returns where the worker is in its loop.
func (w *worker) State() WorkerState { return WorkerState(w.state.Load()) }

func (w *worker) setState(st WorkerState) { w.state.Store(int32(st)) }

// loop is the main loop for each worker
func (w *worker) loop() {
	s := w.system
	defer s.wg.Done()

	for {
		w.setState(WorkerFetching)
		if e, ok := s.tryPop(w); ok {
			if w.run(e) {
				w.backoff.Reset()
			}
			s.pending.Add(-1)
			continue
		}

		w.setState(WorkerIdle)
		if s.tryStop() {
			return
		}
		w.idle()
	}
}

// idle parks the worker until new work is signalled or the next backoff
// interval elapses, whichever comes first.
func (w *worker) idle() {
	w.waitFor(nil)
}

// waitFor is idle that also returns when released is closed.
func (w *worker) waitFor(released <-chan struct{}) {
	t := time.NewTimer(w.backoff.NextBackOff())
	defer t.Stop()

	select {
	case <-w.system.signal:
	case <-released:
	case <-t.C:
	}
}

// run switches into the fiber for e and, once control is back, settles the
// fiber: reclaim it if Dead, park it on its counter if it is waiting. It
// returns false when e had to be requeued because no fiber was free.
func (w *worker) run(e entry) bool {
	s := w.system

	f := e.fiber
	kind := SwitchResume
	if !e.isResume() {
		var (
			released <-chan struct{}
			err      error
		)
		f, released, err = s.pool.TryAcquire()
		if err != nil {
			if s.cfg.ExhaustionPolicy == ExhaustionWait {
				s.logger.Debug("fiber pool exhausted, requeueing job", F("worker", w.id))
				s.requeue(w, e)
				w.waitFor(released)
				return false
			}
			s.logger.Error("fiber pool exhausted", F("name", s.cfg.Name), F("worker", w.id), F("error", err))
			fatal(err)
		}
		f.entry = e
		kind = SwitchStart
		w.setState(WorkerRunning)
	} else {
		if !f.entry.bootstrap {
			s.suspended.Add(-1)
		}
		w.setState(WorkerSwitching)
	}

	f.worker = w
	s.metrics.RecordFiberSwitch(s.cfg.Name, kind)
	SwitchTo(w.root, f)
	w.setState(WorkerFetching)

	switch {
	case f.Status() == FiberDead:
		s.pool.Release(f)
	case f.waitOn != nil:
		c := f.waitOn
		f.waitOn = nil
		if !f.entry.bootstrap {
			s.suspended.Add(1)
		}
		if !c.park(f) {
			// The batch finished before the fiber was parked.
			s.push(w, entry{fiber: f})
		}
	default:
		fatalf(ErrInvalidSwitch, "fiber %d yielded while %s without waiting", f.id, f.Status())
	}
	return true
}
