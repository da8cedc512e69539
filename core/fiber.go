package core

import (
	"context"
	"fmt"
	"sync/atomic"
)

// FiberStatus is the lifecycle state of a Fiber.
type FiberStatus int32

const (
	// FiberReady: freshly created or returned to the pool, may be switched into
	FiberReady FiberStatus = iota

	// FiberRunning: owns its worker right now
	FiberRunning

	// FiberSuspended: switched out, waiting to be switched back into
	FiberSuspended

	// FiberDead: its job returned; waiting to be reclaimed by the pool
	FiberDead
)

func (s FiberStatus) String() string {
	switch s {
	case FiberReady:
		return "ready"
	case FiberRunning:
		return "running"
	case FiberSuspended:
		return "suspended"
	case FiberDead:
		return "dead"
	default:
		return fmt.Sprintf("FiberStatus(%d)", int32(s))
	}
}

// switchContext is the saved context of a suspended fiber. A fiber executes
// on its own goroutine and holds still on resume until another fiber switches
// into it, so the goroutine stack plays the role of the saved registers.
// Only SwitchTo touches it.
type switchContext struct {
	resume chan struct{}
}

// Fiber is a cooperatively scheduled execution context with a private stack.
//
// A worker's root fiber runs the scheduling loop on the worker goroutine
// itself. Every other fiber owns a goroutine that runs one job at a time and
// is recycled through a FiberPool.
type Fiber struct {
	id     uint64
	root   bool
	status atomic.Int32
	sw     switchContext

	// Set by the owning worker before switching in; read by the fiber after
	// the switch, so the resume channel orders the accesses.
	entry  entry
	worker *worker
	ctx    context.Context

	// waitOn is recorded by WaitForJobs just before the fiber yields, and
	// consumed by the worker once control is back on the root fiber.
	waitOn *Counter

	// suspensions counts WaitForJobs yields for the current job.
	suspensions int

	retired bool
	// exited is set when the goroutine ended inside a job (runtime.Goexit);
	// the fiber is Dead for good and the pool drops it.
	exited bool
	run    func(f *Fiber)
}

func newSwitchContext() switchContext {
	return switchContext{resume: make(chan struct{})}
}

// newRootFiber wraps the calling goroutine. It starts Running.
func newRootFiber(id uint64) *Fiber {
	f := &Fiber{id: id, root: true, sw: newSwitchContext()}
	f.status.Store(int32(FiberRunning))
	return f
}

// newFiber starts a parked goroutine that executes run each time the fiber is
// switched into with a fresh entry.
func newFiber(id uint64, base context.Context, run func(f *Fiber)) *Fiber {
	f := &Fiber{id: id, sw: newSwitchContext(), run: run}
	f.ctx = context.WithValue(base, fiberKey, f)
	f.status.Store(int32(FiberReady))
	go f.main()
	return f
}

// ID returns the fiber identifier, unique within its job system.
func (f *Fiber) ID() uint64 { return f.id }

// Status returns the current lifecycle state.
func (f *Fiber) Status() FiberStatus { return FiberStatus(f.status.Load()) }

// WorkerID returns the worker currently running f, or -1.
func (f *Fiber) WorkerID() int {
	if f.worker == nil {
		return -1
	}
	return f.worker.id
}

func (f *Fiber) setStatus(s FiberStatus) { f.status.Store(int32(s)) }

func (f *Fiber) main() {
	returned := false
	defer func() {
		if returned {
			return
		}
		// The job ended the goroutine. Hand the worker back without
		// waiting, nothing can switch into this fiber again.
		f.exited = true
		f.setStatus(FiberDead)
		transfer(f, f.worker.root)
	}()

	<-f.sw.resume
	for !f.retired {
		f.run(f)
		f.setStatus(FiberDead)
		SwitchTo(f, f.worker.root)
	}
	returned = true
}

// retire stops the goroutine of a Ready fiber.
func (f *Fiber) retire() {
	f.retired = true
	f.sw.resume <- struct{}{}
}

// SwitchTo transfers control from the running fiber from to the fiber to and
// blocks until something switches back into from.
//
// to must be Ready or Suspended. Switching into a Running or Dead fiber means
// the scheduler state is corrupt and is fatal. from is left Suspended unless
// it already finished (Dead). Nothing in from may be touched by this call
// once to has been signalled.
func SwitchTo(from, to *Fiber) {
	transfer(from, to)
	<-from.sw.resume
}

// transfer validates the switch, updates both statuses and signals to.
func transfer(from, to *Fiber) {
	if from == to {
		fatalf(ErrInvalidSwitch, "fiber %d switching to itself", to.id)
	}
	switch st := to.Status(); st {
	case FiberReady, FiberSuspended:
	default:
		fatalf(ErrInvalidSwitch, "target fiber %d is %s", to.id, st)
	}

	if from.Status() == FiberRunning {
		from.setStatus(FiberSuspended)
	}
	to.setStatus(FiberRunning)

	to.sw.resume <- struct{}{}
}
