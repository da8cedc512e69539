package core

import (
	"fmt"
	"sync"
)

// FiberPoolStats is a snapshot of a FiberPool.
type FiberPoolStats struct {
	Created       int
	Free          int
	InUse         int
	Max           int
	StackSize     int
	ReservedBytes int64
}

// FiberPool hands out fibers to workers and takes them back once their job
// is Dead. Safe for concurrent use by all workers.
type FiberPool struct {
	mu      sync.Mutex
	free    []*Fiber
	created int
	nextID  uint64
	inUse   int
	max     int
	closed  bool

	stackSize int
	factory   func(id uint64) *Fiber

	// released is closed by the next Release; created on demand by
	// TryAcquire when the pool is exhausted.
	released chan struct{}
}

// NewFiberPool creates a pool of at most max fibers built by factory.
// Panics if max < 1 or factory is nil.
func NewFiberPool(max, stackSize int, factory func(id uint64) *Fiber) *FiberPool {
	if max < 1 {
		panic("FiberPool: max must be at least 1")
	}
	if factory == nil {
		panic("FiberPool: factory must not be nil")
	}
	return &FiberPool{
		free:      make([]*Fiber, 0, min(max, defaultQueueCap)),
		max:       max,
		stackSize: stackSize,
		factory:   factory,
	}
}

// Acquire returns a Ready fiber, creating one if the pool is below its limit.
func (p *FiberPool) Acquire() (*Fiber, error) {
	f, _, err := p.TryAcquire()
	return f, err
}

// TryAcquire is Acquire that, when the pool is exhausted, also returns a
// channel closed by the next Release.
func (p *FiberPool) TryAcquire() (*Fiber, <-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, nil, fmt.Errorf("%w: pool closed", ErrFiberPoolExhausted)
	}

	if n := len(p.free); n > 0 {
		f := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.inUse++
		return f, nil, nil
	}

	if p.created >= p.max {
		if p.released == nil {
			p.released = make(chan struct{})
		}
		return nil, p.released, fmt.Errorf("%w: %d fibers in use", ErrFiberPoolExhausted, p.inUse)
	}

	p.created++
	p.nextID++
	p.inUse++
	return p.factory(p.nextID), nil, nil
}

// Release returns a Dead fiber to the pool. Releasing a fiber in any other
// state is fatal: its saved context may still be resumed. A fiber whose
// goroutine has exited is dropped and frees its slot for a new one.
func (p *FiberPool) Release(f *Fiber) {
	if st := f.Status(); st != FiberDead {
		fatalf(ErrInvalidSwitch, "release of fiber %d while %s", f.id, st)
	}

	f.entry = entry{}
	f.worker = nil
	f.waitOn = nil
	f.suspensions = 0
	if !f.exited {
		f.setStatus(FiberReady)
	}

	p.mu.Lock()
	p.inUse--
	if p.released != nil {
		close(p.released)
		p.released = nil
	}
	switch {
	case f.exited:
		p.created--
		p.mu.Unlock()
	case p.closed:
		p.created--
		p.mu.Unlock()
		f.retire()
	default:
		p.free = append(p.free, f)
		p.mu.Unlock()
	}
}

// InUse returns the number of fibers currently handed out.
func (p *FiberPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Close retires every free fiber; fibers still in use are retired on Release.
func (p *FiberPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	free := p.free
	p.free = nil
	p.created -= len(free)
	p.mu.Unlock()

	for _, f := range free {
		f.retire()
	}
}

// Stats returns a snapshot of the pool.
func (p *FiberPool) Stats() FiberPoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return FiberPoolStats{
		Created:       p.created,
		Free:          len(p.free),
		InUse:         p.inUse,
		Max:           p.max,
		StackSize:     p.stackSize,
		ReservedBytes: int64(p.created) * int64(p.stackSize),
	}
}
