package core

import (
	"context"
	"errors"
	"testing"
)

func newTestPool(max int) *FiberPool {
	return NewFiberPool(max, 64<<10, func(id uint64) *Fiber {
		return newFiber(id, context.Background(), func(f *Fiber) {})
	})
}

// TestFiberPool_AcquireUntilExhausted verifies the pool limit
// Given: A pool of two fibers
// When: Three fibers are acquired
// Then: The third acquire fails with ErrFiberPoolExhausted
func TestFiberPool_AcquireUntilExhausted(t *testing.T) {
	p := newTestPool(2)
	defer p.Close()

	a, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	b, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if a.ID() == b.ID() {
		t.Errorf("fiber IDs both %d, want distinct", a.ID())
	}

	if _, err := p.Acquire(); !errors.Is(err, ErrFiberPoolExhausted) {
		t.Fatalf("third Acquire() error = %v, want ErrFiberPoolExhausted", err)
	}

	st := p.Stats()
	if st.Created != 2 || st.InUse != 2 || st.Free != 0 {
		t.Errorf("stats = %+v, want created=2 inUse=2 free=0", st)
	}
	if st.ReservedBytes != 2*64<<10 {
		t.Errorf("ReservedBytes = %d, want %d", st.ReservedBytes, 2*64<<10)
	}

	for _, f := range []*Fiber{a, b} {
		f.setStatus(FiberDead)
		p.Release(f)
	}
}

// TestFiberPool_ReleaseRecycles verifies released fibers are reused
// Given: A pool with one acquired fiber marked Dead
// When: It is released and a fiber acquired again
// Then: The same fiber comes back Ready and no new one is created
func TestFiberPool_ReleaseRecycles(t *testing.T) {
	p := newTestPool(4)
	defer p.Close()

	f, _ := p.Acquire()
	f.waitOn = NewCounter(1)
	f.suspensions = 3
	f.setStatus(FiberDead)
	p.Release(f)

	g, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if g != f {
		t.Errorf("Acquire() returned fiber %d, want recycled fiber %d", g.ID(), f.ID())
	}
	if g.Status() != FiberReady || g.waitOn != nil || g.suspensions != 0 {
		t.Errorf("recycled fiber not reset: status=%s waitOn=%v suspensions=%d", g.Status(), g.waitOn, g.suspensions)
	}
	if st := p.Stats(); st.Created != 1 {
		t.Errorf("Created = %d, want 1", st.Created)
	}

	g.setStatus(FiberDead)
	p.Release(g)
}

// TestFiberPool_TryAcquireSignalsRelease verifies exhausted callers can wait
// Given: A pool of one fiber that is handed out
// When: TryAcquire fails and the fiber is then released
// Then: The returned channel is closed and the next acquire succeeds
func TestFiberPool_TryAcquireSignalsRelease(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	f, _ := p.Acquire()
	_, released, err := p.TryAcquire()
	if !errors.Is(err, ErrFiberPoolExhausted) {
		t.Fatalf("TryAcquire() error = %v, want ErrFiberPoolExhausted", err)
	}
	select {
	case <-released:
		t.Fatal("released closed before any Release")
	default:
	}

	f.setStatus(FiberDead)
	p.Release(f)

	select {
	case <-released:
	default:
		t.Fatal("released not closed by Release")
	}
	g, _, err := p.TryAcquire()
	if err != nil {
		t.Fatalf("TryAcquire() after Release error = %v", err)
	}
	g.setStatus(FiberDead)
	p.Release(g)
}

// TestFiberPool_ReleaseExitedFiberDropsIt verifies a fiber whose goroutine
// ended is not reused
// Given: A pool of one fiber whose job exited the goroutine
// When: It is released and another fiber acquired
// Then: A fresh fiber with a new id is created in its place
func TestFiberPool_ReleaseExitedFiberDropsIt(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	f, _ := p.Acquire()
	f.exited = true
	f.setStatus(FiberDead)
	p.Release(f)

	if st := p.Stats(); st.Created != 0 || st.Free != 0 || st.InUse != 0 {
		t.Errorf("stats = %+v, want nothing created, free or in use", st)
	}
	g, err := p.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if g == f || g.ID() == f.ID() {
		t.Errorf("Acquire() reused exited fiber %d", f.ID())
	}
	if f.Status() != FiberDead {
		t.Errorf("exited fiber status = %s, want dead", f.Status())
	}

	// The goroutine of f is still parked in this test; let it go.
	f.retire()
	g.setStatus(FiberDead)
	p.Release(g)
}

func TestFiberPool_ReleaseLiveFiberIsFatal(t *testing.T) {
	p := newTestPool(1)
	defer p.Close()

	f, _ := p.Acquire()
	f.setStatus(FiberSuspended)

	err := recoverFatal(t, func() { p.Release(f) })
	if !errors.Is(err, ErrInvalidSwitch) {
		t.Fatalf("err = %v, want ErrInvalidSwitch", err)
	}

	f.setStatus(FiberDead)
	p.Release(f)
}

// TestFiberPool_Close verifies teardown accounting
// Given: A pool with one free and one in-use fiber
// When: The pool is closed and the in-use fiber released afterwards
// Then: Both fibers are retired and acquire fails
func TestFiberPool_Close(t *testing.T) {
	p := newTestPool(4)

	a, _ := p.Acquire()
	b, _ := p.Acquire()
	a.setStatus(FiberDead)
	p.Release(a)

	p.Close()
	p.Close() // idempotent

	if st := p.Stats(); st.Created != 1 || st.Free != 0 || st.InUse != 1 {
		t.Errorf("stats after close = %+v, want created=1 free=0 inUse=1", st)
	}
	if _, err := p.Acquire(); !errors.Is(err, ErrFiberPoolExhausted) {
		t.Errorf("Acquire() after close error = %v, want ErrFiberPoolExhausted", err)
	}

	b.setStatus(FiberDead)
	p.Release(b)
	if st := p.Stats(); st.Created != 0 || st.InUse != 0 {
		t.Errorf("stats after final release = %+v, want created=0 inUse=0", st)
	}
}

func TestNewFiberPool_InvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		factory func(uint64) *Fiber
	}{
		{name: "zero max", max: 0, factory: func(uint64) *Fiber { return nil }},
		{name: "nil factory", max: 1, factory: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("NewFiberPool did not panic")
				}
			}()
			NewFiberPool(tt.max, 0, tt.factory)
		})
	}
}
