package core

import (
	"fmt"
	"sync"
)

// Counter tracks how many jobs of a batch are still outstanding.
//
// Every job of the batch decrements it exactly once. At most one waiter
// fiber can be parked on it; the decrement that reaches zero hands that
// waiter back to the scheduler.
type Counter struct {
	mu     sync.Mutex
	value  int64
	waiter *Fiber
}

// NewCounter creates a counter initialized to n. Panics if n is negative.
func NewCounter(n int) *Counter {
	if n < 0 {
		panic(fmt.Sprintf("Counter: initial value must not be negative, got %d", n))
	}
	return &Counter{value: int64(n)}
}

// Decrement reduces the count by one and reports whether this call brought it
// to zero. Decrementing a counter that is already zero is fatal.
func (c *Counter) Decrement() bool {
	_, zero := c.decrement()
	return zero
}

// Value returns the current count.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// decrement is Decrement that also returns the parked waiter when the count
// reaches zero.
func (c *Counter) decrement() (*Fiber, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value <= 0 {
		fatalf(ErrCounterUnderflow, "decrement of counter at %d", c.value)
	}
	c.value--
	if c.value != 0 {
		return nil, false
	}
	w := c.waiter
	c.waiter = nil
	return w, true
}

// park registers f as the waiter. It returns false, leaving nothing parked,
// when the count already reached zero; the caller must then resume f itself.
func (c *Counter) park(f *Fiber) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.value == 0 {
		return false
	}
	if c.waiter != nil {
		fatalf(ErrInvalidSwitch, "counter already has waiter fiber %d", c.waiter.ID())
	}
	c.waiter = f
	return true
}
