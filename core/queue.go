package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// entry is one unit of schedulable work: either a fresh job, optionally
// tagged with the counter it completes, or a suspended fiber to resume.
type entry struct {
	job     Job
	counter *Counter
	fiber   *Fiber

	// bootstrap marks the wrapper job of a WaitForJobs issued outside any
	// fiber; it is left out of the job statistics.
	bootstrap bool
}

func (e entry) isResume() bool { return e.fiber != nil }

// =============================================================================
// WorkQueue: per-worker deque
// =============================================================================

// WorkQueue holds the ready entries of one worker. The owner pushes to the
// back and pops from the front (FIFO); other workers steal from the back so
// they contend with the owner as little as possible.
type WorkQueue struct {
	mu      sync.Mutex
	entries []entry
}

// NewWorkQueue creates an empty queue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{
		entries: make([]entry, 0, defaultQueueCap),
	}
}

// Push appends e at the back and returns the new length.
func (q *WorkQueue) Push(e entry) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, e)
	return len(q.entries)
}

// Pop removes the front entry.
func (q *WorkQueue) Pop() (entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return entry{}, false
	}

	e := q.entries[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.entries[0] = entry{}
	q.entries = q.entries[1:]
	q.maybeCompactLocked()

	return e, true
}

// Steal removes the back entry.
func (q *WorkQueue) Steal() (entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.entries)
	if n == 0 {
		return entry{}, false
	}

	e := q.entries[n-1]
	q.entries[n-1] = entry{}
	q.entries = q.entries[:n-1]
	q.maybeCompactLocked()

	return e, true
}

func (q *WorkQueue) maybeCompactLocked() {
	n := len(q.entries)
	c := cap(q.entries)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.entries = make([]entry, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]entry, n, newCap)
	copy(newSlice, q.entries)
	q.entries = newSlice
}

// Len returns the number of queued entries.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
