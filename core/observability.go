package core

import "time"

// WorkerState is where a worker is in its scheduling loop.
type WorkerState int32

const (
	WorkerIdle WorkerState = iota
	WorkerFetching
	WorkerRunning
	WorkerSwitching
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerFetching:
		return "fetching"
	case WorkerRunning:
		return "running"
	case WorkerSwitching:
		return "switching"
	default:
		return "unknown"
	}
}

// JobExecutionRecord captures a completed job execution event.
type JobExecutionRecord struct {
	FiberID     uint64
	Name        string
	WorkerID    int
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Suspensions int
	Panicked    bool
}

// SystemStats represents runtime observability state for a job system.
type SystemStats struct {
	ID      string
	Name    string
	Backend Backend
	Workers int
	Running bool

	Queued    int // entries waiting in worker queues
	Active    int // jobs executing right now
	Suspended int // fibers parked on a counter

	Dispatched uint64 // jobs accepted since start
	Completed  uint64
	Panicked   uint64
	Rejected   uint64
	Stolen     uint64 // entries taken from another worker's queue

	WorkerStates []WorkerState
	FiberPool    FiberPoolStats
}
