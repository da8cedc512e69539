package core

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling job panics
// =============================================================================

// PanicHandler is called when a job panics during execution.
// The panic is recovered and the job counts as completed, so a waiter on its
// batch still resumes. There is no return channel to the waiter.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a job panics.
	//
	// Parameters:
	// - ctx: The context the job was running with
	// - systemName: The name of the job system
	// - workerID: The worker that ran the job (-1 for the thread backend)
	// - panicInfo: The panic value recovered from the job
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, systemName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, systemName string, workerID int, panicInfo any, stackTrace []byte) {
	if workerID >= 0 {
		fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s",
			workerID, systemName, panicInfo, stackTrace)
	} else {
		fmt.Printf("[JobSystem %s] Panic: %v\nStack trace:\n%s",
			systemName, panicInfo, stackTrace)
	}
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Fiber switch kinds reported through Metrics.RecordFiberSwitch.
const (
	SwitchStart   = "start"
	SwitchSuspend = "suspend"
	SwitchResume  = "resume"
)

// Metrics defines the interface for collecting job execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting job execution performance.
type Metrics interface {
	// RecordJobDuration records how long a job ran, suspensions included.
	RecordJobDuration(systemName string, duration time.Duration)

	// RecordJobPanic records that a job panicked during execution.
	RecordJobPanic(systemName string, panicInfo any)

	// RecordQueueDepth records the depth of one worker queue after a push.
	RecordQueueDepth(systemName string, workerID int, depth int)

	// RecordJobRejected records that a submission was rejected (e.g., after shutdown).
	RecordJobRejected(systemName string, reason string)

	// RecordFiberSwitch records a fiber switch of the given kind
	// (SwitchStart, SwitchSuspend or SwitchResume).
	RecordFiberSwitch(systemName string, kind string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordJobDuration is a no-op.
func (m *NilMetrics) RecordJobDuration(systemName string, duration time.Duration) {}

// RecordJobPanic is a no-op.
func (m *NilMetrics) RecordJobPanic(systemName string, panicInfo any) {}

// RecordQueueDepth is a no-op.
func (m *NilMetrics) RecordQueueDepth(systemName string, workerID int, depth int) {}

// RecordJobRejected is a no-op.
func (m *NilMetrics) RecordJobRejected(systemName string, reason string) {}

// RecordFiberSwitch is a no-op.
func (m *NilMetrics) RecordFiberSwitch(systemName string, kind string) {}
