package core

import "context"

// Job is the unit of work (Closure).
//
// The context handed to a job identifies the fiber it runs on. Pass it to
// WaitForJobs to wait cooperatively; it must not be retained after the job
// returns.
type Job func(ctx context.Context)

// JobSystem is the submission contract shared by every backend.
type JobSystem interface {
	// AddJobs submits jobs fire-and-forget. It never blocks.
	AddJobs(jobs ...Job)

	// WaitForJobs submits jobs and returns once every one of them has run.
	// Called with a job's context it suspends only the calling job.
	WaitForJobs(ctx context.Context, jobs ...Job)

	// Shutdown drains outstanding work, including jobs submitted while
	// draining, then stops the workers. Later submissions are rejected.
	Shutdown()

	// Stats returns a point-in-time snapshot.
	Stats() SystemStats
}

// =============================================================================
// Context Helper
// =============================================================================
type fiberKeyType struct{}

var fiberKey fiberKeyType

// CurrentFiber returns the fiber running the job that owns ctx, or nil when
// ctx was not handed out by a FiberJobSystem.
func CurrentFiber(ctx context.Context) *Fiber {
	if ctx == nil {
		return nil
	}
	if v := ctx.Value(fiberKey); v != nil {
		return v.(*Fiber)
	}
	return nil
}
