// Package jobsystem runs small jobs on a fixed set of workers and lets a job
// wait for jobs it spawned without holding its worker.
//
// Every job runs on a fiber. When a job calls WaitForJobs, its fiber is
// suspended and the worker goes on with other work; the fiber is resumed,
// possibly on another worker, once the last job of its batch has finished.
// Waits can therefore nest far deeper than the number of workers.
//
// # Quick Start
//
// Create a job system at startup and pass it to whatever needs it:
//
//	js, err := jobsystem.New(jobsystem.Config{Workers: 4})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer js.Shutdown()
//
//	js.WaitForJobs(context.Background(),
//		func(ctx context.Context) { fmt.Println("job 1") },
//		func(ctx context.Context) { fmt.Println("job 2") },
//	)
//
// A job waits for children by passing its own context back in:
//
//	js.WaitForJobs(ctx, func(ctx context.Context) {
//		js.WaitForJobs(ctx, childA, childB) // suspends only this job
//	})
//
// # Backends
//
// BackendFiber (the default) multiplexes jobs onto pooled fibers with per
// worker queues and work stealing. BackendThread runs each job on its own
// goroutine and blocks waiters; it has the same contract and is useful as a
// baseline.
//
// # Ordering
//
// The only ordering guarantee is that WaitForJobs returns after every job of
// its own batch has run. Jobs from different batches, or added with AddJobs,
// run in no particular order.
//
// # Jobs never yield
//
// A job is never preempted. A job that neither returns nor waits keeps its
// worker busy for as long as it runs.
package jobsystem
