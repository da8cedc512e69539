// Package stress holds the load scenarios driven by the jobstress command.
package stress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Swind/go-job-system/core"
)

// Scenario names accepted by Run.
const (
	ScenarioFlat     = "flat"
	ScenarioTree     = "tree"
	ScenarioOneSided = "onesided"
)

// Scenarios lists every scenario in the order "all" runs them.
var Scenarios = []string{ScenarioFlat, ScenarioTree, ScenarioOneSided}

// Options sizes the scenarios.
type Options struct {
	Jobs  int // flat and one-sided batch size
	Depth int // tree depth
	Spin  time.Duration
}

// Result reports one scenario run.
type Result struct {
	Scenario string
	Expected int64
	Executed int64
	Elapsed  time.Duration

	// Workers counts executions per worker ID; -1 collects jobs that ran
	// outside a fiber.
	Workers map[int]int64
}

// OK reports whether every expected job ran exactly once.
func (r Result) OK() bool { return r.Executed == r.Expected }

func (r Result) String() string {
	ids := make([]int, 0, len(r.Workers))
	for id := range r.Workers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	spread := ""
	for _, id := range ids {
		spread += fmt.Sprintf(" w%d=%d", id, r.Workers[id])
	}
	return fmt.Sprintf("%-9s executed=%d/%d elapsed=%s workers:%s", r.Scenario, r.Executed, r.Expected, r.Elapsed.Round(time.Microsecond), spread)
}

type recorder struct {
	executed atomic.Int64
	spin     time.Duration

	mu      sync.Mutex
	workers map[int]int64
}

func newRecorder(spin time.Duration) *recorder {
	return &recorder{spin: spin, workers: make(map[int]int64)}
}

func (r *recorder) record(ctx context.Context) {
	if r.spin > 0 {
		deadline := time.Now().Add(r.spin)
		for time.Now().Before(deadline) {
		}
	}
	id := -1
	if f := core.CurrentFiber(ctx); f != nil {
		id = f.WorkerID()
	}
	r.executed.Add(1)
	r.mu.Lock()
	r.workers[id]++
	r.mu.Unlock()
}

func (r *recorder) result(name string, expected int64, started time.Time) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	workers := make(map[int]int64, len(r.workers))
	for id, n := range r.workers {
		workers[id] = n
	}
	return Result{
		Scenario: name,
		Expected: expected,
		Executed: r.executed.Load(),
		Elapsed:  time.Since(started),
		Workers:  workers,
	}
}

// Run executes the named scenario against js and blocks until it finishes.
func Run(ctx context.Context, js core.JobSystem, name string, opts Options) (Result, error) {
	switch name {
	case ScenarioFlat:
		return Flat(ctx, js, opts), nil
	case ScenarioTree:
		return Tree(ctx, js, opts), nil
	case ScenarioOneSided:
		return OneSided(ctx, js, opts), nil
	default:
		return Result{}, fmt.Errorf("stress: unknown scenario %q", name)
	}
}

// Flat waits for opts.Jobs independent jobs from outside the system.
func Flat(ctx context.Context, js core.JobSystem, opts Options) Result {
	rec := newRecorder(opts.Spin)
	jobs := make([]core.Job, opts.Jobs)
	for i := range jobs {
		jobs[i] = rec.record
	}

	started := time.Now()
	js.WaitForJobs(ctx, jobs...)
	return rec.result(ScenarioFlat, int64(opts.Jobs), started)
}

// Tree waits for a binary tree of nested waits opts.Depth levels deep,
// 2^Depth - 1 jobs in total.
func Tree(ctx context.Context, js core.JobSystem, opts Options) Result {
	rec := newRecorder(opts.Spin)

	var node func(depth int) core.Job
	node = func(depth int) core.Job {
		return func(ctx context.Context) {
			rec.record(ctx)
			if depth > 1 {
				js.WaitForJobs(ctx, node(depth-1), node(depth-1))
			}
		}
	}

	started := time.Now()
	js.WaitForJobs(ctx, node(opts.Depth))
	return rec.result(ScenarioTree, int64(1)<<opts.Depth-1, started)
}

// OneSided queues opts.Jobs children on a single worker from inside one job,
// leaving the other workers to steal them.
func OneSided(ctx context.Context, js core.JobSystem, opts Options) Result {
	rec := newRecorder(opts.Spin)
	children := make([]core.Job, opts.Jobs)
	for i := range children {
		children[i] = rec.record
	}

	started := time.Now()
	js.WaitForJobs(ctx, func(ctx context.Context) {
		js.WaitForJobs(ctx, children...)
	})
	return rec.result(ScenarioOneSided, int64(opts.Jobs), started)
}
