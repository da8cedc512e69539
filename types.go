package jobsystem

import "github.com/Swind/go-job-system/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the jobsystem package for most use cases.

// Job is the unit of work. The context identifies the running job and must
// be passed to WaitForJobs when the job waits for children.
type Job = core.Job

// JobSystem is the interface shared by both backends.
type JobSystem = core.JobSystem

// Config holds the options of a job system.
type Config = core.Config

// Backend selects the implementation behind New.
type Backend = core.Backend

// ExhaustionPolicy decides what happens when the fiber pool runs dry.
type ExhaustionPolicy = core.ExhaustionPolicy

// SystemStats is a point-in-time snapshot of a job system.
type SystemStats = core.SystemStats

// Counter tracks the outstanding jobs of one batch.
type Counter = core.Counter

// Backend and policy constants
const (
	BackendFiber  = core.BackendFiber
	BackendThread = core.BackendThread

	ExhaustionFatal = core.ExhaustionFatal
	ExhaustionWait  = core.ExhaustionWait
)

// Sentinel errors
var (
	ErrInvalidSwitch      = core.ErrInvalidSwitch
	ErrCounterUnderflow   = core.ErrCounterUnderflow
	ErrFiberPoolExhausted = core.ErrFiberPoolExhausted
	ErrInvalidConfig      = core.ErrInvalidConfig
)

var (
	// DefaultConfig returns a config with every default applied.
	DefaultConfig = core.DefaultConfig

	// NewCounter creates a counter initialized to n.
	NewCounter = core.NewCounter

	// IsFatal reports whether a recovered panic signals scheduler corruption.
	IsFatal = core.IsFatal
)
