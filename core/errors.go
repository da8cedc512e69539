package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSwitch is raised when a switch targets a Running or Dead fiber.
	ErrInvalidSwitch = errors.New("jobsystem: invalid fiber switch")

	// ErrCounterUnderflow is raised when a counter is decremented past zero.
	ErrCounterUnderflow = errors.New("jobsystem: counter underflow")

	// ErrFiberPoolExhausted is returned when no fiber can be handed out.
	ErrFiberPoolExhausted = errors.New("jobsystem: fiber pool exhausted")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("jobsystem: invalid config")
)

// fatalError marks a panic raised for scheduler corruption. Job panic
// recovery re-raises it so the process aborts.
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// fatal panics with err wrapped as a fatalError.
func fatal(err error) {
	panic(&fatalError{err: err})
}

func fatalf(sentinel error, format string, args ...any) {
	fatal(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// IsFatal reports whether a recovered panic value is a scheduler contract
// violation.
func IsFatal(rec any) bool {
	_, ok := rec.(*fatalError)
	return ok
}
