package experiment

import (
	"fmt"
)

// StagingError is returned when a run directory or its parameter file could
// not be prepared.
type StagingError struct {
	Path string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("could not stage '%s': %s", e.Path, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// SubprocessError is returned when the simulation could not be launched, or
// when it was killed because it timed out or its context was cancelled. Op is
// one of "start", "timeout" and "cancel".
type SubprocessError struct {
	Op  string
	Err error
}

func (e *SubprocessError) Error() string {
	return fmt.Sprintf("simulation %s: %s", e.Op, e.Err)
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// ExitError reports a non-zero simulation exit code. Code is -1 if the
// process was ended by a signal.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("simulation exited with code %d", e.Code)
}
