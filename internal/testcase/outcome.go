package testcase

import (
	"errors"
	"fmt"
)

// Outcome is the result of a test case run.
type Outcome int

const (
	// Passed means every expected service was observed.
	Passed Outcome = iota
	// Failed means the run completed but some expected service was not observed.
	Failed
	// Inconclusive means the run could not determine pass or fail.
	Inconclusive
)

// String returns "passed", "failed" or "inconclusive".
func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	case Inconclusive:
		return "inconclusive"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// InconclusiveError aborts a run before a verdict could be reached.
type InconclusiveError struct {
	// Phase is "preamble" or "perform".
	Phase  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *InconclusiveError) Error() string {
	msg := fmt.Sprintf("inconclusive (%s): %s", e.Phase, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *InconclusiveError) Unwrap() error {
	return e.Err
}

// FailedError reports a completed run whose verdict is fail.
type FailedError struct {
	// NonCertified lists the services that were never observed.
	NonCertified []string
}

// Error implements the error interface.
func (e *FailedError) Error() string {
	return fmt.Sprintf("failed: %d expected service(s) not observed: %v", len(e.NonCertified), e.NonCertified)
}

// IsInconclusive reports whether err ended a run as inconclusive.
func IsInconclusive(err error) bool {
	var ie *InconclusiveError
	return errors.As(err, &ie)
}

// IsFailed reports whether err is a failed verdict.
func IsFailed(err error) bool {
	var fe *FailedError
	return errors.As(err, &fe)
}

// OutcomeOf maps a Run error to its outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Passed
	case IsFailed(err):
		return Failed
	default:
		return Inconclusive
	}
}

func inconclusive(phase, reason string, err error) *InconclusiveError {
	return &InconclusiveError{Phase: phase, Reason: reason, Err: err}
}
