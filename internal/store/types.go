package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run outcomes.
const (
	OutcomePassed       = "passed"
	OutcomeFailed       = "failed"
	OutcomeInconclusive = "inconclusive"
)

// Run is one services check.
type Run struct {
	ID         string
	Federation string
	SUT        string

	// Catalogue holds the expected services in catalogue order.
	Catalogue []string

	StartedAt  time.Time
	FinishedAt time.Time

	// Outcome is empty while the run is in progress.
	Outcome string
	Detail  string

	// IdentityHandle is the hex handle of the tracked SUT, if discovered.
	IdentityHandle string
	Armed          bool
}

// Finished reports whether the run has an outcome.
func (r Run) Finished() bool {
	return r.Outcome != ""
}

// Finish is the final state written by FinishRun.
type Finish struct {
	FinishedAt     time.Time
	Outcome        string
	Detail         string
	IdentityHandle string
}

// Observation is a service that became observed during a run.
type Observation struct {
	RunID   string
	Seq     int64
	Service string
	Source  string
}

// Event is one federation callback handled by the monitor.
type Event struct {
	RunID   string
	Seq     int64
	Kind    string
	Outcome string
	Detail  string
}
