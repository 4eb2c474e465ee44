package harness

import (
	"sync"

	"github.com/roach88/hlaservices/internal/hla"
	"github.com/roach88/hlaservices/internal/monitor"
)

// Trace event types.
const (
	TraceEventHandled = "event"
	TraceObservation  = "observation"
	TraceArming       = "arming"
)

// TraceEvent is one entry of the monitor's run trace.
type TraceEvent struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Service string `json:"service,omitempty"`
	Source  string `json:"source,omitempty"`
}

// FederateRef identifies a scripted federate as it was when it joined.
type FederateRef struct {
	Name   string
	Handle hla.FederateHandle
	Object hla.ObjectInstanceHandle
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if setup ended as expected and every assertion held.
	Pass bool `json:"pass"`

	// Trace holds what the monitor recorded, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// InitError is set when monitor setup failed.
	InitError string `json:"init_error,omitempty"`

	// Monitor is the monitor's final state.
	Monitor monitor.Result `json:"-"`

	// Federates maps scripted federate aliases to their identities.
	Federates map[string]FederateRef `json:"-"`

	RunID string `json:"run_id"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Trace:     []TraceEvent{},
		Errors:    []string{},
		Federates: make(map[string]FederateRef),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// CountOutcome returns how many handled events ended with outcome.
func (r *Result) CountOutcome(outcome string) int {
	n := 0
	for _, ev := range r.Trace {
		if ev.Type == TraceEventHandled && ev.Outcome == outcome {
			n++
		}
	}
	return n
}

// traceRecorder appends the monitor's records to a Result trace.
type traceRecorder struct {
	mu     sync.Mutex
	result *Result
}

func (t *traceRecorder) RecordEvent(rec monitor.EventRecord) {
	t.add(TraceEvent{Type: TraceEventHandled, Seq: rec.Seq, Kind: rec.Kind, Outcome: rec.Outcome, Detail: rec.Detail})
}

func (t *traceRecorder) RecordObservation(rec monitor.ObservationRecord) {
	t.add(TraceEvent{Type: TraceObservation, Seq: rec.Seq, Service: rec.Service, Source: rec.Source.String()})
}

func (t *traceRecorder) RecordArming(ok bool) {
	outcome := "armed"
	if !ok {
		outcome = "failed"
	}
	t.add(TraceEvent{Type: TraceArming, Outcome: outcome})
}

func (t *traceRecorder) add(ev TraceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Trace = append(t.result.Trace, ev)
}
