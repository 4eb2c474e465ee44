package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/observation"
	"github.com/roach88/hlaservices/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			switch ev.Type {
			case TraceEventHandled:
				fmt.Fprintf(&buf, "  [%d] seq=%d %s -> %s\n", i+1, ev.Seq, ev.Kind, ev.Outcome)
			case TraceObservation:
				fmt.Fprintf(&buf, "  [%d] seq=%d observed %s (%s)\n", i+1, ev.Seq, ev.Service, ev.Source)
			case TraceArming:
				fmt.Fprintf(&buf, "  [%d] arming %s\n", i+1, ev.Outcome)
			}
		}
	}
	return buf.String()
}

func assertVerdict(result *Result, a Assertion) error {
	got := result.Monitor.Verdict.Outcome()
	if got != a.Outcome {
		return &AssertionError{
			Type:     AssertVerdict,
			Expected: a.Outcome,
			Actual:   fmt.Sprintf("%s (non-certified: %v)", got, result.Monitor.Verdict.NonCertifiedNames()),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertPartition checks one half of the verdict, in catalogue order.
func assertPartition(result *Result, a Assertion) error {
	got := result.Monitor.Verdict.CertifiedNames()
	if a.Type == AssertNonCertified {
		got = result.Monitor.Verdict.NonCertifiedNames()
	}
	want := make([]string, len(a.Services))
	for i, s := range a.Services {
		want[i] = catalogue.Normalize(s)
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%v", want),
			Actual:   fmt.Sprintf("%v", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertObserved checks one service in the monitor's table and, when a
// ledger is available, that the ledger agrees.
func assertObserved(ctx context.Context, st *store.Store, result *Result, a Assertion) error {
	service := catalogue.Normalize(a.Service)
	var entry *observation.Entry
	for i := range result.Monitor.Observations {
		if result.Monitor.Observations[i].Service == service {
			entry = &result.Monitor.Observations[i]
			break
		}
	}
	if entry == nil {
		return &AssertionError{
			Type:     AssertObserved,
			Expected: fmt.Sprintf("service %s in catalogue", service),
			Actual:   "not in catalogue",
		}
	}

	want, _ := observation.ParseSource(a.Source)
	switch {
	case a.Source == "" && !entry.Observed:
		return &AssertionError{
			Type:     AssertObserved,
			Expected: fmt.Sprintf("%s observed", service),
			Actual:   "not observed",
			Trace:    result.Trace,
		}
	case a.Source != "" && entry.Source != want:
		return &AssertionError{
			Type:     AssertObserved,
			Expected: fmt.Sprintf("%s with source %s", service, want),
			Actual:   fmt.Sprintf("source %s", entry.Source),
			Trace:    result.Trace,
		}
	}

	if st == nil {
		return nil
	}
	rows, err := st.ReadObservations(ctx, result.RunID)
	if err != nil {
		return fmt.Errorf("observed: read ledger: %w", err)
	}
	ledger := observation.SourceNone
	for _, row := range rows {
		if row.Service == service {
			ledger, _ = observation.ParseSource(row.Source)
		}
	}
	if ledger != entry.Source {
		return &AssertionError{
			Type:     AssertObserved,
			Expected: fmt.Sprintf("ledger source %s for %s", entry.Source, service),
			Actual:   fmt.Sprintf("ledger source %s", ledger),
		}
	}
	return nil
}

func assertIdentity(result *Result, a Assertion) error {
	id := result.Monitor.Identity
	if a.Absent {
		if id != nil {
			return &AssertionError{
				Type:     AssertIdentity,
				Expected: "no SUT identified",
				Actual:   fmt.Sprintf("%s (handle %s)", id.Name, id.Handle),
				Trace:    result.Trace,
			}
		}
		return nil
	}

	if id == nil {
		return &AssertionError{
			Type:     AssertIdentity,
			Expected: fmt.Sprintf("SUT %s identified", a.Name),
			Actual:   "no SUT identified",
			Trace:    result.Trace,
		}
	}
	if id.Name != a.Name {
		return &AssertionError{
			Type:     AssertIdentity,
			Expected: fmt.Sprintf("name %s", a.Name),
			Actual:   fmt.Sprintf("name %s", id.Name),
		}
	}
	if a.Federate == "" {
		return nil
	}

	ref, ok := result.Federates[a.Federate]
	if !ok {
		return fmt.Errorf("identity: no scripted federate %q", a.Federate)
	}
	if !id.Handle.Equal(ref.Handle) || id.Object != ref.Object {
		return &AssertionError{
			Type:     AssertIdentity,
			Expected: fmt.Sprintf("federate %s (handle %s, object %s)", a.Federate, ref.Handle, ref.Object),
			Actual:   fmt.Sprintf("handle %s, object %s", id.Handle, id.Object),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertArmed(result *Result, a Assertion) error {
	if result.Monitor.Armed != *a.Value {
		return &AssertionError{
			Type:     AssertArmed,
			Expected: fmt.Sprintf("armed=%v", *a.Value),
			Actual:   fmt.Sprintf("armed=%v", result.Monitor.Armed),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertLifecycle(result *Result, a Assertion) error {
	if result.Monitor.Lifecycle != a.State {
		return &AssertionError{
			Type:     AssertLifecycle,
			Expected: a.State,
			Actual:   result.Monitor.Lifecycle,
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertEventCount checks the number of events handled with an outcome.
func assertEventCount(result *Result, a Assertion) error {
	count := result.CountOutcome(a.Outcome)
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d events with outcome %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides ledger access for observed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	ctx := context.Background()
	var st *store.Store
	if actx != nil {
		st = actx.Store
		if actx.Ctx != nil {
			ctx = actx.Ctx
		}
	}

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertVerdict:
			err = assertVerdict(result, assertion)
		case AssertCertified, AssertNonCertified:
			err = assertPartition(result, assertion)
		case AssertObserved:
			err = assertObserved(ctx, st, result, assertion)
		case AssertIdentity:
			err = assertIdentity(result, assertion)
		case AssertArmed:
			if assertion.Value == nil {
				err = fmt.Errorf("assertion[%d]: armed requires value", i)
			} else {
				err = assertArmed(result, assertion)
			}
		case AssertLifecycle:
			err = assertLifecycle(result, assertion)
		case AssertEventCount:
			err = assertEventCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
