package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/hlaservices/internal/hla"
	"github.com/roach88/hlaservices/internal/monitor"
	"github.com/roach88/hlaservices/internal/observation"
)

func sampleResult() *Result {
	entries := []observation.Entry{
		{Service: "connect", Observed: true, Source: observation.SourceLifecycle, Seq: 2},
		{Service: "A", Observed: true, Source: observation.SourceReport, Seq: 3},
		{Service: "B"},
	}
	r := NewResult()
	r.Monitor = monitor.Result{
		Identity: &monitor.FederateIdentity{
			Name:   "SUT1",
			Handle: hla.FederateHandle{0, 0, 0, 1},
			Object: "HLAfederate-1",
		},
		Armed:        true,
		Lifecycle:    monitor.StateFollowing,
		Observations: entries,
		Verdict:      observation.Partition(entries),
	}
	r.Federates["SUT1"] = FederateRef{Name: "SUT1", Handle: hla.FederateHandle{0, 0, 0, 1}, Object: "HLAfederate-1"}
	r.Federates["other"] = FederateRef{Name: "SUT1", Handle: hla.FederateHandle{0, 0, 0, 2}, Object: "HLAfederate-2"}
	r.Trace = []TraceEvent{
		{Type: TraceEventHandled, Seq: 2, Kind: "attributes_updated", Outcome: monitor.OutcomeIdentified},
		{Type: TraceEventHandled, Seq: 3, Kind: "interaction_received", Outcome: monitor.OutcomeApplied},
		{Type: TraceEventHandled, Seq: 4, Kind: "interaction_received", Outcome: monitor.OutcomeApplied},
	}
	return r
}

func TestEvaluateAssertions_Passing(t *testing.T) {
	yes := true
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertVerdict, Outcome: "failed"},
		{Type: AssertCertified, Services: []string{"connect", "A"}},
		{Type: AssertNonCertified, Services: []string{"B"}},
		{Type: AssertObserved, Service: "A"},
		{Type: AssertObserved, Service: "A", Source: "report"},
		{Type: AssertObserved, Service: "B", Source: "none"},
		{Type: AssertIdentity, Name: "SUT1"},
		{Type: AssertIdentity, Name: "SUT1", Federate: "SUT1"},
		{Type: AssertArmed, Value: &yes},
		{Type: AssertLifecycle, State: monitor.StateFollowing},
		{Type: AssertEventCount, Outcome: monitor.OutcomeApplied, Count: 2},
		{Type: AssertEventCount, Outcome: monitor.OutcomeDecodeError, Count: 0},
	}, nil)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failing(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		want      string
	}{
		{"verdict", Assertion{Type: AssertVerdict, Outcome: "passed"}, "non-certified: [B]"},
		{"certified", Assertion{Type: AssertCertified, Services: []string{"A", "connect"}}, "Expected: [A connect]"},
		{"non_certified", Assertion{Type: AssertNonCertified, Services: []string{}}, "Actual: [B]"},
		{"observed", Assertion{Type: AssertObserved, Service: "B"}, "not observed"},
		{"observed source", Assertion{Type: AssertObserved, Service: "connect", Source: "report"}, "source lifecycle"},
		{"observed unknown", Assertion{Type: AssertObserved, Service: "Z"}, "not in catalogue"},
		{"identity absent", Assertion{Type: AssertIdentity, Absent: true}, "no SUT identified"},
		{"identity name", Assertion{Type: AssertIdentity, Name: "SUT2"}, "name SUT2"},
		{"identity federate", Assertion{Type: AssertIdentity, Name: "SUT1", Federate: "other"}, "federate other"},
		{"identity unknown federate", Assertion{Type: AssertIdentity, Name: "SUT1", Federate: "ghost"}, `no scripted federate "ghost"`},
		{"lifecycle", Assertion{Type: AssertLifecycle, State: monitor.StateDeparted}, "Actual: following"},
		{"event_count", Assertion{Type: AssertEventCount, Outcome: monitor.OutcomeApplied, Count: 1}, "2 events"},
		{"armed nil", Assertion{Type: AssertArmed}, "armed requires value"},
		{"unknown", Assertion{Type: "final_state"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion}, nil)
			if assert.Len(t, errs, 1) {
				assert.Contains(t, errs[0], tt.want)
			}
		})
	}
}

func TestEvaluateAssertions_IdentityMissing(t *testing.T) {
	r := sampleResult()
	r.Monitor.Identity = nil

	errs := EvaluateAssertions(r, []Assertion{{Type: AssertIdentity, Name: "SUT1"}}, nil)
	assert.Len(t, errs, 1)
	assert.Empty(t, EvaluateAssertions(r, []Assertion{{Type: AssertIdentity, Absent: true}}, nil))
}

func TestEvaluateAssertions_ArmedFalse(t *testing.T) {
	no := false
	errs := EvaluateAssertions(sampleResult(), []Assertion{{Type: AssertArmed, Value: &no}}, nil)
	if assert.Len(t, errs, 1) {
		assert.Contains(t, errs[0], "armed=false")
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertVerdict,
		Expected: "passed",
		Actual:   "failed",
		Trace: []TraceEvent{
			{Type: TraceEventHandled, Seq: 1, Kind: "attributes_updated", Outcome: "sut_identified"},
			{Type: TraceObservation, Seq: 1, Service: "connect", Source: "lifecycle"},
			{Type: TraceArming, Outcome: "armed"},
		},
	}
	assert.Equal(t, "Assertion failed: verdict\n"+
		"  Expected: passed\n"+
		"  Actual: failed\n"+
		"\nFull trace:\n"+
		"  [1] seq=1 attributes_updated -> sut_identified\n"+
		"  [2] seq=1 observed connect (lifecycle)\n"+
		"  [3] arming armed\n", err.Error())
}
