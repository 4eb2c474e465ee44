package monitor

import "github.com/roach88/hlaservices/internal/observation"

// Event outcomes reported to the Recorder.
const (
	OutcomeIdentified      = "sut_identified"
	OutcomeIdentitySettled = "identity_settled"
	OutcomeNoMatch         = "no_match"
	OutcomeRTIVersion      = "rti_version"

	OutcomeApplied          = "applied"
	OutcomeAlreadyObserved  = "already_observed"
	OutcomeFailedInvocation = "failed_invocation"
	OutcomeUnknownService   = "unknown_service"
	OutcomeForeignFederate  = "foreign_federate"
	OutcomeIgnoredClass     = "ignored_class"

	OutcomeSUTRemoved    = "sut_removed"
	OutcomeIgnoredObject = "ignored_object"

	OutcomeDecodeError   = "decode_error"
	OutcomeProtocolError = "protocol_error"
)

// EventRecord describes how one event was handled.
type EventRecord struct {
	Seq     int64
	Kind    string
	Outcome string
	Detail  string
}

// ObservationRecord describes a service that became observed.
type ObservationRecord struct {
	Seq     int64
	Service string
	Source  observation.Source
}

// Recorder receives a trace of the run. Methods are called from the Run
// goroutine only and must not block for long.
type Recorder interface {
	RecordEvent(EventRecord)
	RecordObservation(ObservationRecord)
	RecordArming(ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordEvent(EventRecord)             {}
func (nopRecorder) RecordObservation(ObservationRecord) {}
func (nopRecorder) RecordArming(bool)                   {}

// Recorders fans out to several recorders in order.
type Recorders []Recorder

func (rs Recorders) RecordEvent(rec EventRecord) {
	for _, r := range rs {
		r.RecordEvent(rec)
	}
}

func (rs Recorders) RecordObservation(rec ObservationRecord) {
	for _, r := range rs {
		r.RecordObservation(rec)
	}
}

func (rs Recorders) RecordArming(ok bool) {
	for _, r := range rs {
		r.RecordArming(ok)
	}
}
