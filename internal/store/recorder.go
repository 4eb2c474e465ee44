package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/roach88/hlaservices/internal/monitor"
)

// Recorder writes the monitor's trace of one run into the ledger. It
// implements monitor.Recorder.
//
// Write failures never interrupt the monitor: the first one is logged and
// kept for Err, later ones are dropped silently.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger

	mu  sync.Mutex
	err error
}

var _ monitor.Recorder = (*Recorder)(nil)

// NewRecorder returns a recorder for runID. The run must already exist.
func NewRecorder(s *Store, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, runID: runID, logger: logger}
}

// RecordEvent writes an event row.
func (r *Recorder) RecordEvent(rec monitor.EventRecord) {
	r.fail(r.store.WriteEvent(context.Background(), Event{
		RunID:   r.runID,
		Seq:     rec.Seq,
		Kind:    rec.Kind,
		Outcome: rec.Outcome,
		Detail:  rec.Detail,
	}))
}

// RecordObservation writes an observation row.
func (r *Recorder) RecordObservation(rec monitor.ObservationRecord) {
	r.fail(r.store.WriteObservation(context.Background(), Observation{
		RunID:   r.runID,
		Seq:     rec.Seq,
		Service: rec.Service,
		Source:  rec.Source.String(),
	}))
}

// RecordArming stores whether arming succeeded.
func (r *Recorder) RecordArming(ok bool) {
	r.fail(r.store.SetArmed(context.Background(), r.runID, ok))
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) fail(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err == nil {
		r.err = err
		r.logger.Error("run ledger write failed", "run", r.runID, "error", err)
	}
}
