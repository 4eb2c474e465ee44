package store

import (
	"context"
	"fmt"

	"github.com/roach88/hlaservices/internal/catalogue"
	"github.com/roach88/hlaservices/internal/observation"
)

// RunState is a run rebuilt from the ledger.
type RunState struct {
	Run          Run
	Observations []Observation
	Events       []Event
	LastSeq      int64

	// Verdict is recomputed from the stored catalogue and observations.
	Verdict observation.Verdict

	// Consistent is false when the stored outcome disagrees with Verdict.
	// Inconclusive and unfinished runs are always consistent.
	Consistent bool
}

// GetRunState reads a run with its observations and events and replays the
// observations onto the run's catalogue.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	state := RunState{Run: run}

	if state.Observations, err = s.ReadObservations(ctx, runID); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}
	if state.Events, err = s.ReadEvents(ctx, runID, ""); err != nil {
		return state, fmt.Errorf("get run state: %w", err)
	}

	cat, err := catalogue.New(run.Catalogue)
	if err != nil {
		return state, fmt.Errorf("get run state: stored catalogue: %w", err)
	}
	table := observation.NewState(cat)
	for _, o := range state.Observations {
		source, ok := observation.ParseSource(o.Source)
		if !ok || source == observation.SourceNone {
			return state, fmt.Errorf("get run state: observation %d: invalid source %q", o.Seq, o.Source)
		}
		table.Mark(o.Service, source)
		if o.Seq > state.LastSeq {
			state.LastSeq = o.Seq
		}
	}
	for _, e := range state.Events {
		if e.Seq > state.LastSeq {
			state.LastSeq = e.Seq
		}
	}

	state.Verdict = table.Verdict()
	switch run.Outcome {
	case OutcomePassed, OutcomeFailed:
		state.Consistent = run.Outcome == state.Verdict.Outcome()
	default:
		state.Consistent = true
	}
	return state, nil
}
