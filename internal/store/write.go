package store

import (
	"context"
	"fmt"
)

// CreateRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	catalogueJSON, err := marshalCatalogue(run.Catalogue)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("create run: start time is required")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, federation, sut, catalogue, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Federation,
		run.SUT,
		catalogueJSON,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// SetArmed records whether service reporting was armed for the run's SUT.
func (s *Store) SetArmed(ctx context.Context, runID string, armed bool) error {
	return s.updateRun(ctx, "set armed", `UPDATE runs SET armed = ? WHERE id = ?`, armed, runID)
}

// FinishRun writes the run's outcome.
// Returns ErrRunNotFound if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, runID string, f Finish) error {
	switch f.Outcome {
	case OutcomePassed, OutcomeFailed, OutcomeInconclusive:
	default:
		return fmt.Errorf("finish run: invalid outcome %q", f.Outcome)
	}
	return s.updateRun(ctx, "finish run", `
		UPDATE runs
		SET finished_at = ?, outcome = ?, detail = ?, identity_handle = ?
		WHERE id = ?
	`,
		formatTime(f.FinishedAt),
		f.Outcome,
		f.Detail,
		f.IdentityHandle,
		runID,
	)
}

func (s *Store) updateRun(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrRunNotFound)
	}
	return nil
}

// WriteObservation inserts an observation record.
// Uses ON CONFLICT DO NOTHING: a service is observed at most once per run,
// and the first record wins.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteObservation(ctx context.Context, obs Observation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations
		(run_id, seq, service, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		obs.RunID,
		obs.Seq,
		obs.Service,
		obs.Source,
	)
	if err != nil {
		return fmt.Errorf("write observation: %w", err)
	}
	return nil
}

// WriteEvent inserts an event record.
// Uses ON CONFLICT DO NOTHING for idempotency on (run_id, seq).
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteEvent(ctx context.Context, ev Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(run_id, seq, kind, outcome, detail)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		ev.RunID,
		ev.Seq,
		ev.Kind,
		ev.Outcome,
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}
