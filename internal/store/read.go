package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const runColumns = `id, federation, sut, catalogue, started_at, finished_at, outcome, detail, identity_handle, armed`

// GetRun returns the run with id.
// Returns ErrRunNotFound if no such run exists.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recent first. A limit of zero or
// less returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id COLLATE BINARY DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadObservations returns a run's observations ordered by seq, then
// service name.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadObservations(ctx context.Context, runID string) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, service, source
		FROM observations
		WHERE run_id = ?
		ORDER BY seq ASC, service COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	observations := []Observation{}
	for rows.Next() {
		var o Observation
		if err := rows.Scan(&o.RunID, &o.Seq, &o.Service, &o.Source); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return observations, nil
}

// ReadEvents returns a run's events ordered by seq. A non-empty outcome
// restricts the result to that outcome.
//
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadEvents(ctx context.Context, runID, outcome string) ([]Event, error) {
	query := `
		SELECT run_id, seq, kind, outcome, detail
		FROM events
		WHERE run_id = ?`
	args := []any{runID}
	if outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, outcome)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Kind, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run           Run
		catalogueJSON string
		startedAt     string
		finishedAt    sql.NullString
		outcome       sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Federation,
		&run.SUT,
		&catalogueJSON,
		&startedAt,
		&finishedAt,
		&outcome,
		&run.Detail,
		&run.IdentityHandle,
		&run.Armed,
	)
	if err != nil {
		return Run{}, err
	}

	if run.Catalogue, err = unmarshalCatalogue(catalogueJSON); err != nil {
		return Run{}, err
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if run.FinishedAt, err = parseTime(finishedAt.String); err != nil {
		return Run{}, err
	}
	run.Outcome = outcome.String
	return run, nil
}
