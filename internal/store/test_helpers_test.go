package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

// createTestRun inserts a run with the scenario catalogue.
func createTestRun(t *testing.T, s *Store, id string) Run {
	t.Helper()
	run := Run{
		ID:         id,
		Federation: "TheFederation",
		SUT:        "SUT1",
		Catalogue:  []string{"connect", "createFederationExecution", "joinFederationExecution", "A", "B"},
		StartedAt:  testStart,
	}
	if err := s.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}
	return run
}
