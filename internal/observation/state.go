// Package observation tracks which expected services the system under test
// has been seen to exercise and derives the run verdict from that table.
//
// The key set is fixed by the catalogue at construction. Flags only move
// from unobserved to observed, so concurrent markers can never undo each
// other; the mutex gives the final reader visibility of every prior write.
package observation

import (
	"sync"

	"github.com/roach88/hlaservices/internal/catalogue"
)

// Source records how a service came to be observed.
type Source int

const (
	// SourceNone marks a service that has not been observed.
	SourceNone Source = iota
	// SourceLifecycle marks services seeded by SUT discovery or removal.
	SourceLifecycle
	// SourceReport marks services confirmed by a successful invocation report.
	SourceReport
)

func (s Source) String() string {
	switch s {
	case SourceLifecycle:
		return "lifecycle"
	case SourceReport:
		return "report"
	default:
		return "none"
	}
}

// ParseSource is the inverse of Source.String.
func ParseSource(s string) (Source, bool) {
	switch s {
	case "lifecycle":
		return SourceLifecycle, true
	case "report":
		return SourceReport, true
	case "none", "":
		return SourceNone, true
	default:
		return SourceNone, false
	}
}

// MarkResult describes what a Mark call did.
type MarkResult int

const (
	// Applied means the service moved from unobserved to observed.
	Applied MarkResult = iota
	// AlreadyObserved means the service was observed before; nothing changed.
	AlreadyObserved
	// Unknown means the name is not in the catalogue; nothing changed.
	Unknown
)

func (r MarkResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case AlreadyObserved:
		return "already_observed"
	default:
		return "unknown_service"
	}
}

// Entry is one row of the observation table.
type Entry struct {
	Service  string
	Observed bool
	// Source is the source of the first observation.
	Source Source
	// Seq orders observations; 0 while unobserved.
	Seq int64
}

// State is the observation table for one run.
type State struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
	seq     int64
}

// NewState returns a table with every catalogue service unobserved.
func NewState(c *catalogue.Catalogue) *State {
	names := c.Names()
	s := &State{
		entries: make([]Entry, len(names)),
		index:   make(map[string]int, len(names)),
	}
	for i, name := range names {
		s.entries[i] = Entry{Service: name}
		s.index[name] = i
	}
	return s
}

// Mark flags name as observed. Names outside the catalogue are ignored.
// The first source wins; later marks of an observed service are no-ops.
func (s *State) Mark(name string, source Source) MarkResult {
	name = catalogue.Normalize(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return Unknown
	}
	if s.entries[i].Observed {
		return AlreadyObserved
	}
	s.seq++
	s.entries[i].Observed = true
	s.entries[i].Source = source
	s.entries[i].Seq = s.seq
	return Applied
}

// Observed reports whether name has been observed.
func (s *State) Observed(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[catalogue.Normalize(name)]
	return ok && s.entries[i].Observed
}

// Len returns the size of the key set.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// ObservedCount returns the number of observed services.
func (s *State) ObservedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.entries {
		if e.Observed {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of the table in catalogue order.
func (s *State) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
