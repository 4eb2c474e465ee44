package testutil

// FixedRunIDGenerator generates the same run ID every time.
//
// Scenarios set the ID so ledger rows and report summaries can be compared
// against golden files. Unlike store.FixedGenerator, which hands out IDs in
// sequence, this generator never runs out.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator returning id.
// If id is empty, Generate() returns "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
//
// Implements store.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
