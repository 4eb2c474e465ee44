package observation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hlaservices/internal/catalogue"
)

func TestNewStateStartsUnobserved(t *testing.T) {
	s := NewState(catalogue.MustNew("connect", "A", "B"))

	require.Equal(t, 3, s.Len())
	assert.Equal(t, 0, s.ObservedCount())
	for _, e := range s.Snapshot() {
		assert.False(t, e.Observed, e.Service)
		assert.Equal(t, SourceNone, e.Source)
		assert.Zero(t, e.Seq)
	}
}

func TestMark(t *testing.T) {
	s := NewState(catalogue.MustNew("connect", "A", "B"))

	assert.Equal(t, Applied, s.Mark("A", SourceReport))
	assert.Equal(t, AlreadyObserved, s.Mark("A", SourceLifecycle))
	assert.Equal(t, Unknown, s.Mark("Z", SourceReport))
	assert.Equal(t, Applied, s.Mark("connect", SourceLifecycle))

	snap := s.Snapshot()
	assert.Equal(t, Entry{Service: "connect", Observed: true, Source: SourceLifecycle, Seq: 2}, snap[0])
	assert.Equal(t, Entry{Service: "A", Observed: true, Source: SourceReport, Seq: 1}, snap[1])
	assert.Equal(t, Entry{Service: "B"}, snap[2])

	assert.True(t, s.Observed("A"))
	assert.False(t, s.Observed("B"))
	assert.False(t, s.Observed("Z"))
	assert.Equal(t, 3, s.Len())
}

func TestMarkNormalizesName(t *testing.T) {
	s := NewState(catalogue.MustNew("caf\u00e9"))

	assert.Equal(t, Applied, s.Mark("cafe\u0301", SourceReport))
	assert.True(t, s.Observed("caf\u00e9"))
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewState(catalogue.MustNew("A"))

	snap := s.Snapshot()
	snap[0].Observed = true

	assert.False(t, s.Observed("A"))
}

func TestConcurrentMarksAreVisible(t *testing.T) {
	c := catalogue.MustNew("a", "b", "c", "d", "e", "f", "g", "h")
	s := NewState(c)

	var wg sync.WaitGroup
	for _, name := range c.Names() {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				s.Mark(name, SourceReport)
			}(name)
		}
	}
	wg.Wait()

	assert.Equal(t, c.Len(), s.ObservedCount())
	seqs := map[int64]bool{}
	for _, e := range s.Snapshot() {
		assert.False(t, seqs[e.Seq], "sequence %d reused", e.Seq)
		seqs[e.Seq] = true
	}
}

func TestSourceRoundTrip(t *testing.T) {
	for _, src := range []Source{SourceNone, SourceLifecycle, SourceReport} {
		got, ok := ParseSource(src.String())
		require.True(t, ok)
		assert.Equal(t, src, got)
	}
	_, ok := ParseSource("rumour")
	assert.False(t, ok)
}
