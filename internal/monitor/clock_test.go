package monitor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StampsFromOne(t *testing.T) {
	c := NewClock()
	require.Zero(t, c.Current())

	for want := int64(1); want <= 3; want++ {
		assert.Equal(t, want, c.Next())
	}
	assert.Equal(t, int64(3), c.Current(), "Current does not advance")
	assert.Equal(t, int64(3), c.Current())
}

// Callbacks arrive on several goroutines; every stamp must be unique and
// the stamps must cover 1..n without gaps.
func TestClock_ConcurrentCallbacks(t *testing.T) {
	c := NewClock()
	const deliverers, perDeliverer = 8, 250

	stamps := make([][]int64, deliverers)
	var wg sync.WaitGroup
	for d := range deliverers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perDeliverer {
				stamps[d] = append(stamps[d], c.Next())
			}
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, deliverers*perDeliverer)
	for _, s := range stamps {
		for i, seq := range s {
			require.False(t, seen[seq], "seq %d issued twice", seq)
			seen[seq] = true
			if i > 0 {
				assert.Greater(t, seq, s[i-1], "stamps from one goroutine increase")
			}
		}
	}
	for seq := int64(1); seq <= deliverers*perDeliverer; seq++ {
		assert.True(t, seen[seq], "seq %d missing", seq)
	}
	assert.Equal(t, int64(deliverers*perDeliverer), c.Current())
}
