package monitor

import "sync/atomic"

// Clock is a monotonic logical clock stamping every event at enqueue time.
//
// Sequence numbers give a total order over callbacks regardless of which
// goroutine delivered them, and they key the run ledger rows. Safe for
// concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
