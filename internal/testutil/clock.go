// Package testutil holds deterministic stand-ins for the wall clock and run
// ID generation so scenario output is byte-identical between runs.
package testutil

import (
	"sync"
	"time"
)

// SteppingClock is a thread-safe wall clock for tests. Every call to Now
// returns the previous reading advanced by a fixed step.
//
// Unlike time.Now, SteppingClock can be reset so the same scenario produces
// the same report stamps when run twice.
type SteppingClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	calls int64
}

// NewSteppingClock creates a clock whose first reading is start.
// A zero step freezes the clock at start.
func NewSteppingClock(start time.Time, step time.Duration) *SteppingClock {
	return &SteppingClock{start: start, step: step}
}

// Now returns the next reading. It has the signature of time.Now.
func (c *SteppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.calls) * c.step)
	c.calls++
	return t
}

// Calls returns how many readings were taken.
func (c *SteppingClock) Calls() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset rewinds the clock so the next reading is start again.
func (c *SteppingClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
