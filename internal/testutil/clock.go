package testutil

import "sync"

// DeterministicClock is a thread-safe monotonic millisecond clock for tests.
// It implements trace.Clock.
//
// Each call to Now() advances the clock by a fixed step, so the same test
// produces the same timestamps on every run.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	now   int64
}

// NewDeterministicClock creates a clock starting at 0 with a step of 1.
//
// The first call to Now() returns 1.
func NewDeterministicClock() *DeterministicClock {
	return NewDeterministicClockAt(0, 1)
}

// NewDeterministicClockAt creates a clock starting at start that advances by
// step on each call.
func NewDeterministicClockAt(start, step int64) *DeterministicClock {
	if step <= 0 {
		step = 1
	}
	return &DeterministicClock{start: start, step: step, now: start}
}

// Now advances the clock and returns the new time.
func (c *DeterministicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.step
	return c.now
}

// Current returns the current time without advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
