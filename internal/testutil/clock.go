package testutil

import "sync"

// DeterministicClock is a resettable logical clock for event timestamps in
// tests. Every call to Now advances it by a fixed tick, so a command's
// start and stop stamps differ by exactly one tick.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu   sync.Mutex
	tick int64
	now  int64
}

// NewDeterministicClock creates a clock starting at 0 that advances by
// tick nanoseconds per reading. A tick below 1 is treated as 1.
func NewDeterministicClock(tick int64) *DeterministicClock {
	if tick < 1 {
		tick = 1
	}
	return &DeterministicClock{tick: tick}
}

// Now advances the clock and returns the new reading.
func (c *DeterministicClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += c.tick
	return c.now
}

// Current returns the last reading without advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
}
