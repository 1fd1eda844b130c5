package events

import (
	"sync/atomic"
	"time"
)

// Clock stamps events. Implementations must be safe for concurrent use.
type Clock interface {
	Now() int64
}

// LogicalClock is a monotonic counter used where wall time would make
// output nondeterministic. Each reading is strictly greater than the last.
type LogicalClock struct {
	seq atomic.Int64
}

// NewLogicalClock creates a clock starting at 0.
func NewLogicalClock() *LogicalClock {
	return &LogicalClock{}
}

// NewLogicalClockAt creates a clock resuming after start.
func NewLogicalClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Now returns the next reading.
func (c *LogicalClock) Now() int64 {
	return c.seq.Add(1)
}

// Current returns the last reading without advancing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}

// WallClock reads time.Now in nanoseconds.
type WallClock struct{}

// Now returns the current Unix time in nanoseconds.
func (WallClock) Now() int64 {
	return time.Now().UnixNano()
}
