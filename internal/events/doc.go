// Package events records the timing of device commands in a fixed-size
// event window.
//
// Every kernel launch and buffer transfer registers one event carrying a
// descriptor, a free-form tag and a (start, stop) timestamp pair. Slots are
// reused when the window wraps; retained slots are skipped until released.
// Summary aggregates durations per descriptor for profiling output.
package events
