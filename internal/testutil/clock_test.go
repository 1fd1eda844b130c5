package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_StartsAtZero(t *testing.T) {
	clock := NewDeterministicClock(10)
	assert.Equal(t, int64(0), clock.Current())
}

func TestDeterministicClock_AdvancesByTick(t *testing.T) {
	clock := NewDeterministicClock(10)

	assert.Equal(t, int64(10), clock.Now())
	assert.Equal(t, int64(20), clock.Now())
	assert.Equal(t, int64(20), clock.Current())
}

func TestDeterministicClock_MinimumTick(t *testing.T) {
	clock := NewDeterministicClock(0)
	assert.Equal(t, int64(1), clock.Now())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock(5)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(5), clock.Now())
}

func TestDeterministicClock_Concurrent(t *testing.T) {
	clock := NewDeterministicClock(1)
	const goroutines, readings = 10, 100

	var wg sync.WaitGroup
	seen := make(chan int64, goroutines*readings)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range readings {
				seen <- clock.Now()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		assert.False(t, unique[v], "duplicate reading %d", v)
		unique[v] = true
	}
	assert.Len(t, unique, goroutines*readings)
	assert.Equal(t, int64(goroutines*readings), clock.Current())
}
