package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				v := clock.Next()
				mu.Lock()
				assert.False(t, seen[v], "duplicate value %d", v)
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, int64(numGoroutines*callsPerGoroutine), clock.Current())
}

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("scenario")
	assert.Equal(t, "scenario-0001", gen.Generate())
	assert.Equal(t, "scenario-0002", gen.Generate())

	assert.Equal(t, "run-0001", NewSequentialIDs("").Generate())
}
