package scheduler

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStateQuotaExactUnderConcurrency(t *testing.T) {
	state := NewRunState(2)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if state.TryReserve() {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, reserved)
	assert.True(t, state.Exhausted())
}

func TestRunStateReleaseReturnsSlot(t *testing.T) {
	state := NewRunState(1)

	assert.True(t, state.TryReserve())
	assert.False(t, state.TryReserve())

	state.Release()
	assert.False(t, state.Exhausted())
	assert.True(t, state.TryReserve())
	assert.Equal(t, 1, state.Emitted())
}
