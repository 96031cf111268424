package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackedMutexHeld(t *testing.T) {
	var m TrackedMutex
	require.False(t, m.Held())

	m.Lock()
	require.True(t, m.Held())
	m.Unlock()
	require.False(t, m.Held())
}

func TestTrackedMutexExcludes(t *testing.T) {
	var m TrackedMutex
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 8000, counter)
}

func TestConcurrencyLimit(t *testing.T) {
	var c ConcurrencyLimit
	require.Equal(t, "auto", c.String())
	require.Positive(t, c.Value())

	require.NoError(t, c.Set("4"))
	require.Equal(t, 4, c.Value())
	require.Equal(t, "4", c.String())

	require.NoError(t, c.Set("-1"))
	require.Equal(t, 1, c.Value())

	require.Error(t, c.Set("nope"))

	require.NoError(t, c.Set("auto"))
	require.Positive(t, c.Value())
}
