package util

import (
	"sync"

	"go.uber.org/atomic"
)

// TrackedMutex is a mutual-exclusion lock that can report whether it is
// currently held. Container-level exclusivity preconditions of the form
// "locked or at a safepoint" are checked against it. Held does not attribute
// ownership to a particular goroutine; it only reports that someone holds
// the lock.
type TrackedMutex struct {
	mu   sync.Mutex
	held atomic.Bool
}

func (m *TrackedMutex) Lock() {
	m.mu.Lock()
	m.held.Store(true)
}

func (m *TrackedMutex) Unlock() {
	m.held.Store(false)
	m.mu.Unlock()
}

func (m *TrackedMutex) Held() bool { return m.held.Load() }
