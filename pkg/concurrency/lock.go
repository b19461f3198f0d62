// Package concurrency provides keyed mutual exclusion.
package concurrency

import (
	"sync"
)

// MutexManager hands out one mutex per key. Entries are reference counted and
// dropped once no goroutine holds or waits on them, so short-lived keys such as
// token scope hashes and database paths do not accumulate.
type MutexManager struct {
	mutexes map[string]*refMutex
	mapMu   sync.Mutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func NewMutexManager() *MutexManager {
	return &MutexManager{
		mutexes: make(map[string]*refMutex),
	}
}

func (m *MutexManager) Lock(key string) {
	m.mapMu.Lock()
	rm, exists := m.mutexes[key]
	if !exists {
		rm = &refMutex{}
		m.mutexes[key] = rm
	}
	rm.refs++
	m.mapMu.Unlock()

	rm.mu.Lock()
}

// Unlock releases key. Unlocking a key that is not locked is a no-op.
func (m *MutexManager) Unlock(key string) {
	m.mapMu.Lock()
	rm, exists := m.mutexes[key]
	if !exists {
		m.mapMu.Unlock()
		return
	}
	rm.refs--
	if rm.refs == 0 {
		delete(m.mutexes, key)
	}
	m.mapMu.Unlock()

	rm.mu.Unlock()
}

// Do runs fn while holding the lock for key
func (m *MutexManager) Do(key string, fn func() error) error {
	m.Lock(key)
	defer m.Unlock(key)
	return fn()
}

// Len reports how many keys are currently held or waited on
func (m *MutexManager) Len() int {
	m.mapMu.Lock()
	defer m.mapMu.Unlock()
	return len(m.mutexes)
}
