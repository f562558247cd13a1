package auth

import "sync"

// MemoryStore holds the credential set in memory and counts calls.
// It is used by tests and by one-shot runs that should not touch disk.
type MemoryStore struct {
	mu        sync.Mutex
	set       CredentialSet
	clearance string

	// SaveError is returned by Save when set
	SaveError error

	Loads         int
	Saves         int
	Invalidations int
}

// NewMemoryStore creates a store pre-populated with initial (which may be nil)
func NewMemoryStore(initial CredentialSet) *MemoryStore {
	m := &MemoryStore{clearance: DefaultClearanceCookie}
	if initial != nil {
		m.set = initial.Clone()
	}
	return m
}

// Load returns a copy of the held set, or an empty set without clearance
func (m *MemoryStore) Load() CredentialSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Loads++
	if !m.set.ValidFor(m.clearance) {
		return CredentialSet{}
	}
	return m.set.Clone()
}

// Save replaces the held set
func (m *MemoryStore) Save(set CredentialSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Saves++
	if m.SaveError != nil {
		return m.SaveError
	}
	m.set = set.Clone()
	return nil
}

// Invalidate drops the held set
func (m *MemoryStore) Invalidate() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Invalidations++
	m.set = nil
	return nil
}

// Counts returns loads, saves and invalidations under the lock
func (m *MemoryStore) Counts() (loads, saves, invalidations int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Loads, m.Saves, m.Invalidations
}
