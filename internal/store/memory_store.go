package store

import "sync"

// MemoryStore is an in-memory ConfigStore for tests and the "memory"
// backend. Load returns a deep copy so callers can't mutate stored state.
type MemoryStore struct {
	mu    sync.Mutex
	state State

	// FailSave, when set, makes the next Save return the error without
	// touching stored state. Used to exercise all-or-nothing semantics.
	FailSave error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored state.
func (s *MemoryStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

// Save replaces the stored state.
func (s *MemoryStore) Save(state State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSave != nil {
		err := s.FailSave
		s.FailSave = nil
		return err
	}
	s.state = state.Clone()
	return nil
}
