package progress

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store for tests and single-process setups.
type MemStore struct {
	mu      sync.Mutex
	records map[int]*Record

	findErr error
	saveErr error
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[int]*Record)}
}

// Find implements Store.
func (s *MemStore) Find(ctx context.Context, typeID int) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.records[typeID].Clone(), nil
}

// Save implements Store.
func (s *MemStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[rec.TypeID] = rec.Clone()
	return nil
}

// Delete implements Store.
func (s *MemStore) Delete(ctx context.Context, typeID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, typeID)
	return nil
}

// SetFindError makes Find fail.
func (s *MemStore) SetFindError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findErr = err
}

// SetSaveError makes Save fail.
func (s *MemStore) SetSaveError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}
