package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps runs for the life of the process.
type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]RunMetadata
	thermo      map[string]*Thermo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]RunMetadata)
	s.thermo = make(map[string]*Thermo)
	return nil
}

func (s *MemoryStore) Save(_ context.Context, meta RunMetadata, thermo *Thermo) (string, error) {
	if err := prepare(&meta, thermo); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return "", ErrNotInitialized
	}

	s.runs[meta.ID] = meta
	s.thermo[meta.ID] = copyThermo(thermo)
	return meta.ID, nil
}

func (s *MemoryStore) List(_ context.Context) ([]RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]RunMetadata, 0, len(s.runs))
	for _, m := range s.runs {
		runs = append(runs, m)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*RunMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &meta, nil
}

func (s *MemoryStore) LoadThermo(_ context.Context, id string) (*Thermo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.thermo[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyThermo(t), nil
}

func copyThermo(t *Thermo) *Thermo {
	out := &Thermo{
		Steps:  append([]uint64(nil), t.Steps...),
		Times:  append([]float64(nil), t.Times...),
		Names:  append([]string(nil), t.Names...),
		Values: make(map[string][]float64, len(t.Values)),
	}
	for k, v := range t.Values {
		out.Values[k] = append([]float64(nil), v...)
	}
	return out
}
