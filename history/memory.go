package history

import (
	"context"
	"sort"
	"sync"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]map[int]Row
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]map[int]Row)
	return nil
}

func (s *MemoryStore) SaveEpoch(_ context.Context, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.New("store is not initialized")
	}
	run, ok := s.runs[row.RunID]
	if !ok {
		run = make(map[int]Row)
		s.runs[row.RunID] = run
	}
	run[row.Epoch] = row
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) ([]Row, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, false, nil
	}
	rows := make([]Row, 0, len(run))
	for _, r := range run {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Epoch < rows[j].Epoch })
	return rows, true, nil
}

func (s *MemoryStore) Close() error { return nil }
