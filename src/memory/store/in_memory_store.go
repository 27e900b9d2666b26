package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Protocol-Lattice/memory-mcp/src/memory/model"
)

// InMemoryStore implements VectorStore for tests and lightweight deployments.
// Records are partitioned by user and kept in insertion order.
type InMemoryStore struct {
	mu    sync.RWMutex
	users map[string][]model.MemoryRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string][]model.MemoryRecord)}
}

func (s *InMemoryStore) StoreMemory(_ context.Context, rec model.MemoryRecord) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string][]model.MemoryRecord)
	}
	s.users[rec.UserID] = append(s.users[rec.UserID], rec.Clone())
	return nil
}

func (s *InMemoryStore) SearchMemory(_ context.Context, userID string, queryEmbedding []float32, limit int) ([]model.MemoryRecord, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.users[userID]
	scored := make([]model.MemoryRecord, 0, len(records))
	for _, rec := range records {
		rec = rec.Clone()
		rec.Score = model.CosineSimilarity(queryEmbedding, rec.Embedding)
		scored = append(scored, rec)
	}
	// Stable so equal scores keep insertion order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *InMemoryStore) Iterate(_ context.Context, userID string, fn func(model.MemoryRecord) bool) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := make([]model.MemoryRecord, len(s.users[userID]))
	for i, rec := range s.users[userID] {
		snapshot[i] = rec.Clone()
	}
	s.mu.RUnlock()
	for _, rec := range snapshot {
		if !fn(rec) {
			break
		}
	}
	return nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.users[userID])
	delete(s.users, userID)
	return n, nil
}

func (s *InMemoryStore) Count(_ context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[userID]), nil
}
