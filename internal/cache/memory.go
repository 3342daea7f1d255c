package cache

import (
	"context"
	"sync"

	"github.com/stwalsh4118/zoning-engine/internal/models"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.OrdinanceCacheEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.OrdinanceCacheEntry)}
}

func (s *MemoryStore) Get(_ context.Context, jurisdictionID string) (*models.OrdinanceCacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[jurisdictionID]
	if !ok {
		return nil, nil
	}
	entry.Content = append([]byte(nil), entry.Content...)
	return &entry, nil
}

func (s *MemoryStore) Put(_ context.Context, entry *models.OrdinanceCacheEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.entries[entry.JurisdictionID]; ok && !current.FetchedAt.Before(entry.FetchedAt) {
		return false, nil
	}

	stored := *entry
	stored.Content = append([]byte(nil), entry.Content...)
	s.entries[entry.JurisdictionID] = stored
	return true, nil
}
