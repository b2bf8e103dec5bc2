// Package record persists EVV visit records. The memory store backs tests and
// local development; production uses the Postgres store.
package record

import (
	"context"
	"sync"
	"time"

	"carebridge/internal/evv/models"
	"carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
)

// MemoryStore is an in-memory record store safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[domain.VisitID]models.EVVRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[domain.VisitID]models.EVVRecord)}
}

// Put upserts a record keyed by visit ID. The record is stored by value, so
// later caller mutations do not leak into the store.
func (s *MemoryStore) Put(_ context.Context, record *models.EVVRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.VisitID] = *record
	return nil
}

// Get retrieves one record by visit ID.
func (s *MemoryStore) Get(_ context.Context, visitID domain.VisitID) (*models.EVVRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[visitID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &record, nil
}

// ListByStateAndRange returns records for a state whose service date falls
// inside the inclusive range.
func (s *MemoryStore) ListByStateAndRange(_ context.Context, state domain.StateCode, start, end time.Time) ([]*models.EVVRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.EVVRecord
	for _, record := range s.records {
		if record.State != state {
			continue
		}
		if record.ServiceDate.Before(start) || record.ServiceDate.After(end) {
			continue
		}
		copied := record
		out = append(out, &copied)
	}
	return out, nil
}
