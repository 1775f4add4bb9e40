package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	id "senderguard/pkg/domain"
	audit "senderguard/pkg/platform/audit"
)

// InMemoryStore is an append-only audit log kept in insertion order.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, record audit.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListByEntity(_ context.Context, entityID id.EntryID) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool { return r.EntityID == entityID }), nil
}

// ListByDateRange returns records with from <= CreatedAt < to. A zero bound is open.
func (s *InMemoryStore) ListByDateRange(_ context.Context, from, to time.Time) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool {
		if !from.IsZero() && r.CreatedAt.Before(from) {
			return false
		}
		if !to.IsZero() && !r.CreatedAt.Before(to) {
			return false
		}
		return true
	}), nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID id.UserID) ([]audit.Record, error) {
	return s.filter(func(r audit.Record) bool { return r.ActorID == actorID }), nil
}

// Len returns the number of stored records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// filter returns matching records newest first; ties keep reverse insertion order.
func (s *InMemoryStore) filter(keep func(audit.Record) bool) []audit.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]audit.Record, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		if keep(s.records[i]) {
			out = append(out, s.records[i])
		}
	}
	slices.SortStableFunc(out, func(a, b audit.Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
