package entry

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"senderguard/internal/blocklist/models"
	id "senderguard/pkg/domain"
	"senderguard/pkg/platform/sentinel"
)

// InMemoryStore keeps entries in a map guarded by a RWMutex. Returned entries
// are copies, so callers cannot mutate stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.EntryID]*models.Entry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.EntryID]*models.Entry)}
}

func (s *InMemoryStore) FindByID(ctx context.Context, entryID id.EntryID) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *InMemoryStore) FindBySenderName(ctx context.Context, senderName string) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.SenderName == senderName {
			return e.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(ctx context.Context, filter models.Filter) ([]*models.Entry, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	filter = filter.Normalize()
	needle := strings.ToLower(filter.SenderName)

	s.mu.RLock()
	matched := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if needle != "" && !strings.Contains(strings.ToLower(e.SenderName), needle) {
			continue
		}
		if filter.IsActive != nil && e.IsActive != *filter.IsActive {
			continue
		}
		if filter.EffectiveFrom != nil && e.EffectiveDate.Before(*filter.EffectiveFrom) {
			continue
		}
		matched = append(matched, e.Clone())
	}
	s.mu.RUnlock()

	slices.SortStableFunc(matched, compareListOrder)

	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.PageSize, total)
	return matched[start:end], total, nil
}

// compareListOrder sorts by lastMatchDate desc with nulls last, then createdAt desc.
func compareListOrder(a, b *models.Entry) int {
	switch {
	case a.LastMatchDate != nil && b.LastMatchDate == nil:
		return -1
	case a.LastMatchDate == nil && b.LastMatchDate != nil:
		return 1
	case a.LastMatchDate != nil && b.LastMatchDate != nil && !a.LastMatchDate.Equal(*b.LastMatchDate):
		return b.LastMatchDate.Compare(*a.LastMatchDate)
	}
	return b.CreatedAt.Compare(a.CreatedAt)
}

func (s *InMemoryStore) ListMatchable(ctx context.Context, now time.Time) ([]*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Entry, 0)
	for _, e := range s.entries {
		if e.IsMatchable(now) {
			out = append(out, e.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Entry) int { return strings.Compare(a.SenderName, b.SenderName) })
	return out, nil
}

func (s *InMemoryStore) Create(ctx context.Context, entry *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.ID]; ok {
		return sentinel.ErrConflict
	}
	if s.nameTakenLocked(entry.SenderName, entry.ID) {
		return sentinel.ErrConflict
	}
	s.entries[entry.ID] = entry.Clone()
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, entry *models.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.entries[entry.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if s.nameTakenLocked(entry.SenderName, entry.ID) {
		return sentinel.ErrConflict
	}
	next := entry.Clone()
	// match counters are owned by IncrementMatch
	next.MatchCount = current.MatchCount
	next.LastMatchDate = current.LastMatchDate
	s.entries[entry.ID] = next
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, entryID id.EntryID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entryID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.entries, entryID)
	return nil
}

func (s *InMemoryStore) IncrementMatch(ctx context.Context, entryID id.EntryID, delta int64, at time.Time) (*models.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	e.MatchCount += delta
	t := at
	e.LastMatchDate = &t
	return e.Clone(), nil
}

func (s *InMemoryStore) nameTakenLocked(name string, self id.EntryID) bool {
	for otherID, e := range s.entries {
		if otherID != self && e.SenderName == name {
			return true
		}
	}
	return false
}
