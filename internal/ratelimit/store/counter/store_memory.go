package counter

import (
	"context"
	"sync"
	"time"

	"senderguard/pkg/requestcontext"
)

// sweepEvery bounds memory growth: expired keys are pruned on every Nth increment.
const sweepEvery = 1024

// InMemoryStore implements ports.CounterStore for single-process deployments
// and tests. It follows the same expiry-on-create rule as the Redis store.
type InMemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counterEntry
	now      func() time.Time
	ops      int
}

type counterEntry struct {
	count    int64
	expireAt time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides the clock used for calls whose context carries no
// request time.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

// NewInMemory creates an in-memory counter store.
func NewInMemory(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		counters: make(map[string]*counterEntry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) IncrementWithExpiryOnCreate(ctx context.Context, key string, expireAt time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clockFor(ctx)
	s.ops++
	if s.ops%sweepEvery == 0 {
		s.sweepLocked(now)
	}

	e, ok := s.counters[key]
	if !ok || !now.Before(e.expireAt) {
		e = &counterEntry{expireAt: expireAt}
		s.counters[key] = e
	}
	e.count++
	return e.count, nil
}

// clockFor evaluates expiry on the same clock the caller used to derive
// expireAt. A request stamped before a window boundary but counted after it
// must still land in the window it was stamped in.
func (s *InMemoryStore) clockFor(ctx context.Context) time.Time {
	if t, ok := requestcontext.RequestTime(ctx); ok {
		return t
	}
	return s.now()
}

// Len returns the number of live keys.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(s.now())
	return len(s.counters)
}

// sweepLocked removes expired keys. Must be called while holding s.mu.
func (s *InMemoryStore) sweepLocked(now time.Time) {
	for k, e := range s.counters {
		if !now.Before(e.expireAt) {
			delete(s.counters, k)
		}
	}
}
