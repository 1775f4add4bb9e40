package traffic

import (
	"context"
	"sync"

	"senderguard/internal/blocklist/models"
)

// InMemoryReader serves traffic records from a slice. Queries counts lookups
// so tests can assert the batched single-query access pattern.
type InMemoryReader struct {
	mu      sync.RWMutex
	records []models.TrafficRecord
	queries int
}

func NewInMemory(records ...models.TrafficRecord) *InMemoryReader {
	return &InMemoryReader{records: append([]models.TrafficRecord(nil), records...)}
}

// Add appends records, standing in for the ingestion side.
func (r *InMemoryReader) Add(records ...models.TrafficRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
}

func (r *InMemoryReader) FindBySenderNames(ctx context.Context, senderNames []string) ([]models.TrafficRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(senderNames))
	for _, n := range senderNames {
		wanted[n] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	out := make([]models.TrafficRecord, 0)
	for _, rec := range r.records {
		if _, ok := wanted[rec.SenderName]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Queries returns how many lookups have been served.
func (r *InMemoryReader) Queries() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queries
}
