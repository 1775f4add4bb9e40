package stream

import (
	"sync"

	audit "senderguard/pkg/platform/audit"
)

// ringBuffer is a bounded queue of records awaiting publication. When full,
// the oldest record is dropped; the durable copy already lives in the store.
type ringBuffer struct {
	mu       sync.Mutex
	records  []audit.Record
	head     int
	tail     int
	count    int
	capacity int
	dropped  int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ringBuffer{
		records:  make([]audit.Record, capacity),
		capacity: capacity,
	}
}

// enqueue adds r and reports whether an older record was dropped to make room.
func (b *ringBuffer) enqueue(r audit.Record) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	dropped := false
	if b.count >= b.capacity {
		b.records[b.tail] = audit.Record{}
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		dropped = true
	}
	b.records[b.head] = r
	b.head = (b.head + 1) % b.capacity
	b.count++
	return dropped
}

func (b *ringBuffer) dequeueBatch(n int) []audit.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]audit.Record, n)
	for i := range n {
		out[i] = b.records[b.tail]
		b.records[b.tail] = audit.Record{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

// discard empties the buffer and returns how many records it held.
func (b *ringBuffer) discard() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.count
	clear(b.records)
	b.head, b.tail, b.count = 0, 0, 0
	return n
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) droppedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
