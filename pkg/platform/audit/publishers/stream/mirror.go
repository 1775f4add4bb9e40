// Package stream mirrors appended audit records to a Kafka topic.
//
// The mirror is best-effort: the wrapped store is the system of record and
// Append succeeds as soon as the store write succeeds. Records are queued in a
// bounded buffer and published by a background loop; publication failures are
// counted and logged but never surface to the mutation path.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	id "senderguard/pkg/domain"
	audit "senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/circuit"
)

// Producer is the subset of *kgo.Client the mirror uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

const (
	defaultBatchSize      = 100
	defaultFlushInterval  = 500 * time.Millisecond
	defaultPublishTimeout = 5 * time.Second
)

// Mirror decorates an audit.Store with asynchronous stream publication.
type Mirror struct {
	store    audit.Store
	producer Producer
	topic    string

	buffer         *ringBuffer
	breaker        *circuit.Breaker
	logger         *slog.Logger
	metrics        *Metrics
	batchSize      int
	flushInterval  time.Duration
	publishTimeout time.Duration

	wake      chan struct{}
	stop      chan struct{}
	drainCtx  context.Context
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

type Option func(*Mirror)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Mirror) { m.logger = logger }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Mirror) { m.metrics = metrics }
}

// WithBufferSize bounds the number of records awaiting publication.
func WithBufferSize(n int) Option {
	return func(m *Mirror) { m.buffer = newRingBuffer(n) }
}

func WithFlushInterval(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.flushInterval = d
		}
	}
}

// WithPublishTimeout bounds a single ProduceSync call.
func WithPublishTimeout(d time.Duration) Option {
	return func(m *Mirror) {
		if d > 0 {
			m.publishTimeout = d
		}
	}
}

// New wraps store. Call Start to begin publishing and Close to drain.
func New(store audit.Store, producer Producer, topic string, opts ...Option) *Mirror {
	m := &Mirror{
		store:          store,
		producer:       producer,
		topic:          topic,
		buffer:         newRingBuffer(0),
		breaker:        circuit.New("audit-stream"),
		batchSize:      defaultBatchSize,
		flushInterval:  defaultFlushInterval,
		publishTimeout: defaultPublishTimeout,
		wake:           make(chan struct{}, 1),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Append writes to the wrapped store and, on success, queues the record for
// publication. Inside a transaction the record is queued before commit; a
// later rollback can therefore leave a mirrored record with no stored row,
// which consumers tolerate because the store stays authoritative.
func (m *Mirror) Append(ctx context.Context, record audit.Record) error {
	if err := m.store.Append(ctx, record); err != nil {
		return err
	}
	if m.buffer.enqueue(record) && m.metrics != nil {
		m.metrics.Dropped.Inc()
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return nil
}

func (m *Mirror) ListByEntity(ctx context.Context, entityID id.EntryID) ([]audit.Record, error) {
	return m.store.ListByEntity(ctx, entityID)
}

func (m *Mirror) ListByDateRange(ctx context.Context, from, to time.Time) ([]audit.Record, error) {
	return m.store.ListByDateRange(ctx, from, to)
}

func (m *Mirror) ListByActor(ctx context.Context, actorID id.UserID) ([]audit.Record, error) {
	return m.store.ListByActor(ctx, actorID)
}

// Start launches the publish loop. It is safe to call more than once.
func (m *Mirror) Start() {
	m.startOnce.Do(func() {
		go m.run()
	})
}

// Close stops the loop after publishing whatever is still buffered. The
// drain gives up once ctx is done; records still queued then are counted as
// dropped, since the store already holds them.
func (m *Mirror) Close(ctx context.Context) {
	m.Start()
	m.closeOnce.Do(func() {
		m.drainCtx = ctx
		close(m.stop)
	})
	<-m.done
}

// Pending returns the number of records waiting to be published.
func (m *Mirror) Pending() int {
	return m.buffer.len()
}

func (m *Mirror) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			m.drain(m.drainCtx)
			return
		case <-m.wake:
			m.flush(context.Background())
		case <-ticker.C:
			m.flush(context.Background())
		}
	}
}

func (m *Mirror) drain(ctx context.Context) {
	for ctx.Err() == nil {
		if m.flush(ctx) == 0 {
			return
		}
	}
	left := m.buffer.discard()
	if left == 0 {
		return
	}
	if m.metrics != nil {
		m.metrics.Dropped.Add(float64(left))
	}
	m.logFailure("audit stream drain abandoned at shutdown", ctx.Err(), left)
}

// flush publishes one batch and returns how many records it took off the
// buffer. The publish is bounded by publishTimeout and by parent.
func (m *Mirror) flush(parent context.Context) int {
	batch := m.buffer.dequeueBatch(m.batchSize)
	if len(batch) == 0 {
		return 0
	}

	records := make([]*kgo.Record, 0, len(batch))
	for _, r := range batch {
		value, err := json.Marshal(toPayload(r))
		if err != nil {
			m.logFailure("marshal audit record for stream", err, 1)
			continue
		}
		records = append(records, &kgo.Record{
			Topic: m.topic,
			Key:   []byte(r.EntityID.String()),
			Value: value,
		})
	}
	if len(records) == 0 {
		return len(batch)
	}

	ctx, cancel := context.WithTimeout(parent, m.publishTimeout)
	defer cancel()

	results := m.producer.ProduceSync(ctx, records...)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		if m.metrics != nil {
			m.metrics.PublishFailed.Add(float64(failed))
		}
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.setBreakerGauge(true)
			m.logFailure("audit stream degraded", results.FirstErr(), failed)
		}
	} else if _, change := m.breaker.RecordSuccess(); change.Closed {
		m.setBreakerGauge(false)
		if m.logger != nil {
			m.logger.Info("audit stream restored", "topic", m.topic)
		}
	}
	if m.metrics != nil {
		m.metrics.Published.Add(float64(len(records) - failed))
	}
	return len(batch)
}

func (m *Mirror) setBreakerGauge(open bool) {
	if m.metrics == nil {
		return
	}
	if open {
		m.metrics.CircuitBreaker.Set(1)
	} else {
		m.metrics.CircuitBreaker.Set(0)
	}
}

func (m *Mirror) logFailure(msg string, err error, count int) {
	if m.logger == nil {
		return
	}
	m.logger.Warn(msg,
		"event", string(audit.EventAuditMirrorDegraded),
		"log_type", "audit",
		"topic", m.topic,
		"records", count,
		"error", err,
	)
}

// payload is the JSON shape published to the topic.
type payload struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entityId,omitempty"`
	EntityType string          `json:"entityType"`
	EntityName string          `json:"entityName,omitempty"`
	ActorID    string          `json:"actorId"`
	OldData    json.RawMessage `json:"oldData,omitempty"`
	NewData    json.RawMessage `json:"newData,omitempty"`
	ClientIP   string          `json:"clientIp,omitempty"`
	UserAgent  string          `json:"userAgent,omitempty"`
	Device     string          `json:"device,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
	CreatedAt  string          `json:"createdAt"`
}

func toPayload(r audit.Record) payload {
	p := payload{
		ID:         r.ID.String(),
		Action:     string(r.Action),
		EntityType: string(r.EntityType),
		EntityName: r.EntityName,
		ActorID:    r.ActorID.String(),
		OldData:    r.OldData,
		NewData:    r.NewData,
		ClientIP:   r.ClientIP,
		UserAgent:  r.UserAgent,
		Device:     r.Device,
		RequestID:  r.RequestID,
		CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !r.EntityID.IsNil() {
		p.EntityID = r.EntityID.String()
	}
	return p
}
