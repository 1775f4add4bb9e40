// Package matching correlates matchable blocklist entries with sender traffic
// and bumps each entry's match counter.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	blmetrics "senderguard/internal/blocklist/metrics"
	"senderguard/internal/blocklist/models"
	"senderguard/internal/blocklist/ports"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/sentinel"
	platformstrings "senderguard/pkg/platform/strings"
	"senderguard/pkg/requestcontext"
)

const (
	defaultConcurrency  = 8
	defaultStoreTimeout = 5 * time.Second
)

// Run outcomes reported in logs and metrics.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
	OutcomeEmpty   = "empty"
)

type Engine struct {
	entries     ports.EntryStore
	traffic     ports.TrafficReader
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	metrics     *blmetrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *blmetrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithConcurrency caps the number of counter updates in flight.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithStoreTimeout bounds each store call made during a run.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func New(entries ports.EntryStore, traffic ports.TrafficReader, opts ...Option) (*Engine, error) {
	if entries == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	if traffic == nil {
		return nil, fmt.Errorf("traffic reader is required")
	}
	e := &Engine{
		entries:     entries,
		traffic:     traffic,
		concurrency: defaultConcurrency,
		timeout:     defaultStoreTimeout,
		tracer:      otel.Tracer("senderguard/blocklist"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// RunMatch performs one matching run.
//
// Each run adds the number of matching traffic records to the entry's
// matchCount, so repeated runs over unchanged traffic keep accumulating.
// Counter updates are independent: a failed update is reported in
// RunResult.Failures and the returned error has CodePartialFailure, while the
// reports of the updates that succeeded are still returned. Load failures
// abort the run before any update.
func (e *Engine) RunMatch(ctx context.Context) (result models.RunResult, err error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx, span := e.tracer.Start(ctx, "blocklist.RunMatch")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		}
		span.End()
	}()

	var entries []*models.Entry
	err = e.callStore(ctx, func(c context.Context) error {
		var err error
		entries, err = e.entries.ListMatchable(c, now)
		return err
	})
	if err != nil {
		err = translate(err, "failed to load matchable entries")
		e.finish(ctx, OutcomeFailed, start, result, err)
		return models.RunResult{}, err
	}
	if len(entries) == 0 {
		e.finish(ctx, OutcomeEmpty, start, result, nil)
		return models.RunResult{Reports: []models.MatchReport{}}, nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.SenderName)
	}
	names = platformstrings.Unique(names)
	var records []models.TrafficRecord
	err = e.callStore(ctx, func(c context.Context) error {
		var err error
		records, err = e.traffic.FindBySenderNames(c, names)
		return err
	})
	if err != nil {
		err = translate(err, "failed to load sender traffic")
		e.finish(ctx, OutcomeFailed, start, result, err)
		return models.RunResult{}, err
	}

	groups := make(map[string][]models.TrafficRecord, len(entries))
	for _, r := range records {
		groups[r.SenderName] = append(groups[r.SenderName], r)
	}

	type slot struct {
		report  *models.MatchReport
		failure *models.EntryFailure
	}
	slots := make([]slot, len(entries))

	// Workers never return an error, so one failed update cannot cancel the rest.
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, entry := range entries {
		matched := groups[entry.SenderName]
		if len(matched) == 0 {
			continue
		}
		g.Go(func() error {
			var updated *models.Entry
			err := e.callStore(ctx, func(c context.Context) error {
				var err error
				updated, err = e.entries.IncrementMatch(c, entry.ID, int64(len(matched)), now)
				return err
			})
			if err != nil {
				coded := translate(err, "failed to update match counter")
				slots[i].failure = &models.EntryFailure{
					EntryID:    entry.ID,
					SenderName: entry.SenderName,
					Matches:    len(matched),
					Err:        coded,
					Reason:     coded.Error(),
					Retryable:  dErrors.IsRetryable(coded),
				}
				return nil
			}
			report := models.NewMatchReport(updated, matched)
			slots[i].report = &report
			return nil
		})
	}
	_ = g.Wait()

	result.Reports = make([]models.MatchReport, 0, len(entries))
	for _, s := range slots {
		switch {
		case s.report != nil:
			result.Reports = append(result.Reports, *s.report)
		case s.failure != nil:
			result.Failures = append(result.Failures, *s.failure)
		}
	}

	span.SetAttributes(
		attribute.Int("match.entries", len(entries)),
		attribute.Int("match.records", len(records)),
		attribute.Int("match.updated", len(result.Reports)),
		attribute.Int("match.failed", len(result.Failures)),
	)

	err = result.Err()
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomePartial
	}
	e.finish(ctx, outcome, start, result, err)
	return result, err
}

func (e *Engine) finish(ctx context.Context, outcome string, start time.Time, result models.RunResult, err error) {
	if e.metrics != nil {
		e.metrics.ObserveMatchRun(outcome, start, len(result.Reports), len(result.Failures))
	}
	level := slog.LevelInfo
	attrs := []any{
		"outcome", outcome,
		"updated", len(result.Reports),
		"failed", len(result.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, "error", err)
	}
	audit.LogEvent(ctx, e.logger, level, audit.EventMatchRun, attrs...)
}

func (e *Engine) callStore(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, sentinel.ErrTimeout) {
		return fmt.Errorf("%w: %w", sentinel.ErrTimeout, err)
	}
	return err
}

func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "entry no longer exists")
	case errors.Is(err, sentinel.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	case errors.Is(err, context.Canceled):
		return dErrors.FromContext(err)
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
