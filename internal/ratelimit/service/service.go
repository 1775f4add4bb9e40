// Package service implements the fixed-window rate limiter.
//
// Check never returns an error. When the counter store cannot answer within
// the store timeout the decision fails open: the request is admitted, a WARN
// line is logged and the decision is marked Degraded. Callers that need
// fail-closed behavior inspect Decision.Degraded themselves.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"senderguard/internal/ratelimit/metrics"
	"senderguard/internal/ratelimit/models"
	"senderguard/internal/ratelimit/ports"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/circuit"
	"senderguard/pkg/requestcontext"
)

const defaultStoreTimeout = 250 * time.Millisecond

type Service struct {
	store    ports.CounterStore
	policies map[models.Policy]models.Window
	timeout  time.Duration
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStoreTimeout bounds each counter store call.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithPolicies replaces the named policy table used by CheckPolicy.
func WithPolicies(policies map[models.Policy]models.Window) Option {
	return func(s *Service) {
		s.policies = policies
	}
}

// DefaultPolicies is the built-in policy table.
func DefaultPolicies() map[models.Policy]models.Window {
	return map[models.Policy]models.Window{
		models.PolicyAuth:   {MaxRequests: 5, WindowSeconds: 900},
		models.PolicyVerify: {MaxRequests: 10, WindowSeconds: 900},
		models.PolicyAPI:    {MaxRequests: 100, WindowSeconds: 60},
		models.PolicyUpload: {MaxRequests: 10, WindowSeconds: 600},
		models.PolicyEmail:  {MaxRequests: 3, WindowSeconds: 3600},
		models.PolicyCron:   {MaxRequests: 1, WindowSeconds: 60},
	}
}

func New(store ports.CounterStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("counter store is required")
	}

	svc := &Service{
		store:    store,
		policies: DefaultPolicies(),
		timeout:  defaultStoreTimeout,
		breaker:  circuit.New("ratelimit-store", circuit.WithFailureThreshold(1), circuit.WithSuccessThreshold(1)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check counts one request against the window for (identifier, clientKey).
func (s *Service) Check(ctx context.Context, identifier, clientKey string, w models.Window) models.Decision {
	return s.check(ctx, "", identifier, clientKey, w)
}

// CheckPolicy resolves a named policy and runs Check against it.
//
// Errors: CodeInvalidInput when the policy is unknown. Store failures never
// produce an error.
func (s *Service) CheckPolicy(ctx context.Context, policy models.Policy, identifier, clientKey string) (models.Decision, error) {
	w, ok := s.policies[policy]
	if !ok {
		return models.Decision{}, dErrors.Newf(dErrors.CodeInvalidInput, "unknown rate limit policy %q", policy)
	}
	return s.check(ctx, policy, identifier, clientKey, w), nil
}

func (s *Service) check(ctx context.Context, policy models.Policy, identifier, clientKey string, w models.Window) models.Decision {
	now := requestcontext.Now(ctx)
	label := string(policy)
	if label == "" {
		label = "custom"
	}

	if err := w.Validate(); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "invalid rate limit window, denying request",
				"policy", label,
				"max_requests", w.MaxRequests,
				"window_seconds", w.WindowSeconds,
				"error", err,
			)
		}
		s.observe(label, metrics.OutcomeInvalid)
		return models.Decision{Allowed: false, Limit: w.MaxRequests, ResetAt: now}
	}

	_, resetAt := w.Bounds(now)
	key := models.Key(identifier, clientKey)

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.store.IncrementWithExpiryOnCreate(storeCtx, key, resetAt)
	if err != nil {
		s.recordStoreFailure(ctx, label, key, err)
		return models.FailOpen(w, resetAt)
	}
	s.recordStoreSuccess(ctx)

	decision := models.Decide(count, w, resetAt)
	if !decision.Allowed {
		audit.LogEvent(ctx, s.logger, slog.LevelInfo, audit.EventRateLimitExceeded,
			"identifier", identifier,
			"policy", label,
			"limit", w.MaxRequests,
			"window_seconds", w.WindowSeconds,
			"count", count,
		)
		s.observe(label, metrics.OutcomeDenied)
		return decision
	}
	s.observe(label, metrics.OutcomeAllowed)
	return decision
}

func (s *Service) recordStoreFailure(ctx context.Context, label, key string, err error) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, "rate limit store unavailable, failing open",
			"policy", label,
			"key", key,
			"timeout", errors.Is(err, context.DeadlineExceeded),
			"error", err,
		)
	}
	if s.metrics != nil {
		s.metrics.IncrementStoreFailures()
	}
	s.observe(label, metrics.OutcomeDegraded)

	if _, change := s.breaker.RecordFailure(); change.Opened {
		if s.metrics != nil {
			s.metrics.SetDegraded(true)
		}
		audit.LogEvent(ctx, s.logger, slog.LevelWarn, audit.EventRateLimitStoreDegraded, "error", err)
	}
}

func (s *Service) recordStoreSuccess(ctx context.Context) {
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		if s.metrics != nil {
			s.metrics.SetDegraded(false)
		}
		audit.LogEvent(ctx, s.logger, slog.LevelInfo, audit.EventRateLimitStoreRestored)
	}
}

func (s *Service) observe(policy, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveDecision(policy, outcome)
	}
}
