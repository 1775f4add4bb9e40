package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"senderguard/internal/ratelimit/models"
	"senderguard/pkg/platform/httputil"
	"senderguard/pkg/requestcontext"
)

// Limiter is satisfied by *service.Service.
type Limiter interface {
	CheckPolicy(ctx context.Context, policy models.Policy, identifier, clientKey string) (models.Decision, error)
}

type Middleware struct {
	limiter  Limiter
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter Limiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit throttles a route under a named policy. The identifier is the
// policy plus the authenticated actor (or "anonymous"); the client key is the
// client IP placed on the context by the metadata middleware.
func (m *Middleware) RateLimit(policy models.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			decision, err := m.limiter.CheckPolicy(ctx, policy, identifierFor(ctx, policy), clientKeyFor(ctx))
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to resolve rate limit policy", "policy", policy, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, decision)

			if !decision.Allowed {
				writeRateLimitExceeded(w, decision, requestcontext.Now(ctx))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func identifierFor(ctx context.Context, policy models.Policy) string {
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		return string(policy) + ":anonymous"
	}
	return string(policy) + ":" + actor.String()
}

func clientKeyFor(ctx context.Context) string {
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		return ip
	}
	return "unknown"
}

func addRateLimitHeaders(w http.ResponseWriter, d models.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", d.ResetAt.UTC().Format(time.RFC3339))
	if d.Degraded {
		w.Header().Set("X-RateLimit-Status", "degraded")
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, d models.Decision, now time.Time) {
	retryAfter := d.RetryAfter(now)
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		Limit:      d.Limit,
		ResetAt:    d.ResetAt.UTC(),
		RetryAfter: retryAfter,
	})
}
