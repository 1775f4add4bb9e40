package models

import (
	"time"

	dErrors "senderguard/pkg/domain-errors"
)

// Policy names a preconfigured window for a class of sensitive operation.
type Policy string

const (
	PolicyAuth   Policy = "auth"
	PolicyVerify Policy = "verify"
	PolicyAPI    Policy = "api"
	PolicyUpload Policy = "upload"
	PolicyEmail  Policy = "email"
	PolicyCron   Policy = "cron"
)

// Window is a fixed-window limit: at most MaxRequests per WindowSeconds.
type Window struct {
	MaxRequests   int `json:"max_requests"`
	WindowSeconds int `json:"window_seconds"`
}

// Validate rejects windows that cannot produce a meaningful decision.
func (w Window) Validate() error {
	if w.MaxRequests <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "max requests must be positive")
	}
	if w.WindowSeconds <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "window seconds must be positive")
	}
	return nil
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return time.Duration(w.WindowSeconds) * time.Second
}

// Bounds returns the fixed window containing now: start = now - (now mod window),
// resetAt = start + window. Boundaries are aligned to the Unix epoch so every
// process computes the same window for the same instant.
func (w Window) Bounds(now time.Time) (start, resetAt time.Time) {
	secs := int64(w.WindowSeconds)
	unix := now.Unix()
	startUnix := unix - unix%secs
	start = time.Unix(startUnix, 0).In(now.Location())
	return start, start.Add(w.Duration())
}

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	// Degraded is set when the counter store could not be reached and the
	// decision failed open.
	Degraded bool `json:"degraded,omitempty"`
}

// Decide turns the post-increment count into a decision.
func Decide(count int64, w Window, resetAt time.Time) Decision {
	remaining := int64(w.MaxRequests) - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= int64(w.MaxRequests),
		Limit:     w.MaxRequests,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
}

// FailOpen is the decision returned when the counter store is unavailable.
func FailOpen(w Window, resetAt time.Time) Decision {
	return Decision{
		Allowed:   true,
		Limit:     w.MaxRequests,
		Remaining: w.MaxRequests,
		ResetAt:   resetAt,
		Degraded:  true,
	}
}

// RetryAfter returns whole seconds until ResetAt, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Seconds())
	if d.ResetAt.Sub(now) > time.Duration(secs)*time.Second {
		secs++
	}
	if secs < 1 {
		return 1
	}
	return secs
}
