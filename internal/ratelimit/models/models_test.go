package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "senderguard/pkg/domain-errors"
)

func TestWindowBounds(t *testing.T) {
	w := Window{MaxRequests: 10, WindowSeconds: 900}

	t.Run("aligned to window multiples", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 7, 31, 500, time.UTC)
		start, reset := w.Bounds(now)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC), reset)
	})

	t.Run("instant on a boundary starts a new window", func(t *testing.T) {
		now := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
		start, reset := w.Bounds(now)
		assert.Equal(t, now, start)
		assert.Equal(t, now.Add(15*time.Minute), reset)
	})

	t.Run("odd window lengths align to the epoch", func(t *testing.T) {
		odd := Window{MaxRequests: 1, WindowSeconds: 7}
		now := time.Unix(100, 0).UTC()
		start, reset := odd.Bounds(now)
		assert.Equal(t, int64(98), start.Unix())
		assert.Equal(t, int64(105), reset.Unix())
	})
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{MaxRequests: 1, WindowSeconds: 1}.Validate())

	err := Window{MaxRequests: 0, WindowSeconds: 60}.Validate()
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	assert.Error(t, Window{MaxRequests: 5, WindowSeconds: -1}.Validate())
}

func TestDecide(t *testing.T) {
	w := Window{MaxRequests: 3, WindowSeconds: 60}
	reset := time.Date(2026, 3, 1, 12, 1, 0, 0, time.UTC)

	cases := []struct {
		count     int64
		allowed   bool
		remaining int
	}{
		{count: 1, allowed: true, remaining: 2},
		{count: 3, allowed: true, remaining: 0},
		{count: 4, allowed: false, remaining: 0},
		{count: 100, allowed: false, remaining: 0},
	}
	for _, tc := range cases {
		d := Decide(tc.count, w, reset)
		assert.Equal(t, tc.allowed, d.Allowed, "count=%d", tc.count)
		assert.Equal(t, tc.remaining, d.Remaining, "count=%d", tc.count)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, reset, d.ResetAt)
		assert.False(t, d.Degraded)
	}
}

func TestFailOpen(t *testing.T) {
	d := FailOpen(Window{MaxRequests: 5, WindowSeconds: 900}, time.Time{})
	assert.True(t, d.Allowed)
	assert.Equal(t, 5, d.Remaining)
	assert.True(t, d.Degraded)
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 30, Decision{ResetAt: now.Add(30 * time.Second)}.RetryAfter(now))
	assert.Equal(t, 31, Decision{ResetAt: now.Add(30*time.Second + time.Millisecond)}.RetryAfter(now))
	assert.Equal(t, 1, Decision{ResetAt: now.Add(-time.Second)}.RetryAfter(now))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ratelimit:verify:abc123:203.0.113.9", Key("verify:abc123", "203.0.113.9"))
	assert.Equal(t, "ratelimit:api:anonymous:2001:db8::1", Key("api:anonymous", "2001:db8::1"))

	t.Run("whitespace and control characters are dropped", func(t *testing.T) {
		assert.Equal(t, "ratelimit:api:u1:10.0.0.1", Key("api:u1", " 10.0.0.1\r\n"))
	})

	t.Run("long segments are bounded but stay distinct", func(t *testing.T) {
		a := Key("api:u1", strings.Repeat("a", 10_000))
		b := Key("api:u1", strings.Repeat("a", 9_999)+"b")
		assert.LessOrEqual(t, len(a), len(KeyPrefix)+len("api:u1:")+maxKeySegment)
		assert.True(t, strings.HasPrefix(a, "ratelimit:api:u1:sha256-"))
		assert.NotEqual(t, a, b)
	})
}
