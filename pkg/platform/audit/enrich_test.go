package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"senderguard/pkg/requestcontext"
)

func TestEnrich(t *testing.T) {
	const ua = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	t.Run("fills metadata from context", func(t *testing.T) {
		ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.7", ua)
		ctx = requestcontext.WithRequestID(ctx, "req-1")

		got := Enrich(ctx, Record{Action: ActionCreate})

		assert.Equal(t, "203.0.113.7", got.ClientIP)
		assert.Equal(t, ua, got.UserAgent)
		assert.Contains(t, got.Device, "Chrome")
		assert.Equal(t, "req-1", got.RequestID)
		assert.Equal(t, EntityBlocklistEntry, got.EntityType)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		ctx := requestcontext.WithRequestID(context.Background(), "req-ctx")
		got := Enrich(ctx, Record{RequestID: "req-explicit", EntityType: "Other"})
		assert.Equal(t, "req-explicit", got.RequestID)
		assert.Equal(t, EntityType("Other"), got.EntityType)
	})

	t.Run("no request context leaves fields empty", func(t *testing.T) {
		got := Enrich(context.Background(), Record{})
		assert.Empty(t, got.ClientIP)
		assert.Empty(t, got.Device)
	})
}

func TestActionSnapshots(t *testing.T) {
	assert.False(t, ActionCreate.HasOldData())
	assert.True(t, ActionCreate.HasNewData())
	assert.True(t, ActionDelete.HasOldData())
	assert.False(t, ActionDelete.HasNewData())
	for _, a := range []Action{ActionUpdate, ActionActivate, ActionDeactivate} {
		assert.True(t, a.HasOldData(), a)
		assert.True(t, a.HasNewData(), a)
	}
	assert.False(t, Action("PATCH").IsValid())
}
