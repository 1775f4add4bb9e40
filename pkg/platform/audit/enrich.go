package audit

import (
	"context"

	"senderguard/pkg/platform/middleware/device"
	"senderguard/pkg/requestcontext"
)

// Enrich copies request metadata from ctx onto r. Fields already set are kept.
func Enrich(ctx context.Context, r Record) Record {
	if r.ClientIP == "" {
		r.ClientIP = requestcontext.ClientIP(ctx)
	}
	if r.UserAgent == "" {
		r.UserAgent = requestcontext.UserAgent(ctx)
	}
	if r.Device == "" {
		r.Device = device.Describe(r.UserAgent)
	}
	if r.RequestID == "" {
		r.RequestID = requestcontext.RequestID(ctx)
	}
	if r.EntityType == "" {
		r.EntityType = EntityBlocklistEntry
	}
	return r
}
