package audit

import (
	"context"
	"encoding/json"
	"time"

	id "senderguard/pkg/domain"
)

// Action is the kind of mutation an audit record describes.
type Action string

const (
	ActionCreate     Action = "CREATE"
	ActionUpdate     Action = "UPDATE"
	ActionActivate   Action = "ACTIVATE"
	ActionDeactivate Action = "DEACTIVATE"
	ActionDelete     Action = "DELETE"
)

// IsValid reports whether a is one of the closed set of actions.
func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionActivate, ActionDeactivate, ActionDelete:
		return true
	}
	return false
}

// HasOldData reports whether records with this action carry a pre-mutation snapshot.
func (a Action) HasOldData() bool {
	return a != ActionCreate
}

// HasNewData reports whether records with this action carry a post-mutation snapshot.
func (a Action) HasNewData() bool {
	return a != ActionDelete
}

// EntityType discriminates which registry an audit record refers to.
type EntityType string

const EntityBlocklistEntry EntityType = "BlacklistEntry"

// Record is an immutable fact about one mutation.
//
// EntityID is a weak back-reference: it is kept after the entity is deleted
// and is never used for cascades. A nil EntityID means "no entity".
type Record struct {
	ID         id.AuditRecordID
	Action     Action
	EntityID   id.EntryID
	EntityType EntityType
	EntityName string
	ActorID    id.UserID
	OldData    json.RawMessage
	NewData    json.RawMessage
	ClientIP   string
	UserAgent  string
	Device     string
	RequestID  string
	CreatedAt  time.Time
}

// Store is the append-only audit log. There is no update or delete entry point.
// All list methods return records newest first.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByEntity(ctx context.Context, entityID id.EntryID) ([]Record, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Record, error)
	ListByActor(ctx context.Context, actorID id.UserID) ([]Record, error)
}

// AuditEvent names a structured audit log line that is not an audit record.
type AuditEvent string

const (
	EventRateLimitExceeded      AuditEvent = "rate_limit_exceeded"
	EventRateLimitStoreDegraded AuditEvent = "rate_limit_store_degraded"
	EventRateLimitStoreRestored AuditEvent = "rate_limit_store_restored"
	EventMatchRun               AuditEvent = "blocklist_match_run"
	EventAuditMirrorDegraded    AuditEvent = "audit_mirror_degraded"
)
