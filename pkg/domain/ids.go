// Package domain holds primitives shared across feature packages: typed
// identifiers and actor roles. Parse functions are the trust boundary; direct
// casting from uuid.UUID bypasses validation and belongs in stores and tests.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "senderguard/pkg/domain-errors"
)

// UserID identifies an authenticated actor.
type UserID uuid.UUID

// EntryID identifies a blocklist entry.
type EntryID uuid.UUID

// AuditRecordID identifies an audit record.
type AuditRecordID uuid.UUID

func (id UserID) String() string        { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool           { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) String() string       { return uuid.UUID(id).String() }
func (id EntryID) IsNil() bool          { return uuid.UUID(id) == uuid.Nil }
func (id AuditRecordID) String() string { return uuid.UUID(id).String() }
func (id AuditRecordID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }
func (id EntryID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id AuditRecordID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *UserID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *EntryID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id *AuditRecordID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

// NewEntryID returns a random entry identifier.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// NewAuditRecordID returns a random audit record identifier.
func NewAuditRecordID() AuditRecordID { return AuditRecordID(uuid.New()) }

// ParseUserID parses an actor id from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

// ParseEntryID parses a blocklist entry id from external input.
func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID(s, "entry id")
	return EntryID(u), err
}

// ParseAuditRecordID parses an audit record id from external input.
func ParseAuditRecordID(s string) (AuditRecordID, error) {
	u, err := parseUUID(s, "audit record id")
	return AuditRecordID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", field)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be nil", field)
	}
	return u, nil
}
