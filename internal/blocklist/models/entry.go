package models

import (
	"encoding/json"
	"strings"
	"time"

	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
)

const maxSenderNameLength = 255

// Entry is one blocked sender identity.
type Entry struct {
	ID            id.EntryID `json:"id"`
	SenderName    string     `json:"senderName"`
	EffectiveDate time.Time  `json:"effectiveDate"`
	Description   string     `json:"description,omitempty"`
	IsActive      bool       `json:"isActive"`
	MatchCount    int64      `json:"matchCount"`
	LastMatchDate *time.Time `json:"lastMatchDate,omitempty"`
	CreatedBy     id.UserID  `json:"createdBy"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NewEntryParams carries the caller-supplied fields of a new entry.
type NewEntryParams struct {
	SenderName    string
	EffectiveDate time.Time
	Description   string
	// IsActive defaults to true when nil.
	IsActive *bool
}

// NewEntry validates params and builds an entry owned by createdBy.
func NewEntry(entryID id.EntryID, params NewEntryParams, createdBy id.UserID, now time.Time) (*Entry, error) {
	name := strings.TrimSpace(params.SenderName)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "senderName is required")
	}
	if len(name) > maxSenderNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "senderName is too long")
	}
	if params.EffectiveDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "effectiveDate is required")
	}
	active := true
	if params.IsActive != nil {
		active = *params.IsActive
	}
	return &Entry{
		ID:            entryID,
		SenderName:    name,
		EffectiveDate: params.EffectiveDate.UTC(),
		Description:   strings.TrimSpace(params.Description),
		IsActive:      active,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsMatchable reports whether the entry takes part in matching at now.
func (e *Entry) IsMatchable(now time.Time) bool {
	return e.IsActive && !e.EffectiveDate.After(now)
}

// Clone returns a deep copy so snapshots are not aliased by later mutation.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.LastMatchDate != nil {
		t := *e.LastMatchDate
		c.LastMatchDate = &t
	}
	return &c
}

// Snapshot is the full JSON image of the entry stored on audit records.
func (e *Entry) Snapshot() (json.RawMessage, error) {
	return json.Marshal(e)
}
