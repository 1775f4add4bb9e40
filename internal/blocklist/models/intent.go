package models

import (
	"strings"
	"time"

	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/audit"
)

// UpdateIntent is the closed set of ways an entry can be updated. The audit
// action follows from the case, never from which fields happen to differ.
type UpdateIntent interface {
	Action() audit.Action
	apply(e *Entry)
}

// ActivateIntent sets isActive=true and touches nothing else.
type ActivateIntent struct{}

// DeactivateIntent sets isActive=false and touches nothing else.
type DeactivateIntent struct{}

// FieldUpdateIntent changes any supplied field. Nil fields are left alone.
type FieldUpdateIntent struct {
	IsActive      *bool
	Description   *string
	EffectiveDate *time.Time
}

func (ActivateIntent) Action() audit.Action    { return audit.ActionActivate }
func (DeactivateIntent) Action() audit.Action  { return audit.ActionDeactivate }
func (FieldUpdateIntent) Action() audit.Action { return audit.ActionUpdate }

func (ActivateIntent) apply(e *Entry)   { e.IsActive = true }
func (DeactivateIntent) apply(e *Entry) { e.IsActive = false }

func (f FieldUpdateIntent) apply(e *Entry) {
	if f.IsActive != nil {
		e.IsActive = *f.IsActive
	}
	if f.Description != nil {
		e.Description = strings.TrimSpace(*f.Description)
	}
	if f.EffectiveDate != nil {
		e.EffectiveDate = f.EffectiveDate.UTC()
	}
}

// IntentFromPatch maps a partial payload onto an UpdateIntent. isActive alone
// becomes Activate or Deactivate; any other supplied field makes it a field
// update that also carries isActive.
func IntentFromPatch(isActive *bool, description *string, effectiveDate *time.Time) (UpdateIntent, error) {
	if effectiveDate != nil && effectiveDate.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "effectiveDate must not be empty")
	}
	switch {
	case description == nil && effectiveDate == nil && isActive == nil:
		return nil, dErrors.New(dErrors.CodeValidation, "update must change at least one field")
	case description == nil && effectiveDate == nil:
		if *isActive {
			return ActivateIntent{}, nil
		}
		return DeactivateIntent{}, nil
	default:
		return FieldUpdateIntent{IsActive: isActive, Description: description, EffectiveDate: effectiveDate}, nil
	}
}

// ApplyIntent returns a copy of e with intent applied and UpdatedAt refreshed.
func ApplyIntent(e *Entry, intent UpdateIntent, now time.Time) *Entry {
	next := e.Clone()
	intent.apply(next)
	next.UpdatedAt = now
	return next
}
