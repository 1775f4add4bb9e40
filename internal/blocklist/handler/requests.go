package handler

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"senderguard/internal/blocklist/models"
	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/audit"
)

// CreateEntryRequest is the body of POST /blocklist.
type CreateEntryRequest struct {
	SenderName    string `json:"senderName"`
	EffectiveDate string `json:"effectiveDate"`
	Description   string `json:"description"`
	IsActive      *bool  `json:"isActive"`
}

func (r CreateEntryRequest) toParams() (models.NewEntryParams, error) {
	effective, err := parseDate("effectiveDate", r.EffectiveDate)
	if err != nil {
		return models.NewEntryParams{}, err
	}
	return models.NewEntryParams{
		SenderName:    r.SenderName,
		EffectiveDate: effective,
		Description:   r.Description,
		IsActive:      r.IsActive,
	}, nil
}

// PatchEntryRequest is the body of PATCH /blocklist/{id}. Absent fields are
// left unchanged.
type PatchEntryRequest struct {
	IsActive      *bool   `json:"isActive"`
	Description   *string `json:"description"`
	EffectiveDate *string `json:"effectiveDate"`
}

func (r PatchEntryRequest) toIntent() (models.UpdateIntent, error) {
	var effective *time.Time
	if r.EffectiveDate != nil {
		t, err := parseDate("effectiveDate", *r.EffectiveDate)
		if err != nil {
			return nil, err
		}
		effective = &t
	}
	return models.IntentFromPatch(r.IsActive, r.Description, effective)
}

// AuditRecordResponse is the wire form of an audit record.
type AuditRecordResponse struct {
	ID         id.AuditRecordID `json:"id"`
	Action     audit.Action     `json:"action"`
	EntityID   *id.EntryID      `json:"entityId"`
	EntityType audit.EntityType `json:"entityType"`
	EntityName string           `json:"entityName,omitempty"`
	ActorID    id.UserID        `json:"actorId"`
	OldData    json.RawMessage  `json:"oldData,omitempty"`
	NewData    json.RawMessage  `json:"newData,omitempty"`
	ClientIP   string           `json:"clientIp,omitempty"`
	UserAgent  string           `json:"userAgent,omitempty"`
	Device     string           `json:"device,omitempty"`
	RequestID  string           `json:"requestId,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func toAuditResponses(records []audit.Record) []AuditRecordResponse {
	out := make([]AuditRecordResponse, 0, len(records))
	for _, r := range records {
		resp := AuditRecordResponse{
			ID:         r.ID,
			Action:     r.Action,
			EntityType: r.EntityType,
			EntityName: r.EntityName,
			ActorID:    r.ActorID,
			OldData:    r.OldData,
			NewData:    r.NewData,
			ClientIP:   r.ClientIP,
			UserAgent:  r.UserAgent,
			Device:     r.Device,
			RequestID:  r.RequestID,
			CreatedAt:  r.CreatedAt,
		}
		if !r.EntityID.IsNil() {
			entityID := r.EntityID
			resp.EntityID = &entityID
		}
		out = append(out, resp)
	}
	return out
}

// MatchRunResponse is the body of POST /blocklist/match.
type MatchRunResponse struct {
	Reports  []models.MatchReport  `json:"reports"`
	Failures []models.EntryFailure `json:"failures,omitempty"`
	Error    string                `json:"error,omitempty"`
}

func parseFilter(q url.Values) (models.Filter, error) {
	f := models.Filter{SenderName: strings.TrimSpace(q.Get("senderName"))}
	if v := q.Get("isActive"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return models.Filter{}, dErrors.New(dErrors.CodeBadRequest, "isActive must be true or false")
		}
		f.IsActive = &b
	}
	if v := q.Get("effectiveFrom"); v != "" {
		t, err := parseDate("effectiveFrom", v)
		if err != nil {
			return models.Filter{}, err
		}
		f.EffectiveFrom = &t
	}
	var err error
	if f.Page, err = parseInt(q, "page"); err != nil {
		return models.Filter{}, err
	}
	if f.PageSize, err = parseInt(q, "limit"); err != nil {
		return models.Filter{}, err
	}
	return f, nil
}

func parseInt(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, dErrors.Newf(dErrors.CodeBadRequest, "%s must be a non-negative integer", name)
	}
	return n, nil
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC midnight).
func parseDate(field, v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s is required", field)
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeValidation, "%s must be an RFC 3339 timestamp or YYYY-MM-DD date", field)
}
