// Package handler exposes the blocklist service and matching engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"senderguard/internal/blocklist/models"
	"senderguard/internal/blocklist/service"
	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/httputil"
	"senderguard/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Service is the blocklist surface the handler needs; *service.Service satisfies it.
type Service interface {
	Create(ctx context.Context, params models.NewEntryParams) (*models.Entry, error)
	Update(ctx context.Context, entryID id.EntryID, intent models.UpdateIntent) (*models.Entry, error)
	Delete(ctx context.Context, entryID id.EntryID) error
	Get(ctx context.Context, entryID id.EntryID) (*models.Entry, error)
	List(ctx context.Context, filter models.Filter) (models.Page, error)
	AuditByEntity(ctx context.Context, entryID id.EntryID) ([]audit.Record, error)
	AuditByDateRange(ctx context.Context, from, to time.Time) ([]audit.Record, error)
	AuditByActor(ctx context.Context, actorID id.UserID) ([]audit.Record, error)
}

// Matcher triggers an on-demand matching run.
type Matcher interface {
	RunMatch(ctx context.Context) (models.RunResult, error)
}

type Handler struct {
	svc     Service
	matcher Matcher
	logger  *slog.Logger
	matchMW []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithMatchMiddleware wraps only the on-demand match route, e.g. with a
// stricter rate-limit policy.
func WithMatchMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.matchMW = append(h.matchMW, mw...)
	}
}

func New(svc Service, matcher Matcher, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{svc: svc, matcher: matcher, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the blocklist and audit routes on r. Authentication and
// rate limiting are applied by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Route("/blocklist", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		if h.matcher != nil {
			r.With(h.matchMW...).Post("/match", h.handleRunMatch)
		}
		r.Get("/{id}", h.handleGet)
		r.Patch("/{id}", h.handlePatch)
		r.Delete("/{id}", h.handleDelete)
	})
	r.Get("/audit", h.handleListAudit)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	page, err := h.svc.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "list blocklist entries", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	params, err := req.toParams()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.svc.Create(r.Context(), params)
	if err != nil {
		h.writeError(w, r, "create blocklist entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.svc.Get(r.Context(), entryID)
	if err != nil {
		h.writeError(w, r, "get blocklist entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var req PatchEntryRequest
	if err := decodeBody(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	intent, err := req.toIntent()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entry, err := h.svc.Update(r.Context(), entryID, intent)
	if err != nil {
		h.writeError(w, r, "update blocklist entry", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	entryID, err := id.ParseEntryID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), entryID); err != nil {
		h.writeError(w, r, "delete blocklist entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAudit serves one of three queries: ?entityId=, ?actorId=, or
// ?from=&to= (either bound may be omitted).
func (h *Handler) handleListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		records []audit.Record
		err     error
	)
	switch {
	case q.Get("entityId") != "":
		entityID, perr := id.ParseEntryID(q.Get("entityId"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		records, err = h.svc.AuditByEntity(r.Context(), entityID)
	case q.Get("actorId") != "":
		actorID, perr := id.ParseUserID(q.Get("actorId"))
		if perr != nil {
			httputil.WriteError(w, perr)
			return
		}
		records, err = h.svc.AuditByActor(r.Context(), actorID)
	default:
		var from, to time.Time
		if v := q.Get("from"); v != "" {
			if from, err = parseDate("from", v); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		if v := q.Get("to"); v != "" {
			if to, err = parseDate("to", v); err != nil {
				httputil.WriteError(w, err)
				return
			}
		}
		records, err = h.svc.AuditByDateRange(r.Context(), from, to)
	}
	if err != nil {
		h.writeError(w, r, "list audit records", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"records": toAuditResponses(records)})
}

// handleRunMatch returns 200 when every update applied and 207 with the
// failure list when some did not.
func (h *Handler) handleRunMatch(w http.ResponseWriter, r *http.Request) {
	result, err := h.matcher.RunMatch(r.Context())
	switch {
	case err == nil:
		httputil.WriteJSON(w, http.StatusOK, MatchRunResponse{Reports: result.Reports})
	case dErrors.HasCode(err, dErrors.CodePartialFailure):
		h.logger.WarnContext(r.Context(), "match run partially failed",
			"failed", len(result.Failures),
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteJSON(w, http.StatusMultiStatus, MatchRunResponse{
			Reports:  result.Reports,
			Failures: result.Failures,
			Error:    err.Error(),
		})
	default:
		h.writeError(w, r, "run blocklist match", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	attrs := []any{
		"op", op,
		"code", dErrors.CodeOf(err),
		"error", err,
		"request_id", requestcontext.RequestID(r.Context()),
	}
	var stageErr *service.StageError
	if errors.As(err, &stageErr) {
		attrs = append(attrs, "stage", stageErr.Stage, "entity_changed", stageErr.EntityChanged)
	}
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed", attrs...)
	} else {
		h.logger.DebugContext(r.Context(), "request rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
