// Package service implements the audited mutation service for blocklist
// entries. Every successful Create, Update and Delete appends exactly one
// audit record:
//
//   - Create writes the entry, then the audit record (the record needs the id).
//   - Update reads the entry, writes the change, then the audit record.
//   - Delete reads the entry, writes the audit record, then deletes the entry,
//     so an interrupted delete leaves the entry in place rather than erasing
//     it without a trace.
//
// In AuditModeTransactional both writes commit together.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	blmetrics "senderguard/internal/blocklist/metrics"
	"senderguard/internal/blocklist/models"
	"senderguard/internal/blocklist/ports"
	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/audit"
	"senderguard/pkg/platform/sentinel"
	"senderguard/pkg/requestcontext"
)

const defaultStoreTimeout = 5 * time.Second

type Service struct {
	entries      ports.EntryStore
	auditLog     audit.Store
	tx           StoreTx
	mode         AuditMode
	timeout      time.Duration
	allowedRoles []id.Role
	logger       *slog.Logger
	metrics      *blmetrics.Metrics
	tracer       trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *blmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithStoreTimeout bounds each store call made by the service.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAllowedRoles restricts mutations to actors holding one of roles.
// With no roles configured any authenticated actor may mutate.
func WithAllowedRoles(roles ...id.Role) Option {
	return func(s *Service) {
		s.allowedRoles = roles
	}
}

// WithTransactor switches the service to AuditModeTransactional.
func WithTransactor(tx StoreTx) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
			s.mode = AuditModeTransactional
		}
	}
}

func New(entries ports.EntryStore, auditLog audit.Store, opts ...Option) (*Service, error) {
	if entries == nil {
		return nil, fmt.Errorf("entry store is required")
	}
	if auditLog == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	s := &Service{
		entries:  entries,
		auditLog: auditLog,
		tx:       sequentialTx{},
		mode:     AuditModeSequential,
		timeout:  defaultStoreTimeout,
		tracer:   otel.Tracer("senderguard/blocklist"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode reports how entity and audit writes are committed.
func (s *Service) Mode() AuditMode {
	return s.mode
}

// Create adds a new entry. Errors: Unauthorized, Forbidden, Validation,
// Conflict when senderName is taken (the message names it), Timeout or
// Unavailable when the store fails.
func (s *Service) Create(ctx context.Context, params models.NewEntryParams) (entry *models.Entry, err error) {
	const op = "create"
	ctx, span := s.tracer.Start(ctx, "blocklist.Create")
	defer func() { endSpan(span, err) }()

	actor, err := s.authorize(ctx, op)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	created, err := models.NewEntry(id.NewEntryID(), params, actor, now)
	if err != nil {
		return nil, s.fail(ctx, op, StageValidate, false, err)
	}
	span.SetAttributes(attribute.String("blocklist.sender_name", created.SenderName))

	err = s.runInTx(ctx, op, func(txCtx context.Context) error {
		existing, err := s.findBySenderName(txCtx, created.SenderName)
		switch {
		case err == nil && existing != nil:
			return s.fail(ctx, op, StageUniqueness, false, duplicateErr(created.SenderName, nil))
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return s.fail(ctx, op, StageUniqueness, false, translateStoreErr(err, "failed to check sender name"))
		}

		if err := s.callStore(txCtx, func(c context.Context) error { return s.entries.Create(c, created) }); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return s.fail(ctx, op, StageEntityWrite, false, duplicateErr(created.SenderName, err))
			}
			return s.fail(ctx, op, StageEntityWrite, false, translateStoreErr(err, "failed to create entry"))
		}

		record, err := s.newRecord(txCtx, audit.ActionCreate, nil, created)
		if err == nil {
			err = s.callStore(txCtx, func(c context.Context) error { return s.auditLog.Append(c, record) })
		}
		if err != nil {
			return s.fail(ctx, op, StageAuditWrite, s.mode == AuditModeSequential, translateStoreErr(err, "failed to write audit record"))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.succeed(ctx, audit.ActionCreate, created)
	return created, nil
}

// Update applies intent to an existing entry. Errors: Unauthorized,
// Forbidden, NotFound, Timeout or Unavailable.
func (s *Service) Update(ctx context.Context, entryID id.EntryID, intent models.UpdateIntent) (entry *models.Entry, err error) {
	const op = "update"
	ctx, span := s.tracer.Start(ctx, "blocklist.Update", trace.WithAttributes(attribute.String("blocklist.entry_id", entryID.String())))
	defer func() { endSpan(span, err) }()

	if _, err := s.authorize(ctx, op); err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, s.fail(ctx, op, StageValidate, false, dErrors.New(dErrors.CodeValidation, "update intent is required"))
	}
	action := intent.Action()
	span.SetAttributes(attribute.String("blocklist.action", string(action)))

	var updated *models.Entry
	err = s.runInTx(ctx, op, func(txCtx context.Context) error {
		current, err := s.findByID(txCtx, entryID)
		if err != nil {
			return s.fail(ctx, op, StageLookup, false, translateStoreErr(err, "failed to load entry"))
		}

		next := models.ApplyIntent(current, intent, requestcontext.Now(ctx))
		if err := s.callStore(txCtx, func(c context.Context) error { return s.entries.Update(c, next) }); err != nil {
			return s.fail(ctx, op, StageEntityWrite, false, translateStoreErr(err, "failed to update entry"))
		}

		record, err := s.newRecord(txCtx, action, current, next)
		if err == nil {
			err = s.callStore(txCtx, func(c context.Context) error { return s.auditLog.Append(c, record) })
		}
		if err != nil {
			return s.fail(ctx, op, StageAuditWrite, s.mode == AuditModeSequential, translateStoreErr(err, "failed to write audit record"))
		}
		updated = next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.succeed(ctx, action, updated)
	return updated, nil
}

// Delete removes an entry after recording its final state. Errors:
// Unauthorized, Forbidden, NotFound, Timeout or Unavailable. A failure at
// StageEntityDelete in sequential mode leaves the entry in place next to a
// DELETE audit record.
func (s *Service) Delete(ctx context.Context, entryID id.EntryID) (err error) {
	const op = "delete"
	ctx, span := s.tracer.Start(ctx, "blocklist.Delete", trace.WithAttributes(attribute.String("blocklist.entry_id", entryID.String())))
	defer func() { endSpan(span, err) }()

	if _, err := s.authorize(ctx, op); err != nil {
		return err
	}

	var deleted *models.Entry
	err = s.runInTx(ctx, op, func(txCtx context.Context) error {
		current, err := s.findByID(txCtx, entryID)
		if err != nil {
			return s.fail(ctx, op, StageLookup, false, translateStoreErr(err, "failed to load entry"))
		}

		record, err := s.newRecord(txCtx, audit.ActionDelete, current, nil)
		if err == nil {
			err = s.callStore(txCtx, func(c context.Context) error { return s.auditLog.Append(c, record) })
		}
		if err != nil {
			return s.fail(ctx, op, StageAuditWrite, false, translateStoreErr(err, "failed to write audit record"))
		}

		if err := s.callStore(txCtx, func(c context.Context) error { return s.entries.Delete(c, entryID) }); err != nil {
			return s.fail(ctx, op, StageEntityDelete, false, translateStoreErr(err, "failed to delete entry"))
		}
		deleted = current
		return nil
	})
	if err != nil {
		return err
	}

	s.succeed(ctx, audit.ActionDelete, deleted)
	return nil
}

// Get returns one entry. Reads are not audited.
func (s *Service) Get(ctx context.Context, entryID id.EntryID) (*models.Entry, error) {
	e, err := s.findByID(ctx, entryID)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load entry")
	}
	return e, nil
}

// List returns one page of entries. Reads are not audited.
func (s *Service) List(ctx context.Context, filter models.Filter) (models.Page, error) {
	filter = filter.Normalize()
	var (
		entries []*models.Entry
		total   int
	)
	err := s.callStore(ctx, func(c context.Context) error {
		var err error
		entries, total, err = s.entries.List(c, filter)
		return err
	})
	if err != nil {
		return models.Page{}, translateStoreErr(err, "failed to list entries")
	}
	return models.NewPage(entries, total, filter), nil
}

// AuditByEntity returns the audit trail of one entry, including after deletion.
func (s *Service) AuditByEntity(ctx context.Context, entryID id.EntryID) ([]audit.Record, error) {
	var records []audit.Record
	err := s.callStore(ctx, func(c context.Context) error {
		var err error
		records, err = s.auditLog.ListByEntity(c, entryID)
		return err
	})
	return records, translateStoreErr(err, "failed to list audit records")
}

// AuditByDateRange returns records with from <= createdAt < to; zero bounds are open.
func (s *Service) AuditByDateRange(ctx context.Context, from, to time.Time) ([]audit.Record, error) {
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, dErrors.New(dErrors.CodeValidation, "from must be before to")
	}
	var records []audit.Record
	err := s.callStore(ctx, func(c context.Context) error {
		var err error
		records, err = s.auditLog.ListByDateRange(c, from, to)
		return err
	})
	return records, translateStoreErr(err, "failed to list audit records")
}

func (s *Service) AuditByActor(ctx context.Context, actorID id.UserID) ([]audit.Record, error) {
	var records []audit.Record
	err := s.callStore(ctx, func(c context.Context) error {
		var err error
		records, err = s.auditLog.ListByActor(c, actorID)
		return err
	})
	return records, translateStoreErr(err, "failed to list audit records")
}

func (s *Service) authorize(ctx context.Context, op string) (id.UserID, error) {
	actor := requestcontext.ActorID(ctx)
	if actor.IsNil() {
		return id.UserID{}, s.fail(ctx, op, StageAuthorize, false, dErrors.New(dErrors.CodeUnauthorized, "authenticated actor is required"))
	}
	if len(s.allowedRoles) > 0 && !slices.Contains(s.allowedRoles, requestcontext.Role(ctx)) {
		return id.UserID{}, s.fail(ctx, op, StageAuthorize, false, dErrors.New(dErrors.CodeForbidden, "role may not modify the blocklist"))
	}
	return actor, nil
}

// runInTx passes StageErrors raised inside fn through unchanged and reports
// any other failure (begin, commit) as a commit-stage error.
func (s *Service) runInTx(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	err := s.tx.RunInTx(ctx, fn)
	if err == nil {
		return nil
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return err
	}
	return s.fail(ctx, op, StageCommit, false, translateStoreErr(err, "failed to commit transaction"))
}

func (s *Service) findByID(ctx context.Context, entryID id.EntryID) (*models.Entry, error) {
	var e *models.Entry
	err := s.callStore(ctx, func(c context.Context) error {
		var err error
		e, err = s.entries.FindByID(c, entryID)
		return err
	})
	return e, err
}

func (s *Service) findBySenderName(ctx context.Context, name string) (*models.Entry, error) {
	var e *models.Entry
	err := s.callStore(ctx, func(c context.Context) error {
		var err error
		e, err = s.entries.FindBySenderName(c, name)
		return err
	})
	return e, err
}

// callStore runs fn under the store timeout. A deadline hit inside fn is
// reported as sentinel.ErrTimeout so it translates to a retryable error.
func (s *Service) callStore(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, sentinel.ErrTimeout) {
		return fmt.Errorf("%w: %w", sentinel.ErrTimeout, err)
	}
	return err
}

func (s *Service) newRecord(ctx context.Context, action audit.Action, before, after *models.Entry) (audit.Record, error) {
	record := audit.Record{
		ID:         id.NewAuditRecordID(),
		Action:     action,
		EntityType: audit.EntityBlocklistEntry,
		ActorID:    requestcontext.ActorID(ctx),
		CreatedAt:  requestcontext.Now(ctx),
	}
	if before != nil {
		snap, err := before.Snapshot()
		if err != nil {
			return audit.Record{}, fmt.Errorf("snapshot entry: %w", err)
		}
		record.OldData = snap
		record.EntityID = before.ID
		record.EntityName = before.SenderName
	}
	if after != nil {
		snap, err := after.Snapshot()
		if err != nil {
			return audit.Record{}, fmt.Errorf("snapshot entry: %w", err)
		}
		record.NewData = snap
		record.EntityID = after.ID
		record.EntityName = after.SenderName
	}
	return audit.Enrich(ctx, record), nil
}

func (s *Service) fail(ctx context.Context, op string, stage Stage, changed bool, err error) error {
	if s.metrics != nil {
		s.metrics.IncrementMutationFailure(string(stage))
	}
	if s.logger != nil {
		level := slog.LevelWarn
		if changed {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "blocklist mutation failed",
			"op", op,
			"stage", stage,
			"entity_changed", changed,
			"code", dErrors.CodeOf(err),
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return &StageError{Op: op, Stage: stage, EntityChanged: changed, Err: err}
}

func (s *Service) succeed(ctx context.Context, action audit.Action, e *models.Entry) {
	if s.metrics != nil {
		s.metrics.IncrementMutation(string(action))
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "blocklist entry mutated",
			"action", action,
			"entry_id", e.ID.String(),
			"sender_name", e.SenderName,
			"actor_id", requestcontext.ActorID(ctx).String(),
			"audit_mode", s.mode,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

func duplicateErr(senderName string, cause error) error {
	msg := fmt.Sprintf("sender %q is already on the blocklist", senderName)
	if cause != nil {
		return dErrors.Wrap(cause, dErrors.CodeConflict, msg)
	}
	return dErrors.New(dErrors.CodeConflict, msg)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
