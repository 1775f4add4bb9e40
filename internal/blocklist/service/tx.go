package service

import "context"

// AuditMode selects how the entity write and its audit record are committed.
type AuditMode string

const (
	// AuditModeSequential runs the two writes as separate statements in the
	// mandated order. A crash between them leaves a gap StageError reports.
	AuditModeSequential AuditMode = "sequential"
	// AuditModeTransactional runs both writes inside one store transaction.
	AuditModeTransactional AuditMode = "transactional"
)

// StoreTx runs fn inside a transactional boundary. Stores called with the
// context passed to fn join that transaction.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type sequentialTx struct{}

func (sequentialTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
