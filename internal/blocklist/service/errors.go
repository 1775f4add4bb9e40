package service

import (
	"errors"
	"fmt"

	dErrors "senderguard/pkg/domain-errors"
	"senderguard/pkg/platform/sentinel"
)

// Stage names the step of a mutation that failed.
type Stage string

const (
	StageAuthorize    Stage = "authorize"
	StageValidate     Stage = "validate"
	StageLookup       Stage = "lookup"
	StageUniqueness   Stage = "uniqueness"
	StageEntityWrite  Stage = "entity_write"
	StageAuditWrite   Stage = "audit_write"
	StageEntityDelete Stage = "entity_delete"
	StageCommit       Stage = "commit"
)

// StageError reports where a mutation stopped. EntityChanged is true only
// when the entity write is durable and the audit record is missing, which is
// the one state an operator has to reconcile by hand.
type StageError struct {
	Op            string
	Stage         Stage
	EntityChanged bool
	Err           error
}

func (e *StageError) Error() string {
	changed := "nothing changed"
	if e.EntityChanged {
		changed = "entity changed, audit not written"
	}
	return fmt.Sprintf("%s failed at %s (%s): %v", e.Op, e.Stage, changed, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// translateStoreErr turns store sentinels into coded errors. Timeouts and
// unavailability come out retryable.
func translateStoreErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	var coded *dErrors.Error
	if errors.As(err, &coded) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "blacklist entry not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg+": conflicting write")
	case errors.Is(err, sentinel.ErrTimeout):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg+": store timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg+": store unavailable")
	}
	if ctxErr := dErrors.FromContext(err); ctxErr != nil {
		return ctxErr
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
