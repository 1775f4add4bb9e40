// Package pgerr classifies PostgreSQL driver failures as sentinel facts so
// services can translate them without importing pgx.
package pgerr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"senderguard/pkg/platform/sentinel"
)

const (
	UniqueViolation = "23505"
	queryCanceled   = "57014"
)

// Classify wraps err with the sentinel it represents. Unique violations
// become sentinel.ErrConflict, deadlines and cancelled statements
// sentinel.ErrTimeout, and any failure to reach or keep a connection
// sentinel.ErrUnavailable. Everything else is returned unchanged.
func Classify(err error) error {
	if err == nil || isSentinel(err) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == UniqueViolation:
			return fmt.Errorf("%w: %s", sentinel.ErrConflict, pgErr.ConstraintName)
		case pgErr.Code == queryCanceled:
			return fmt.Errorf("%w: %w", sentinel.ErrTimeout, err)
		case serverUnavailable(pgErr.Code):
			return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrTimeout, err)
	}
	if connectionLost(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

func isSentinel(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound) ||
		errors.Is(err, sentinel.ErrConflict) ||
		errors.Is(err, sentinel.ErrTimeout) ||
		errors.Is(err, sentinel.ErrUnavailable)
}

// serverUnavailable covers class 08 (connection exception), too_many_connections
// and the 57P0x shutdown/startup codes.
func serverUnavailable(code string) bool {
	return strings.HasPrefix(code, "08") ||
		code == "53300" ||
		code == "57P01" || code == "57P02" || code == "57P03"
}

func connectionLost(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
