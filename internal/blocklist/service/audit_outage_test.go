package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"senderguard/internal/blocklist/models"
	"senderguard/internal/blocklist/store/entry"
	id "senderguard/pkg/domain"
	dErrors "senderguard/pkg/domain-errors"
	auditpostgres "senderguard/pkg/platform/audit/store/postgres"
	"senderguard/pkg/requestcontext"
)

func TestCreateWithUnreachableAuditDatabaseIsRetryable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	db, err := sql.Open("pgx", fmt.Sprintf("postgres://u:p@%s/x?sslmode=disable&connect_timeout=2", addr))
	require.NoError(t, err)
	defer db.Close()

	svc, err := New(entry.NewInMemory(), auditpostgres.New(db),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAllowedRoles(id.RoleAdmin),
	)
	require.NoError(t, err)

	ctx := requestcontext.WithActor(context.Background(), id.UserID(uuid.New()), id.RoleAdmin)
	_, err = svc.Create(ctx, models.NewEntryParams{SenderName: "OUTAGE", EffectiveDate: time.Now()})

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAuditWrite, se.Stage)
	assert.True(t, se.EntityChanged)
	assert.Equal(t, dErrors.CodeUnavailable, dErrors.CodeOf(err))
	assert.True(t, dErrors.IsRetryable(err))
}
