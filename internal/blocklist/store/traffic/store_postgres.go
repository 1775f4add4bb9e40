package traffic

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"senderguard/internal/blocklist/models"
	"senderguard/pkg/platform/pgerr"
)

// PostgresReader reads the sender_traffic table written by the ingestion side.
type PostgresReader struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

// FindBySenderNames issues one query for the whole name set.
func (r *PostgresReader) FindBySenderNames(ctx context.Context, senderNames []string) ([]models.TrafficRecord, error) {
	if len(senderNames) == 0 {
		return []models.TrafficRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT sender_name, provider_id, provider_name
		FROM sender_traffic
		WHERE sender_name = ANY($1)
		ORDER BY id`, pq.Array(senderNames))
	if err != nil {
		return nil, fmt.Errorf("query sender traffic: %w", pgerr.Classify(err))
	}
	defer rows.Close()

	out := make([]models.TrafficRecord, 0)
	for rows.Next() {
		var rec models.TrafficRecord
		if err := rows.Scan(&rec.SenderName, &rec.ProviderID, &rec.ProviderName); err != nil {
			return nil, fmt.Errorf("scan sender traffic: %w", pgerr.Classify(err))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sender traffic: %w", pgerr.Classify(err))
	}
	return out, nil
}
