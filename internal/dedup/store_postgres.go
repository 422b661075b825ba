package dedup

import (
	"context"
	"database/sql"
	"time"
)

// NOTE: This store assumes the event_dedup table from db/migrations, keyed by event_id.

// PostgresStore implements Store on the event_dedup table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Exists(ctx context.Context, eventID string, now time.Time) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM event_dedup WHERE event_id = $1 AND expires_at > $2
)
`
	var ok bool
	if err := s.db.QueryRowContext(ctx, q, eventID, now).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PostgresStore) Insert(ctx context.Context, e Entry) error {
	// Re-marking an expired-but-unswept id refreshes it.
	const q = `
INSERT INTO event_dedup (event_id, source_service, created_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id) DO UPDATE
SET source_service = EXCLUDED.source_service,
    created_at = EXCLUDED.created_at,
    expires_at = EXCLUDED.expires_at
`
	_, err := s.db.ExecContext(ctx, q, e.EventID, e.SourceService, e.CreatedAt, e.ExpiresAt)
	return err
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event_dedup WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
