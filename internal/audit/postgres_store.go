package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresStore persists audit records in PostgreSQL. The schema lives in
// migrations/ and is applied with cmd/migrate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, r *Record) error {
	detail := []byte(r.Detail)
	if len(detail) == 0 {
		detail = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, kind, event, partner_id, user_id, file_id, score, detail, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9)
	`,
		r.ID,
		string(r.Kind),
		r.Event,
		r.PartnerID,
		r.UserID,
		r.FileID,
		r.Score,
		detail,
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// List returns matching records newest first.
func (s *PostgresStore) List(ctx context.Context, f Filter) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, event, COALESCE(partner_id, ''), COALESCE(user_id, ''), COALESCE(file_id, ''),
		       score, detail, created_at
		FROM audit_events
		WHERE ($1 = '' OR kind = $1)
		  AND ($2 = '' OR partner_id = $2)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, string(f.Kind), f.PartnerID, f.limit())
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*Record
	for rows.Next() {
		var r Record
		var kind string
		var detail []byte
		var createdAt time.Time
		if err := rows.Scan(&r.ID, &kind, &r.Event, &r.PartnerID, &r.UserID, &r.FileID,
			&r.Score, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit record: %w", err)
		}
		r.Kind = Kind(kind)
		r.Detail = detail
		r.CreatedAt = createdAt
		result = append(result, &r)
	}
	return result, rows.Err()
}
