package repository

import (
	"context"
	"database/sql"

	"github.com/gaini88088/expert-pancake/internal/notify/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a delivery log backed by the given db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save persists the record and sets rec.ID.
func (r *PostgresRepository) Save(ctx context.Context, rec *domain.DeliveryRecord) error {
	const q = `
		INSERT INTO notification_log (event_id, user_id, event_type, channel, outcome, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		rec.EventID, rec.UserID, rec.EventType, rec.Channel, rec.Outcome, rec.Detail, rec.CreatedAt,
	).Scan(&rec.ID)
}

// ListRecentByUser returns the user's latest delivery records, newest first.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) ListRecentByUser(ctx context.Context, userID string, limit int32) ([]*domain.DeliveryRecord, error) {
	const q = `
		SELECT id, event_id, user_id, event_type, channel, outcome, detail, created_at
		FROM notification_log
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.DeliveryRecord
	for rows.Next() {
		var rec domain.DeliveryRecord
		if err := rows.Scan(&rec.ID, &rec.EventID, &rec.UserID, &rec.EventType,
			&rec.Channel, &rec.Outcome, &rec.Detail, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
