package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gaini88088/expert-pancake/internal/trust/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a trust record repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the record for the pair, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) Get(ctx context.Context, userID, fingerprint string) (*domain.TrustRecord, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, device_fingerprint, first_seen, verified_login_count, last_verified_at
		 FROM trust_records WHERE user_id = $1 AND device_fingerprint = $2`,
		userID, fingerprint)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// ListByUser returns all records for the user, oldest first seen first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.TrustRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, device_fingerprint, first_seen, verified_login_count, last_verified_at
		 FROM trust_records WHERE user_id = $1 ORDER BY first_seen ASC, device_fingerprint ASC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.TrustRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountByUser returns how many records exist for the user.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trust_records WHERE user_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Ensure creates the record if it does not exist yet. An existing record is left untouched.
func (r *PostgresRepository) Ensure(ctx context.Context, rec *domain.TrustRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trust_records (user_id, device_fingerprint, first_seen, verified_login_count, last_verified_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, device_fingerprint) DO NOTHING`,
		rec.UserID, rec.DeviceFingerprint, rec.FirstSeen, rec.VerifiedLoginCount, timeToNullTime(rec.LastVerifiedAt))
	return err
}

// RecordVerifiedLogin increments the pair's verified login count, creating the record when absent.
func (r *PostgresRepository) RecordVerifiedLogin(ctx context.Context, userID, fingerprint string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trust_records (user_id, device_fingerprint, first_seen, verified_login_count, last_verified_at)
		 VALUES ($1, $2, $3, 1, $3)
		 ON CONFLICT (user_id, device_fingerprint) DO UPDATE
		 SET verified_login_count = trust_records.verified_login_count + 1, last_verified_at = EXCLUDED.last_verified_at`,
		userID, fingerprint, at)
	return err
}

// Delete removes the record and reports whether one existed.
func (r *PostgresRepository) Delete(ctx context.Context, userID, fingerprint string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM trust_records WHERE user_id = $1 AND device_fingerprint = $2`, userID, fingerprint)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.TrustRecord, error) {
	var (
		rec      domain.TrustRecord
		verified sql.NullTime
	)
	err := row.Scan(&rec.UserID, &rec.DeviceFingerprint, &rec.FirstSeen, &rec.VerifiedLoginCount, &verified)
	if err != nil {
		return nil, err
	}
	if verified.Valid {
		rec.LastVerifiedAt = &verified.Time
	}
	return &rec, nil
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
