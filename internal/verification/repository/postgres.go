package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gaini88088/expert-pancake/internal/verification/domain"
)

const challengeColumns = `id, user_id, session_id, code_hash, attempts, expires_at, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a challenge repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the challenge. The challenge must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO verification_challenges (`+challengeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.UserID, c.SessionID, c.CodeHash, c.Attempts, c.ExpiresAt, c.CreatedAt)
	return err
}

// GetBySession returns the newest challenge for the user's session, or nil if none exists.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetBySession(ctx context.Context, userID, sessionID string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM verification_challenges
		 WHERE user_id = $1 AND session_id = $2
		 ORDER BY created_at DESC LIMIT 1`,
		userID, sessionID)
	var c domain.Challenge
	err := row.Scan(&c.ID, &c.UserID, &c.SessionID, &c.CodeHash, &c.Attempts, &c.ExpiresAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// IncrementAttempts adds one to the challenge's attempt count and returns the
// new value, or 0 when the challenge no longer exists.
func (r *PostgresRepository) IncrementAttempts(ctx context.Context, id string) (int32, error) {
	var attempts int32
	err := r.db.QueryRowContext(ctx,
		`UPDATE verification_challenges SET attempts = attempts + 1 WHERE id = $1 RETURNING attempts`,
		id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return attempts, nil
}

// Delete removes the challenge by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_challenges WHERE id = $1`, id)
	return err
}
