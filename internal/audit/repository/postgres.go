package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gaini88088/expert-pancake/internal/audit/domain"
)

const auditColumns = `id, user_id, session_id, action, outcome, ip, detail, created_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit log repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	const q = `SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`
	a, err := scanAuditLog(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// ListByUser returns the user's audit logs, newest first, paginated by limit
// and offset. Returns (nil, error) only on database errors.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	const q = `
		SELECT ` + auditColumns + `
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	const q = `
		INSERT INTO audit_logs (` + auditColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	sid := sql.NullString{String: a.SessionID, Valid: a.SessionID != ""}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, a.UserID, sid, a.Action, a.Outcome, a.IP, a.Detail, a.CreatedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(row rowScanner) (*domain.AuditLog, error) {
	var a domain.AuditLog
	var sid sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &sid, &a.Action, &a.Outcome, &a.IP, &a.Detail, &a.CreatedAt); err != nil {
		return nil, err
	}
	if sid.Valid {
		a.SessionID = sid.String
	}
	return &a, nil
}
