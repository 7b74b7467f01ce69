package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gaini88088/expert-pancake/internal/session/domain"
)

const sessionColumns = `id, user_id, device_fingerprint, device_class, trust_state, ip_address, location_lat, location_lon, created_at, last_active_at, revoked_at`

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the session for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListActiveByUser returns the user's non-revoked sessions, most recently active first.
func (r *PostgresRepository) ListActiveByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE user_id = $1 AND revoked_at IS NULL ORDER BY last_active_at DESC, created_at DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// HasAnyForUser reports whether any session row exists for the user, revoked or not.
func (r *PostgresRepository) HasAnyForUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListTrustedLocations returns distinct known locations of the user's trusted sessions.
func (r *PostgresRepository) ListTrustedLocations(ctx context.Context, userID string) ([]domain.Location, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT location_lat, location_lon FROM sessions
		 WHERE user_id = $1 AND trust_state = $2 AND location_lat IS NOT NULL AND location_lon IS NOT NULL`,
		userID, string(domain.TrustStateTrusted))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Location
	for rows.Next() {
		var loc domain.Location
		if err := rows.Scan(&loc.Lat, &loc.Lon); err != nil {
			return nil, err
		}
		out = append(out, loc)
	}
	return out, rows.Err()
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	var lat, lon sql.NullFloat64
	if s.Location != nil {
		lat = sql.NullFloat64{Float64: s.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: s.Location.Lon, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.DeviceFingerprint, string(s.DeviceClass), string(s.TrustState),
		sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		lat, lon, s.CreatedAt, s.LastActiveAt, timeToNullTime(s.RevokedAt))
	return err
}

// Revoke marks the session with the given id as revoked. Already revoked rows are left untouched.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, id, at)
	return err
}

// UpdateLastActive advances the session's last-active timestamp; it never moves it backwards.
func (r *PostgresRepository) UpdateLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET last_active_at = GREATEST(last_active_at, $2) WHERE id = $1 AND revoked_at IS NULL`, id, at)
	return err
}

// UpdateTrustState sets the session's trust state.
func (r *PostgresRepository) UpdateTrustState(ctx context.Context, id string, state domain.TrustState) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET trust_state = $2 WHERE id = $1`, id, string(state))
	return err
}

// ListStale returns active sessions of the given class idle since before cutoff.
func (r *PostgresRepository) ListStale(ctx context.Context, class domain.DeviceClass, cutoff time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE device_class = $1 AND revoked_at IS NULL AND last_active_at < $2`,
		string(class), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// ListStaleUnclassified returns active sessions of unrecognized classes idle since before cutoff.
func (r *PostgresRepository) ListStaleUnclassified(ctx context.Context, cutoff time.Time) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE device_class NOT IN ($1, $2, $3) AND revoked_at IS NULL AND last_active_at < $4`,
		string(domain.DeviceClassMobileApp), string(domain.DeviceClassWebBrowser), string(domain.DeviceClassDesktopApp), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSessions(rows)
}

// PurgeRevokedBefore deletes sessions revoked before cutoff and returns the removed row count.
func (r *PostgresRepository) PurgeRevokedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE revoked_at IS NOT NULL AND revoked_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s        domain.Session
		class    string
		state    string
		ip       sql.NullString
		lat, lon sql.NullFloat64
		revoked  sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.DeviceFingerprint, &class, &state, &ip, &lat, &lon, &s.CreatedAt, &s.LastActiveAt, &revoked)
	if err != nil {
		return nil, err
	}
	s.DeviceClass = domain.DeviceClass(class)
	s.TrustState = domain.TrustState(state)
	if ip.Valid {
		s.IPAddress = ip.String
	}
	if lat.Valid && lon.Valid {
		s.Location = &domain.Location{Lat: lat.Float64, Lon: lon.Float64}
	}
	s.RevokedAt = nullTimeToPtr(revoked)
	return &s, nil
}

func collectSessions(rows *sql.Rows) ([]*domain.Session, error) {
	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func timeToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeToPtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	return &n.Time
}
