// Package migrate applies the embedded schema migrations with golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/gaini88088/expert-pancake/internal/db"
)

// Directions accepted by Run.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// ErrNoChange reports that the schema is already at the requested version.
var ErrNoChange = migrate.ErrNoChange

// Run applies the embedded migrations to the database at dsn, DirectionUp for
// upgrades and DirectionDown for a full rollback. A schema already at the
// target version returns ErrNoChange; callers treat that as success.
func Run(dsn, direction string) error {
	if dsn == "" {
		return errors.New("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return fmt.Errorf("direction must be %q or %q, got %q", DirectionUp, DirectionDown, direction)
	}

	src, err := iofs.New(db.MigrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("open migrate target: %w", err)
	}
	defer m.Close()

	step := m.Up
	if direction == DirectionDown {
		step = m.Down
	}
	if err := step(); err != nil {
		if errors.Is(err, ErrNoChange) {
			return ErrNoChange
		}
		return fmt.Errorf("apply migrations %s: %w", direction, err)
	}
	return nil
}
