package postgres

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// ErrMigrationsNotFound is returned when the migrations directory is absent.
var ErrMigrationsNotFound = errors.New("migrations directory not found")

// ErrDirtyMigration is returned when a previous run left the schema dirty;
// it needs a manual `migrate force` before the service can start.
var ErrDirtyMigration = errors.New("database schema is dirty")

// Migrate applies every pending up-migration in dir to the database and
// returns the resulting schema version.
func Migrate(databaseURL, dir string, logger *zerolog.Logger) (uint, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrMigrationsNotFound, dir)
	}

	m, err := migrate.New("file://"+dir, databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to open migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	case dirty:
		return version, fmt.Errorf("%w at version %d", ErrDirtyMigration, version)
	}

	logger.Info().Str("path", dir).Uint("version", version).Msg("database schema up to date")
	return version, nil
}
