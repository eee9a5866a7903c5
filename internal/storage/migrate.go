package storage

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/tradecore/backend/internal/config"
)

var migrationFileRe = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)

// latestSourceVersion scans migrationsPath for the highest numbered
// "<version>_name.up.sql" file.
func latestSourceVersion(migrationsPath string) (uint, error) {
	entries, err := os.ReadDir(migrationsPath)
	if err != nil {
		return 0, fmt.Errorf("failed to read migrations dir: %w", err)
	}
	var latest uint
	for _, e := range entries {
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		if uint(v) > latest {
			latest = uint(v)
		}
	}
	return latest, nil
}

// Migrate applies every pending migration under migrationsPath. The
// server's startup path does not call it: it checks PendingMigrations
// and exits with code 2 (§6) when any are outstanding.
func Migrate(cfg config.DatabaseConfig, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, cfg.MigrationURL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// ErrDirty is returned by PendingMigrations when the schema_migrations
// table is marked dirty — an operator must resolve this by hand before
// the process is allowed to start (exit code 2, never auto-healed).
var ErrDirty = errors.New("database schema is in a dirty migration state")

// PendingMigrations reports whether the schema is behind migrationsPath
// without applying anything — §6's "refusing to start: database
// migrations pending" maps to this check failing at boot.
func PendingMigrations(cfg config.DatabaseConfig, migrationsPath string) (bool, error) {
	m, err := migrate.New("file://"+migrationsPath, cfg.MigrationURL())
	if err != nil {
		return false, fmt.Errorf("failed to initialize migrator: %w", err)
	}
	defer m.Close()

	appliedVersion, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return true, fmt.Errorf("%w: version %d", ErrDirty, appliedVersion)
	}

	latestVersion, err := latestSourceVersion(migrationsPath)
	if err != nil {
		return false, err
	}
	return appliedVersion < latestVersion, nil
}
