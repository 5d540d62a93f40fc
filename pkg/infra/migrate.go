package infra

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// DefaultMigrationSource holds journal_events and balances.
const DefaultMigrationSource = "file://migration/sql"

var mutex = &sync.Mutex{} // nolint

// Migrate brings the schema at connStr up to the newest version in source.
// A dirty version left by an interrupted run is forced back one step and
// retried. Calls are serialized within the process.
func Migrate(source string, connStr string) error {
	mutex.Lock()
	defer mutex.Unlock()

	zap.S().Infof("migrating %s", source)

	mg, err := migrate.New(source, connStr)
	if err != nil {
		return fmt.Errorf("create migration: %w", err)
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}

	if dirty {
		if err := mg.Force(int(version) - 1); err != nil {
			return fmt.Errorf("force version %d: %w", version-1, err)
		}
	}

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	version, _, _ = mg.Version()
	zap.S().Infof("migration done at version %d", version)
	return nil
}
