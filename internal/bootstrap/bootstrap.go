// Package bootstrap turns configuration into concrete drivers. Nothing else in
// the module picks a backend; callers receive the driver explicitly.
package bootstrap

import (
	"context"
	"fmt"

	"mediavault/internal/config"
	"mediavault/internal/database"
	"mediavault/internal/database/badgerdb"
	dbmemory "mediavault/internal/database/memory"
	"mediavault/internal/database/postgres"
	"mediavault/internal/database/sqlite"
	"mediavault/internal/storage"
	"mediavault/internal/storage/local"
	blobmemory "mediavault/internal/storage/memory"
	"mediavault/internal/storage/objectstore"
)

// Migrator is implemented by the SQL drivers.
type Migrator interface {
	Migrate(ctx context.Context) error
}

func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (database.Driver, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return dbmemory.New(), nil
	case config.DriverBadger:
		d, err := badgerdb.Open(cfg.Badger)
		if err != nil {
			return nil, fmt.Errorf("open badger: %w", err)
		}
		return d, nil
	case config.DriverSQLite:
		d, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return d, nil
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgres.New(pool), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

func OpenStorage(ctx context.Context, cfg config.StorageConfig) (storage.Driver, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return blobmemory.New(), nil
	case config.StorageLocal:
		d, err := local.New(cfg.Local.Root)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return d, nil
	case config.StorageS3:
		d, err := objectstore.New(cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("open object store: %w", err)
		}
		if err := d.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("ensure bucket: %w", err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// Migrate creates the schema when the driver has one. Memory and badger
// drivers need nothing.
func Migrate(ctx context.Context, db database.Driver) (bool, error) {
	m, ok := db.(Migrator)
	if !ok {
		return false, nil
	}
	return true, m.Migrate(ctx)
}
