package core

import (
	"context"
	"fmt"
	"os"

	"herdcore/internal/infra/persistence/memory"
	"herdcore/internal/infra/persistence/postgres"
	"herdcore/internal/infra/persistence/sqlite"
	"herdcore/pkg/domain"
)

// StorageDriver identifies a record store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Environment variables read by StorageOptionsFromEnv.
const (
	EnvStorageDriver = "HERDCORE_STORAGE_DRIVER"
	EnvSQLitePath    = "HERDCORE_SQLITE_PATH"
	EnvPostgresDSN   = "HERDCORE_POSTGRES_DSN"
)

// StorageOptions selects and configures a record store.
type StorageOptions struct {
	Driver      StorageDriver
	SQLitePath  string
	PostgresDSN string
}

// StorageOptionsFromEnv reads the storage environment variables. The driver
// defaults to sqlite when unset.
//
//	HERDCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	HERDCORE_SQLITE_PATH: path to sqlite file (default ./herdcore.db)
//	HERDCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func StorageOptionsFromEnv() StorageOptions {
	opts := StorageOptions{
		Driver:      StorageDriver(os.Getenv(EnvStorageDriver)),
		SQLitePath:  os.Getenv(EnvSQLitePath),
		PostgresDSN: os.Getenv(EnvPostgresDSN),
	}
	if opts.Driver == "" {
		opts.Driver = StorageSQLite
	}
	return opts
}

// OpenRecordStore constructs the configured record store.
func OpenRecordStore(ctx context.Context, opts StorageOptions) (domain.RecordStore, error) {
	switch opts.Driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite, "":
		store, err := sqlite.NewStore(ctx, opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case StoragePostgres:
		store, err := postgres.NewStore(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", opts.Driver)
	}
}
