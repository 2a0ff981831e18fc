package storage

import (
	"fmt"

	"github.com/fleetops/fleetmap/internal/config"
	"github.com/fleetops/fleetmap/internal/storage/memory"
	"github.com/fleetops/fleetmap/internal/storage/postgres"
	"github.com/fleetops/fleetmap/internal/storage/sqlite"
)

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres)
	case "sqlite":
		return sqlite.New(cfg.Sqlite)
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
