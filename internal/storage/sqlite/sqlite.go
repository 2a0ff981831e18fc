// Package sqlite implements route persistence on a SQLite file database.
// It wraps the GORM backend via composition; the only SQLite-specific
// concern is opening the database with the pure-Go driver.
package sqlite

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetops/fleetmap/internal/config"
	"github.com/fleetops/fleetmap/internal/storage/gormstore"
)

// Backend wraps the GORM backend for SQLite.
type Backend struct {
	*gormstore.Backend
}

// New opens (or creates) the SQLite database at the configured path.
func New(cfg config.SqliteConfig) (*Backend, error) {
	path := cfg.Path
	if path == "" {
		path = "file::memory:?cache=shared"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	return &Backend{Backend: gormstore.New(db)}, nil
}
