// Package postgres implements route persistence on Postgres, wrapping the
// GORM backend via composition.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetops/fleetmap/internal/config"
	"github.com/fleetops/fleetmap/internal/storage/gormstore"
)

// Backend wraps the GORM backend for Postgres.
type Backend struct {
	*gormstore.Backend
}

// New connects to the configured Postgres database.
func New(cfg config.PostgresConfig) (*Backend, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database,
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres %s/%s: %w", cfg.Host, cfg.Database, err)
	}
	return &Backend{Backend: gormstore.New(db)}, nil
}
