// Package gormstore implements route persistence on top of a GORM database.
// The SQLite and Postgres backends wrap it via composition; the only
// driver-specific concerns live in their own packages.
package gormstore

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetops/fleetmap/internal/model"
)

// ErrRouteNotFound is the shared route-store sentinel.
var ErrRouteNotFound = model.ErrRouteNotFound

// Backend persists routes through a GORM DB handle it does not own.
type Backend struct {
	db *gorm.DB
}

// New creates a backend over an open GORM DB.
func New(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("migrating route schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRoute upserts by (busNumber, direction) and assigns the route ID.
func (b *Backend) SaveRoute(r *model.Route) error {
	err := b.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bus_number"}, {Name: "direction"}},
			UpdateAll: true,
		}).
		Create(r).Error
	if err != nil {
		return fmt.Errorf("saving route %s: %w", r.BusNumber, err)
	}
	return nil
}

// GetRoute loads a route with its stops ordered by sequence.
func (b *Backend) GetRoute(busNumber string, direction int) (*model.Route, error) {
	var route model.Route
	err := b.db.
		Preload("Stops", func(db *gorm.DB) *gorm.DB {
			return db.Order("seq ASC")
		}).
		Where("bus_number = ? AND direction = ?", busNumber, direction).
		First(&route).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRouteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading route %s: %w", busNumber, err)
	}
	return &route, nil
}

// ListRoutes returns all routes without their stops.
func (b *Backend) ListRoutes() ([]model.Route, error) {
	var routes []model.Route
	if err := b.db.Order("bus_number ASC, direction ASC").Find(&routes).Error; err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}
	return routes, nil
}

// DeleteRoute removes a route and its stops.
func (b *Backend) DeleteRoute(busNumber string, direction int) error {
	res := b.db.
		Where("bus_number = ? AND direction = ?", busNumber, direction).
		Delete(&model.Route{})
	if res.Error != nil {
		return fmt.Errorf("deleting route %s: %w", busNumber, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrRouteNotFound
	}
	return nil
}

// ReplaceStops swaps the route's stop list wholesale, renumbering Seq in
// slice order.
func (b *Backend) ReplaceStops(routeID uint, stops []model.Stop) error {
	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("route_id = ?", routeID).Delete(&model.Stop{}).Error; err != nil {
			return fmt.Errorf("clearing stops for route %d: %w", routeID, err)
		}
		for i := range stops {
			stops[i].ID = 0
			stops[i].RouteID = routeID
			stops[i].Seq = i + 1
		}
		if len(stops) == 0 {
			return nil
		}
		if err := tx.Create(&stops).Error; err != nil {
			return fmt.Errorf("inserting stops for route %d: %w", routeID, err)
		}
		return nil
	})
}
