// Package storage persists routes and their ordered stops so the map can
// load desired marker sets without a round trip to the fleet backend.
package storage

import (
	"github.com/fleetops/fleetmap/internal/model"
)

// ErrRouteNotFound is returned when no route matches the requested bus
// number and direction.
var ErrRouteNotFound = model.ErrRouteNotFound

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Route management. SaveRoute upserts by (busNumber, direction) and
	// assigns an ID to the passed pointer.
	SaveRoute(r *model.Route) error
	GetRoute(busNumber string, direction int) (*model.Route, error)
	ListRoutes() ([]model.Route, error)
	DeleteRoute(busNumber string, direction int) error

	// ReplaceStops swaps the route's stop list wholesale, renumbering Seq
	// in slice order.
	ReplaceStops(routeID uint, stops []model.Stop) error
}
