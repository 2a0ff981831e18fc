package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fleetops/fleetmap/internal/geo"
)

// ErrRouteNotFound is returned by route stores when no route matches the
// requested bus number and direction. Defined here so every backend and its
// consumers share one sentinel.
var ErrRouteNotFound = errors.New("route not found")

// DatabaseModels is a list of all the structs exported here which represent
// tables in the database schema
var DatabaseModels = []interface{}{
	&Route{},
	&Stop{},
}

// Direction of travel along a route.
const (
	DirectionForward = 0
	DirectionReverse = 1
)

// Route is one direction of a bus line: the stops a bus serves in order.
type Route struct {
	gorm.Model
	BusNumber string `json:"busNumber" gorm:"size:31;index:idx_route,unique"`
	Direction int    `json:"direction" gorm:"index:idx_route,unique"`
	Name      string `json:"name" gorm:"size:127"`
	Company   string `json:"company" gorm:"size:127"`
	Stops     []Stop `json:"stops" gorm:"constraint:OnDelete:CASCADE"`
}

// Stop is a bus stop on a route. Seq is the 1-based position along the route
// and is what the map shows as the marker label.
type Stop struct {
	gorm.Model
	RouteID uint    `json:"routeId" gorm:"index"`
	Seq     int     `json:"seq"`
	Name    string  `json:"name" gorm:"size:127"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	// Temporary marks stops added during a batch-add workflow that are not
	// yet committed to the route.
	Temporary bool `json:"temporary"`
	// IconConfig carries per-stop rendering overrides as JSON, applied by
	// the descriptor builder when present.
	IconConfig datatypes.JSON `json:"iconConfig,omitempty"`
}

// Position returns the stop's location.
func (s Stop) Position() geo.Position {
	return geo.Position{Lat: s.Lat, Lon: s.Lon}
}

// BusPosition is one live position report for a vehicle on a route.
// Delivered by the push feed; never persisted.
type BusPosition struct {
	BusNumber string    `json:"busNumber"`
	Direction int       `json:"direction"`
	Plate     string    `json:"plate"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed"`
	Heading   float64   `json:"heading"`
	Timestamp time.Time `json:"timestamp"`
}

// Position returns the report's location.
func (b BusPosition) Position() geo.Position {
	return geo.Position{Lat: b.Lat, Lon: b.Lon}
}

// Key identifies the vehicle across position reports: plate when available,
// otherwise bus number and direction.
func (b BusPosition) Key() string {
	if b.Plate != "" {
		return b.Plate
	}
	return b.BusNumber + "/" + directionString(b.Direction)
}

func directionString(d int) string {
	if d == DirectionReverse {
		return "reverse"
	}
	return "forward"
}
