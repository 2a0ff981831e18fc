package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position is a WGS84 latitude/longitude pair.
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether both components are finite numbers.
func (p Position) Valid() bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) &&
		!math.IsNaN(p.Lon) && !math.IsInf(p.Lon, 0)
}

// PositionFromString parses a string in the format "lat,lon" into a Position.
func PositionFromString(coords string) (Position, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return Position{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return Position{}, ErrInvalidCoordinates
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return Position{}, ErrInvalidCoordinates
	}
	p := Position{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Position{}, ErrInvalidCoordinates
	}
	return p, nil
}

// PositionFrom3857 converts web-mercator (EPSG:3857) coordinates, as exported
// by most route-editing tools, into a WGS84 (EPSG:4326) Position.
func PositionFrom3857(x, y float64) (Position, error) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	lon, lat, _ := f(x, y, 0)
	p := Position{Lat: lat, Lon: lon}
	if !p.Valid() {
		return Position{}, ErrInvalidCoordinates
	}
	return p, nil
}

// Bounds is an axis-aligned bounding box over a set of positions.
type Bounds struct {
	SouthWest Position
	NorthEast Position
}

// BoundsFor computes the envelope containing every position in the slice.
// Returns false when the slice is empty.
func BoundsFor(positions []Position) (Bounds, bool) {
	if len(positions) == 0 {
		return Bounds{}, false
	}
	xys := make([]geom.XY, len(positions))
	for i, p := range positions {
		xys[i] = geom.XY{X: p.Lon, Y: p.Lat}
	}
	env := geom.NewEnvelope(xys...)
	mn, mx, ok := env.MinMaxXYs()
	if !ok {
		return Bounds{}, false
	}
	return Bounds{
		SouthWest: Position{Lat: mn.Y, Lon: mn.X},
		NorthEast: Position{Lat: mx.Y, Lon: mx.X},
	}, true
}
