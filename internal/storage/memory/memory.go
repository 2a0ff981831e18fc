package memory

import (
	"sort"
	"sync"

	"github.com/fleetops/fleetmap/internal/model"
)

// ErrRouteNotFound is the shared route-store sentinel.
var ErrRouteNotFound = model.ErrRouteNotFound

type routeKey struct {
	busNumber string
	direction int
}

// Backend stores routes in memory. Used for tests and for running the
// tracking daemon without a database.
type Backend struct {
	mu        sync.RWMutex
	routes    map[routeKey]*model.Route
	idCounter uint
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		routes: make(map[routeKey]*model.Route),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveRoute upserts by (busNumber, direction) and assigns an ID.
func (b *Backend) SaveRoute(r *model.Route) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := routeKey{busNumber: r.BusNumber, direction: r.Direction}
	if existing, ok := b.routes[key]; ok {
		r.ID = existing.ID
	} else {
		b.idCounter++
		r.ID = b.idCounter
	}
	for i := range r.Stops {
		r.Stops[i].RouteID = r.ID
	}
	stored := *r
	stored.Stops = append([]model.Stop(nil), r.Stops...)
	b.routes[key] = &stored
	return nil
}

// GetRoute loads a route with its stops ordered by sequence.
func (b *Backend) GetRoute(busNumber string, direction int) (*model.Route, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	r, ok := b.routes[routeKey{busNumber: busNumber, direction: direction}]
	if !ok {
		return nil, ErrRouteNotFound
	}
	out := *r
	out.Stops = append([]model.Stop(nil), r.Stops...)
	sort.SliceStable(out.Stops, func(i, j int) bool { return out.Stops[i].Seq < out.Stops[j].Seq })
	return &out, nil
}

// ListRoutes returns all routes without their stops.
func (b *Backend) ListRoutes() ([]model.Route, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	routes := make([]model.Route, 0, len(b.routes))
	for _, r := range b.routes {
		out := *r
		out.Stops = nil
		routes = append(routes, out)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].BusNumber != routes[j].BusNumber {
			return routes[i].BusNumber < routes[j].BusNumber
		}
		return routes[i].Direction < routes[j].Direction
	})
	return routes, nil
}

// DeleteRoute removes a route and its stops.
func (b *Backend) DeleteRoute(busNumber string, direction int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := routeKey{busNumber: busNumber, direction: direction}
	if _, ok := b.routes[key]; !ok {
		return ErrRouteNotFound
	}
	delete(b.routes, key)
	return nil
}

// ReplaceStops swaps the route's stop list wholesale, renumbering Seq in
// slice order.
func (b *Backend) ReplaceStops(routeID uint, stops []model.Stop) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range b.routes {
		if r.ID != routeID {
			continue
		}
		copied := append([]model.Stop(nil), stops...)
		for i := range copied {
			copied[i].RouteID = routeID
			copied[i].Seq = i + 1
		}
		r.Stops = copied
		return nil
	}
	return ErrRouteNotFound
}
