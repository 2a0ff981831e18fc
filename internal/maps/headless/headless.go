// Package headless implements the maps.Provider contract without a real map
// widget. Markers live in memory only. It backs the tracking daemon and
// doubles as a call-count spy in tests.
package headless

import (
	"fmt"
	"sync"

	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/maps"
)

// Provider is an in-memory maps.Provider.
type Provider struct {
	mu      sync.Mutex
	markers map[*Marker]struct{}

	// call counters, readable via Stats
	created   int
	destroyed int
	mutated   int
	attached  int
	detached  int

	failCreate bool
	failMutate bool
}

// New creates an empty headless provider.
func New() *Provider {
	return &Provider{
		markers: make(map[*Marker]struct{}),
	}
}

// Stats is a snapshot of provider call counts.
type Stats struct {
	Created   int
	Destroyed int
	Mutated   int
	Attached  int
	Detached  int
	Live      int
}

// Stats returns the current call counts.
func (p *Provider) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Created:   p.created,
		Destroyed: p.destroyed,
		Mutated:   p.mutated,
		Attached:  p.attached,
		Detached:  p.detached,
		Live:      len(p.markers),
	}
}

// FailCreate makes subsequent CreateMarker calls return an error.
func (p *Provider) FailCreate(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCreate = fail
}

// FailMutate makes subsequent SetProperties calls return an error.
func (p *Provider) FailMutate(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failMutate = fail
}

// CreateMarker materializes an in-memory marker.
func (p *Provider) CreateMarker(props maps.Properties) (maps.Marker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failCreate {
		return nil, fmt.Errorf("create marker: provider unavailable")
	}
	m := &Marker{provider: p, props: props}
	p.markers[m] = struct{}{}
	p.created++
	return m, nil
}

// Marker is a headless marker.
type Marker struct {
	mu        sync.Mutex
	provider  *Provider
	props     maps.Properties
	listeners []*listener
	removed   bool
}

// Properties returns the last-applied property set.
func (m *Marker) Properties() maps.Properties {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.props
}

// SetProperties mutates the marker in place.
func (m *Marker) SetProperties(props maps.Properties) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return fmt.Errorf("set properties: marker removed")
	}
	p := m.provider
	p.mu.Lock()
	if p.failMutate {
		p.mu.Unlock()
		return fmt.Errorf("set properties: provider unavailable")
	}
	p.mutated++
	p.mu.Unlock()
	m.props = props
	return nil
}

// Position returns the marker's current position.
func (m *Marker) Position() geo.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.props.Position
}

// AttachListener registers a callback and returns its detach token.
func (m *Marker) AttachListener(event string, fn maps.ListenerFunc) (maps.Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return nil, fmt.Errorf("attach %s: marker removed", event)
	}
	l := &listener{marker: m, event: event, fn: fn}
	m.listeners = append(m.listeners, l)
	m.provider.mu.Lock()
	m.provider.attached++
	m.provider.mu.Unlock()
	return l, nil
}

// Fire delivers an event to every listener registered for it.
// Test helper standing in for native user interaction.
func (m *Marker) Fire(event string) {
	m.mu.Lock()
	pos := m.props.Position
	var fns []maps.ListenerFunc
	for _, l := range m.listeners {
		if l.event == event && !l.detached {
			fns = append(fns, l.fn)
		}
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(maps.Event{Type: event, Position: pos})
	}
}

// Remove destroys the marker.
func (m *Marker) Remove() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removed {
		return fmt.Errorf("remove: marker already removed")
	}
	m.removed = true
	p := m.provider
	p.mu.Lock()
	delete(p.markers, m)
	p.destroyed++
	p.mu.Unlock()
	return nil
}

type listener struct {
	marker   *Marker
	event    string
	fn       maps.ListenerFunc
	detached bool
}

// Detach removes the listener. Detaching twice is an error so tests can
// catch double-detach bugs in the marker engine.
func (l *listener) Detach() error {
	m := l.marker
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.detached {
		return fmt.Errorf("detach %s: listener already detached", l.event)
	}
	l.detached = true
	m.provider.mu.Lock()
	m.provider.detached++
	m.provider.mu.Unlock()
	return nil
}
