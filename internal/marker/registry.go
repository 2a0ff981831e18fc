package marker

import (
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/maps"
)

// ErrNotRegistered is returned when an operation targets an id the registry
// never created. Mutating an unknown marker is a caller logic bug, unlike
// unregistering one, which is a benign no-op.
var ErrNotRegistered = errors.New("marker not registered")

// Handle pairs a native marker with its attached listener tokens and the
// last-applied descriptor. Handles are owned exclusively by the Registry.
type Handle struct {
	native    maps.Marker
	desc      Descriptor
	listeners []maps.Listener
}

// NewHandle creates a handle for a freshly created native marker.
func NewHandle(native maps.Marker, desc Descriptor, listeners []maps.Listener) *Handle {
	return &Handle{
		native:    native,
		desc:      desc,
		listeners: listeners,
	}
}

// Native returns the wrapped native marker.
func (h *Handle) Native() maps.Marker { return h.native }

// Descriptor returns the last-applied descriptor.
func (h *Handle) Descriptor() Descriptor { return h.desc }

// ListenerCount returns how many listener tokens are attached.
func (h *Handle) ListenerCount() int { return len(h.listeners) }

// teardown detaches every listener token exactly once and removes the native
// marker from the map. Runs every cleanup step even when earlier ones fail
// and reports the first error.
func (h *Handle) teardown() error {
	var firstErr error
	for _, l := range h.listeners {
		if err := l.Detach(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.listeners = nil
	if h.native != nil {
		if err := h.native.Remove(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Registry owns the id → Handle mapping. Its invariant: the set of registered
// ids always equals the set of markers rendered on the map, no id is ever
// duplicated, and every handle's listeners are detached before the handle is
// discarded.
type Registry struct {
	mu      sync.Mutex
	markers map[string]*Handle
	log     *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger falls back to
// slog.Default.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		markers: make(map[string]*Handle),
		log:     logger,
	}
}

// Register inserts a handle under id. If the id is already present the
// existing handle is torn down first so its listeners cannot leak on
// overwrite. Always succeeds; a teardown fault on the old handle is logged
// and the new handle still stored.
func (r *Registry) Register(id string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.markers[id]; ok {
		if err := old.teardown(); err != nil {
			r.log.Warn("teardown of replaced marker failed", "id", id, "error", err)
		}
	}
	r.markers[id] = h
}

// Unregister tears down and removes the handle for id. Returns false without
// error when the id is absent; callers clean up defensively and a missing
// marker is not a fault. Idempotent.
func (r *Registry) Unregister(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unregisterLocked(id)
}

func (r *Registry) unregisterLocked(id string) (bool, error) {
	h, ok := r.markers[id]
	if !ok {
		r.log.Debug("unregister of unknown marker", "id", id)
		return false, nil
	}
	// The entry is deleted even when teardown reports an error; a handle
	// that failed native removal must not be torn down a second time.
	delete(r.markers, id)
	if err := h.teardown(); err != nil {
		return true, &MarkerError{Op: "unregister", ID: id, Err: err}
	}
	return true, nil
}

// Get returns the handle for id.
func (r *Registry) Get(id string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.markers[id]
	return h, ok
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.markers[id]
	return ok
}

// IDs returns the set of registered ids.
func (r *Registry) IDs() map[string]struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make(map[string]struct{}, len(r.markers))
	for id := range r.markers {
		ids[id] = struct{}{}
	}
	return ids
}

// Size returns the number of registered markers.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}

// Clear unregisters every marker through the same cleanup path Unregister
// uses, guaranteeing zero leaked listeners when a view is torn down.
// Returns the first teardown error after all markers have been cleared.
func (r *Registry) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for id := range r.markers {
		if _, err := r.unregisterLocked(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// UpdateMarker applies the descriptor's properties to the native marker in
// place and stores the descriptor on the handle. Fails with a MarkerError
// when the id is not registered.
func (r *Registry) UpdateMarker(id string, desc Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.markers[id]
	if !ok {
		return &MarkerError{Op: "update", ID: id, Err: ErrNotRegistered}
	}
	if err := h.native.SetProperties(desc.Properties()); err != nil {
		return &MarkerError{Op: "update", ID: id, Err: err}
	}
	h.desc = desc
	return nil
}

// MarkerDebug is a read-only snapshot of one registered marker.
type MarkerDebug struct {
	Position  geo.Position `json:"position"`
	Visible   bool         `json:"visible"`
	Title     string       `json:"title,omitempty"`
	Listeners int          `json:"listeners"`
}

// DebugInfo is a read-only snapshot of the registry.
type DebugInfo struct {
	Count   int                    `json:"count"`
	IDs     []string               `json:"ids"`
	Markers map[string]MarkerDebug `json:"markers"`
}

// GetDebugInfo returns a diagnostic snapshot. Pure read, no side effects.
func (r *Registry) GetDebugInfo() DebugInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	info := DebugInfo{
		Count:   len(r.markers),
		IDs:     make([]string, 0, len(r.markers)),
		Markers: make(map[string]MarkerDebug, len(r.markers)),
	}
	for id, h := range r.markers {
		info.IDs = append(info.IDs, id)
		info.Markers[id] = MarkerDebug{
			Position:  h.desc.Position,
			Visible:   h.desc.IsVisible(),
			Title:     h.desc.Title,
			Listeners: len(h.listeners),
		}
	}
	sort.Strings(info.IDs)
	return info
}
