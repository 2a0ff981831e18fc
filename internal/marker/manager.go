package marker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/maps"
)

// Handlers is the event-handler set shared across every marker a Manager
// creates. Binding is fixed at construction; individual markers cannot
// override it. Nil entries mean no listener is attached for that event.
type Handlers struct {
	OnClick     func(id string, m maps.Marker)
	OnDragEnd   func(id string, pos geo.Position)
	OnMouseOver func(id string, m maps.Marker)
	OnMouseOut  func(id string, m maps.Marker)
}

// Manager binds the Registry and the diff engine to a live map instance and
// exposes the reconciliation entry point. One Manager owns one Registry owns
// one map binding.
type Manager struct {
	// Overlapping UpdateMarkers calls serialize on this lock; the engine
	// itself assumes one reconciliation pass in flight at a time.
	mu sync.Mutex

	provider maps.Provider
	reg      *Registry
	handlers Handlers
	log      *slog.Logger

	opsApplied    metric.Int64Counter
	opsSkipped    metric.Int64Counter
	reconcileTime metric.Float64Histogram

	lastReconcile atomic64Duration
	stats         opStats
}

// OpStats are cumulative operation counts since the Manager was created.
type OpStats struct {
	Added   uint64
	Updated uint64
	Removed uint64
	Skipped uint64
}

type opStats struct {
	added   atomic.Uint64
	updated atomic.Uint64
	removed atomic.Uint64
	skipped atomic.Uint64
}

// NewManager creates a Manager bound to the given map provider. The provider
// may be nil while the map widget is still initializing; UpdateMarkers is a
// silent no-op until SetProvider is called with a ready map.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewManager(provider maps.Provider, handlers Handlers, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		provider: provider,
		reg:      NewRegistry(logger),
		handlers: handlers,
		log:      logger,
	}

	mt := meter()

	var err error
	m.opsApplied, err = mt.Int64Counter(
		"marker.operations.applied",
		metric.WithDescription("Reconciliation operations applied, by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}
	m.opsSkipped, err = mt.Int64Counter(
		"marker.updates.skipped",
		metric.WithDescription("Updates skipped because the descriptor was unchanged"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating skipped counter: %w", err)
	}
	m.reconcileTime, err = mt.Float64Histogram(
		"marker.reconcile.duration",
		metric.WithDescription("Duration of one reconciliation pass in milliseconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating reconcile histogram: %w", err)
	}

	return m, nil
}

// SetProvider installs the map binding once the widget is ready.
func (m *Manager) SetProvider(p maps.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.provider = p
}

// Registry exposes the manager's registry for diagnostics.
func (m *Manager) Registry() *Registry { return m.reg }

// UpdateMarkers runs one reconciliation pass: diff the registry's current ids
// against the desired list, then apply the minimal add/update/remove set.
// With no map provider installed the call is a silent no-op; the caller
// retries once the map is ready.
//
// A failure while applying an operation aborts the pass: operations already
// applied stay applied (partial application on error), the fault is logged
// with full context and returned to the caller.
func (m *Manager) UpdateMarkers(desired []Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.provider == nil {
		m.log.Debug("updateMarkers before map ready, skipping", "desired", len(desired))
		return nil
	}

	start := time.Now()
	desiredMap := DesiredMap(desired)
	ops := OptimizeOperations(CalculateOperations(m.reg.IDs(), desiredMap))

	for _, op := range ops {
		if err := m.apply(op); err != nil {
			m.log.Error("reconciliation pass failed",
				"op", op.Kind.String(),
				"id", op.ID,
				"applied", m.reg.Size(),
				"desired", len(desiredMap),
				"error", err,
			)
			return err
		}
	}

	elapsed := time.Since(start)
	m.lastReconcile.store(elapsed)
	m.reconcileTime.Record(context.Background(), float64(elapsed.Milliseconds()))
	m.log.Debug("reconciliation pass complete",
		"operations", len(ops), "markers", m.reg.Size(), "duration", elapsed)
	return nil
}

func (m *Manager) apply(op Operation) error {
	kindAttr := attribute.String("kind", op.Kind.String())

	switch op.Kind {
	case OpAdd:
		if err := m.addMarker(op.ID, op.Desc); err != nil {
			return err
		}
		m.stats.added.Add(1)

	case OpUpdate:
		h, ok := m.reg.Get(op.ID)
		if !ok {
			return &MarkerError{Op: "update", ID: op.ID, Err: ErrNotRegistered}
		}
		if h.Descriptor().Equal(op.Desc) {
			m.opsSkipped.Add(context.Background(), 1)
			m.stats.skipped.Add(1)
			return nil
		}
		if err := m.reg.UpdateMarker(op.ID, op.Desc); err != nil {
			return err
		}
		m.stats.updated.Add(1)

	case OpRemove:
		if _, err := m.reg.Unregister(op.ID); err != nil {
			return err
		}
		m.stats.removed.Add(1)
	}

	m.opsApplied.Add(context.Background(), 1, metric.WithAttributes(kindAttr))
	return nil
}

// addMarker materializes a native marker from the descriptor, attaches the
// configured event handlers, and registers the handle. Listeners attached
// before a later step fails are detached again so nothing leaks.
func (m *Manager) addMarker(id string, desc Descriptor) error {
	native, err := m.provider.CreateMarker(desc.Properties())
	if err != nil {
		return &MarkerError{Op: "add", ID: id, Err: err}
	}

	listeners, err := m.attachHandlers(id, native)
	if err != nil {
		for _, l := range listeners {
			_ = l.Detach()
		}
		_ = native.Remove()
		return &MarkerError{Op: "add", ID: id, Err: err}
	}

	m.reg.Register(id, NewHandle(native, desc, listeners))
	return nil
}

func (m *Manager) attachHandlers(id string, native maps.Marker) ([]maps.Listener, error) {
	var listeners []maps.Listener

	attach := func(event string, fn maps.ListenerFunc) error {
		l, err := native.AttachListener(event, fn)
		if err != nil {
			return fmt.Errorf("attach %s: %w", event, err)
		}
		listeners = append(listeners, l)
		return nil
	}

	if h := m.handlers.OnClick; h != nil {
		if err := attach(maps.EventClick, func(maps.Event) { h(id, native) }); err != nil {
			return listeners, err
		}
	}
	if h := m.handlers.OnDragEnd; h != nil {
		if err := attach(maps.EventDragEnd, func(e maps.Event) { h(id, e.Position) }); err != nil {
			return listeners, err
		}
	}
	if h := m.handlers.OnMouseOver; h != nil {
		if err := attach(maps.EventMouseOver, func(maps.Event) { h(id, native) }); err != nil {
			return listeners, err
		}
	}
	if h := m.handlers.OnMouseOut; h != nil {
		if err := attach(maps.EventMouseOut, func(maps.Event) { h(id, native) }); err != nil {
			return listeners, err
		}
	}

	return listeners, nil
}

// ClearMarkers tears down every marker. The owning view must call this
// exactly once on disposal; skipping it leaks native listeners and markers.
func (m *Manager) ClearMarkers() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reg.Clear()
}

// GetMarker returns the native marker for id.
func (m *Manager) GetMarker(id string) (maps.Marker, bool) {
	h, ok := m.reg.Get(id)
	if !ok {
		return nil, false
	}
	return h.Native(), true
}

// GetDebugInfo returns the registry's diagnostic snapshot.
func (m *Manager) GetDebugInfo() DebugInfo {
	return m.reg.GetDebugInfo()
}

// Stats returns cumulative operation counts for this Manager.
func (m *Manager) Stats() OpStats {
	return OpStats{
		Added:   m.stats.added.Load(),
		Updated: m.stats.updated.Load(),
		Removed: m.stats.removed.Load(),
		Skipped: m.stats.skipped.Load(),
	}
}

// LastReconcileDuration returns the duration of the last completed pass.
func (m *Manager) LastReconcileDuration() time.Duration {
	return m.lastReconcile.load()
}

// atomic64Duration lets monitors read the last pass duration without taking
// the reconciliation lock.
type atomic64Duration struct{ v atomic.Int64 }

func (a *atomic64Duration) store(d time.Duration) { a.v.Store(int64(d)) }
func (a *atomic64Duration) load() time.Duration   { return time.Duration(a.v.Load()) }
