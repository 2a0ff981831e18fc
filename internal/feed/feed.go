package feed

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fleetops/fleetmap/internal/model"
)

// Config holds position feed configuration.
type Config struct {
	URL        string
	Secret     string
	StaleAfter time.Duration
}

// timedPosition pairs a position with its local receive time so stale
// vehicles can be expired even when the server stops sending.
type timedPosition struct {
	pos        model.BusPosition
	receivedAt time.Time
}

// Feed subscribes to per-route position topics over WebSocket and keeps
// the latest position per vehicle. Positions older than StaleAfter are
// dropped from snapshots.
type Feed struct {
	conn   *connection
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	positions map[string]timedPosition
	lastMsgAt time.Time

	onUpdate func(model.BusPosition)

	// now is swapped in tests to control stale expiry.
	now func() time.Time
}

// New creates a feed client. onUpdate, if non-nil, is called for every
// accepted position; it runs on the read loop goroutine and must not block.
func New(cfg Config, logger *slog.Logger, onUpdate func(model.BusPosition)) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Feed{
		cfg:       cfg,
		logger:    logger,
		positions: make(map[string]timedPosition),
		onUpdate:  onUpdate,
		now:       time.Now,
	}
	f.conn = newConnection(logger, f.handleMessage)
	return f
}

// Start connects to the feed server.
func (f *Feed) Start() error {
	return f.conn.dial(f.cfg.URL, f.cfg.Secret)
}

// Close disconnects from the feed server.
func (f *Feed) Close() error {
	return f.conn.close()
}

// Subscribe starts streaming positions for one route direction.
func (f *Feed) Subscribe(busNumber string, direction int) error {
	return f.conn.subscribe(Topic(busNumber, direction))
}

// Unsubscribe stops streaming positions for one route direction.
// Vehicles already tracked age out via StaleAfter.
func (f *Feed) Unsubscribe(busNumber string, direction int) error {
	return f.conn.unsubscribe(Topic(busNumber, direction))
}

func (f *Feed) handleMessage(env Envelope) {
	if env.Type != TypeBusPosition {
		f.logger.Debug("Ignoring feed message", "type", env.Type)
		return
	}

	pos, err := decodePosition(env.Payload)
	if err != nil {
		f.logger.Warn("Dropping malformed position", "error", err)
		return
	}

	now := f.now()
	f.mu.Lock()
	f.positions[pos.Key()] = timedPosition{pos: pos, receivedAt: now}
	f.lastMsgAt = now
	f.mu.Unlock()

	if f.onUpdate != nil {
		f.onUpdate(pos)
	}
}

// Snapshot returns the latest known position per vehicle, pruning
// entries older than StaleAfter. Results are sorted by vehicle key.
func (f *Feed) Snapshot() []model.BusPosition {
	now := f.now()

	f.mu.Lock()
	out := make([]model.BusPosition, 0, len(f.positions))
	for key, tp := range f.positions {
		if f.cfg.StaleAfter > 0 && now.Sub(tp.receivedAt) > f.cfg.StaleAfter {
			delete(f.positions, key)
			continue
		}
		out = append(out, tp.pos)
	}
	f.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// VehicleCount returns how many vehicles currently have a tracked position.
func (f *Feed) VehicleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.positions)
}

// LastMessageAt reports when the last position arrived, zero if none yet.
func (f *Feed) LastMessageAt() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastMsgAt
}
