package monitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fleetops/fleetmap/internal/feed"
	"github.com/fleetops/fleetmap/internal/influx"
	"github.com/fleetops/fleetmap/internal/logging"
	"github.com/fleetops/fleetmap/internal/marker"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	Markers    *marker.Manager
	Feed       *feed.Feed
	Influx     *influx.Manager // nil when influx is disabled
	StatusDir  string
	Interval   time.Duration
}

// Status is the snapshot written to status.txt once per interval.
type Status struct {
	Time         time.Time `json:"time"`
	MarkerCount  int       `json:"markerCount"`
	VehicleCount int       `json:"vehicleCount"`
	ReconcileMs  float64   `json:"reconcileMs"`
	FeedAgeS     float64   `json:"feedAgeS"`
	MarkerIDs    []string  `json:"markerIds"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}

	// Last sampled cumulative op counts, for per-interval deltas.
	lastOps marker.OpStats
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the marker manager and feed.
func (s *Service) GetStatus() Status {
	st := Status{Time: time.Now()}

	if s.deps.Markers != nil {
		info := s.deps.Markers.GetDebugInfo()
		st.MarkerCount = info.Count
		st.MarkerIDs = info.IDs
		st.ReconcileMs = float64(s.deps.Markers.LastReconcileDuration().Microseconds()) / 1000.0
	}
	if s.deps.Feed != nil {
		st.VehicleCount = s.deps.Feed.VehicleCount()
		if last := s.deps.Feed.LastMessageAt(); !last.IsZero() {
			st.FeedAgeS = time.Since(last).Seconds()
		}
	}
	return st
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(filepath.Join(s.deps.StatusDir, "status.txt"))
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(s.deps.Interval)

				st := s.GetStatus()

				if statusFile != nil {
					data, err := json.MarshalIndent(st, "", "  ")
					if err != nil {
						logger.Error("Error marshaling status", "error", err)
						continue
					}
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					statusFile.Write(append(data, '\n'))
				}

				if s.deps.Influx != nil {
					point := influx.FleetStatusPoint(
						st.MarkerCount,
						st.VehicleCount,
						time.Duration(st.ReconcileMs*float64(time.Millisecond)),
						time.Duration(st.FeedAgeS*float64(time.Second)),
					)
					if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketFleetStatus, point); err != nil {
						logger.Error("Error writing status point to InfluxDB", "error", err)
					}

					if s.deps.Markers != nil {
						ops := s.deps.Markers.Stats()
						opsPoint := influx.MarkerOpsPoint(
							int(ops.Added-s.lastOps.Added),
							int(ops.Updated-s.lastOps.Updated),
							int(ops.Removed-s.lastOps.Removed),
							int(ops.Skipped-s.lastOps.Skipped),
						)
						s.lastOps = ops
						if err := s.deps.Influx.WritePoint(context.Background(), influx.BucketMarkerOps, opsPoint); err != nil {
							logger.Error("Error writing ops point to InfluxDB", "error", err)
						}
					}
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
