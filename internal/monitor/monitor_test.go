package monitor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetmap/internal/feed"
	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/logging"
	"github.com/fleetops/fleetmap/internal/maps/headless"
	"github.com/fleetops/fleetmap/internal/marker"
)

func pos(lat, lon float64) geo.Position {
	return geo.Position{Lat: lat, Lon: lon}
}

func testManager(t *testing.T) *marker.Manager {
	t.Helper()
	m, err := marker.NewManager(headless.New(), marker.Handlers{}, nil)
	require.NoError(t, err)
	return m
}

func TestGetStatus(t *testing.T) {
	mgr := testManager(t)
	require.NoError(t, mgr.UpdateMarkers([]marker.Descriptor{
		{ID: "stop-1", Position: pos(37.56, 126.97)},
		{ID: "stop-2", Position: pos(37.57, 126.98)},
	}))

	svc := NewService(Dependencies{
		LogManager: &logging.SlogManager{},
		Markers:    mgr,
		Feed:       feed.New(feed.Config{}, nil, nil),
	})

	st := svc.GetStatus()
	assert.Equal(t, 2, st.MarkerCount)
	assert.Equal(t, []string{"stop-1", "stop-2"}, st.MarkerIDs)
	assert.Equal(t, 0, st.VehicleCount)
	assert.False(t, st.Time.IsZero())
}

func TestStartWritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	mgr := testManager(t)
	require.NoError(t, mgr.UpdateMarkers([]marker.Descriptor{
		{ID: "bus-100/forward", Position: pos(37.50, 127.00)},
	}))

	svc := NewService(Dependencies{
		LogManager: &logging.SlogManager{},
		Markers:    mgr,
		StatusDir:  dir,
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	defer svc.Stop()

	statusPath := filepath.Join(dir, "status.txt")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(statusPath)
		return err == nil && len(data) > 0
	}, 2*time.Second, 10*time.Millisecond)

	data, err := os.ReadFile(statusPath)
	require.NoError(t, err)

	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, 1, st.MarkerCount)
	assert.Equal(t, []string{"bus-100/forward"}, st.MarkerIDs)
}

func TestStartIsIdempotentAndStops(t *testing.T) {
	svc := NewService(Dependencies{
		LogManager: &logging.SlogManager{},
		StatusDir:  t.TempDir(),
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	svc.Stop()
	require.Eventually(t, func() bool { return !svc.IsRunning() }, 2*time.Second, 10*time.Millisecond)

	// Stop again is a no-op.
	svc.Stop()
}
