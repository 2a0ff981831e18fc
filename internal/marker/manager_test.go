package marker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/maps"
	"github.com/fleetops/fleetmap/internal/maps/headless"
)

func newTestManager(t *testing.T, p *headless.Provider, handlers Handlers) *Manager {
	t.Helper()
	m, err := NewManager(p, handlers, nil)
	require.NoError(t, err)
	return m
}

func registryIDs(m *Manager) map[string]struct{} {
	return m.Registry().IDs()
}

func TestManager_NilProviderIsSilentNoop(t *testing.T) {
	m, err := NewManager(nil, Handlers{}, nil)
	require.NoError(t, err)

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)}))
	assert.Equal(t, 0, m.Registry().Size())

	// once the map is ready the same call takes effect
	m.SetProvider(headless.New())
	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)}))
	assert.Equal(t, 1, m.Registry().Size())
}

func TestManager_RegistryReflectsDesired(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	require.NoError(t, m.UpdateMarkers([]Descriptor{
		desc("s1", 1, 1),
		desc("s2", 2, 2),
		desc("s3", 3, 3),
	}))
	assert.Equal(t, ids("s1", "s2", "s3"), registryIDs(m))

	require.NoError(t, m.UpdateMarkers([]Descriptor{
		desc("s2", 2, 2),
		desc("s4", 4, 4),
	}))
	assert.Equal(t, ids("s2", "s4"), registryIDs(m))

	require.NoError(t, m.UpdateMarkers(nil))
	assert.Equal(t, 0, m.Registry().Size())
}

func TestManager_NoopUpdateSkipsNativeMutation(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	d := desc("s1", 1, 1)
	d.Title = "Stop 1"

	require.NoError(t, m.UpdateMarkers([]Descriptor{d}))
	require.NoError(t, m.UpdateMarkers([]Descriptor{d}))
	require.NoError(t, m.UpdateMarkers([]Descriptor{d}))

	stats := p.Stats()
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.Mutated, "identical descriptor must not hit the native setter")

	d.Title = "Stop 1 (renamed)"
	require.NoError(t, m.UpdateMarkers([]Descriptor{d}))
	assert.Equal(t, 1, p.Stats().Mutated)
}

func TestManager_DuplicateIDsLastEntryWins(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	first := desc("s1", 1, 1)
	second := desc("s1", 9, 9)
	require.NoError(t, m.UpdateMarkers([]Descriptor{first, second}))

	h, ok := m.Registry().Get("s1")
	require.True(t, ok)
	assert.Equal(t, geo.Position{Lat: 9, Lon: 9}, h.Descriptor().Position)
	assert.Equal(t, 1, p.Stats().Created)
}

func TestManager_HandlersAttachedAndFired(t *testing.T) {
	p := headless.New()

	var mu sync.Mutex
	var clicked, dragged []string
	m := newTestManager(t, p, Handlers{
		OnClick: func(id string, _ maps.Marker) {
			mu.Lock()
			clicked = append(clicked, id)
			mu.Unlock()
		},
		OnDragEnd: func(id string, pos geo.Position) {
			mu.Lock()
			dragged = append(dragged, id)
			mu.Unlock()
		},
	})

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)}))
	assert.Equal(t, 2, p.Stats().Attached, "click and dragend listeners attached")

	native, ok := m.GetMarker("s1")
	require.True(t, ok)
	native.(*headless.Marker).Fire(maps.EventClick)
	native.(*headless.Marker).Fire(maps.EventDragEnd)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"s1"}, clicked)
	assert.Equal(t, []string{"s1"}, dragged)
}

func TestManager_NoHandlersMeansNoListeners(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)}))
	assert.Equal(t, 0, p.Stats().Attached)
}

func TestManager_RemoveDetachesListeners(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{
		OnClick:     func(string, maps.Marker) {},
		OnMouseOver: func(string, maps.Marker) {},
		OnMouseOut:  func(string, maps.Marker) {},
	})

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)}))
	require.Equal(t, 3, p.Stats().Attached)

	require.NoError(t, m.UpdateMarkers(nil))

	stats := p.Stats()
	assert.Equal(t, 3, stats.Detached, "every listener detached exactly once")
	assert.Equal(t, 1, stats.Destroyed)
	assert.Equal(t, 0, stats.Live)
}

func TestManager_CreateFailureSurfacesAndAbortsPass(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	p.FailCreate(true)
	err := m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)})
	require.Error(t, err)

	var me *MarkerError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "add", me.Op)
	assert.Equal(t, 0, m.Registry().Size())

	// a later pass with a healthy provider recovers
	p.FailCreate(false)
	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)}))
	assert.Equal(t, 1, m.Registry().Size())
}

func TestManager_MutateFailurePartialApplication(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1), desc("s2", 2, 2)}))

	p.FailMutate(true)
	moved1 := desc("s1", 5, 5)
	moved2 := desc("s2", 6, 6)
	err := m.UpdateMarkers([]Descriptor{moved1, moved2})
	require.Error(t, err)

	// operations already applied stay applied; the failed pass is not atomic
	assert.Equal(t, ids("s1", "s2"), registryIDs(m))
}

func TestManager_ClearMarkers(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{OnClick: func(string, maps.Marker) {}})

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1), desc("s2", 2, 2)}))
	require.NoError(t, m.ClearMarkers())

	stats := p.Stats()
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, 2, stats.Detached)
	assert.Equal(t, 0, m.Registry().Size())
}

func TestManager_EndToEndScenario(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{OnClick: func(string, maps.Marker) {}})

	s1 := desc("s1", 1, 1)
	s1.Title = "Stop 1"

	require.NoError(t, m.UpdateMarkers([]Descriptor{s1}))
	assert.Equal(t, ids("s1"), registryIDs(m))

	s2 := desc("s2", 2, 2)
	require.NoError(t, m.UpdateMarkers([]Descriptor{s1, s2}))
	assert.Equal(t, ids("s1", "s2"), registryIDs(m))

	stats := p.Stats()
	assert.Equal(t, 2, stats.Created)
	assert.Equal(t, 0, stats.Mutated, "s1 unchanged, native marker never mutated")

	require.NoError(t, m.UpdateMarkers([]Descriptor{s2}))
	assert.Equal(t, ids("s2"), registryIDs(m))

	stats = p.Stats()
	assert.Equal(t, 1, stats.Destroyed, "s1 native marker destroyed")
	assert.Equal(t, 1, stats.Detached, "s1 click listener detached")
	assert.Equal(t, 1, stats.Live)
}

func TestManager_ConcurrentUpdatesSerialize(t *testing.T) {
	p := headless.New()
	m := newTestManager(t, p, Handlers{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				_ = m.UpdateMarkers([]Descriptor{desc("s1", 1, 1), desc("s2", 2, 2)})
			} else {
				_ = m.UpdateMarkers([]Descriptor{desc("s1", 1, 1)})
			}
		}(i)
	}
	wg.Wait()

	// whichever pass ran last, the registry matches one of the two
	// desired sets and holds no duplicates
	size := m.Registry().Size()
	assert.Contains(t, []int{1, 2}, size)
	assert.Len(t, registryIDs(m), size)
}

func TestManager_GetMarkerAbsent(t *testing.T) {
	m := newTestManager(t, headless.New(), Handlers{})

	_, ok := m.GetMarker("ghost")
	assert.False(t, ok)
}

func TestManager_StatsAccumulate(t *testing.T) {
	m := newTestManager(t, headless.New(), Handlers{})

	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1), desc("s2", 2, 2)}))
	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s1", 1, 1), desc("s2", 3, 3)}))
	require.NoError(t, m.UpdateMarkers([]Descriptor{desc("s2", 3, 3)}))

	st := m.Stats()
	assert.Equal(t, uint64(2), st.Added)
	assert.Equal(t, uint64(1), st.Updated)
	assert.Equal(t, uint64(1), st.Removed)
	assert.Equal(t, uint64(2), st.Skipped)
}
