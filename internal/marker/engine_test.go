package marker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetops/fleetmap/internal/geo"
)

func desc(id string, lat, lon float64) Descriptor {
	return Descriptor{ID: id, Position: geo.Position{Lat: lat, Lon: lon}}
}

func ids(list ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(list))
	for _, id := range list {
		m[id] = struct{}{}
	}
	return m
}

func TestCalculateOperations_Diff(t *testing.T) {
	current := ids("a", "b", "c")
	desired := map[string]Descriptor{
		"b": desc("b", 1, 1),
		"c": desc("c", 2, 2),
		"d": desc("d", 3, 3),
	}

	ops := CalculateOperations(current, desired)
	require.Len(t, ops, 4)

	byID := make(map[string]Operation)
	for _, op := range ops {
		_, dup := byID[op.ID]
		require.False(t, dup, "duplicate operation for id %s", op.ID)
		byID[op.ID] = op
	}

	assert.Equal(t, OpRemove, byID["a"].Kind)
	assert.Equal(t, OpUpdate, byID["b"].Kind)
	assert.Equal(t, OpUpdate, byID["c"].Kind)
	assert.Equal(t, OpAdd, byID["d"].Kind)
	assert.Equal(t, desc("d", 3, 3), byID["d"].Desc)
}

func TestCalculateOperations_EmptyCurrent(t *testing.T) {
	ops := CalculateOperations(nil, map[string]Descriptor{
		"s1": desc("s1", 1, 1),
	})

	require.Len(t, ops, 1)
	assert.Equal(t, OpAdd, ops[0].Kind)
	assert.Equal(t, "s1", ops[0].ID)
}

func TestCalculateOperations_EmptyDesired(t *testing.T) {
	ops := CalculateOperations(ids("s1", "s2"), nil)

	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, OpRemove, op.Kind)
	}
}

func TestCalculateOperations_UpdateEmittedUnconditionally(t *testing.T) {
	// the equality check lives with the caller, not the diff
	d := desc("s1", 1, 1)
	ops := CalculateOperations(ids("s1"), map[string]Descriptor{"s1": d})

	require.Len(t, ops, 1)
	assert.Equal(t, OpUpdate, ops[0].Kind)
}

func TestOptimizeOperations_KeepsLastPerID(t *testing.T) {
	ops := []Operation{
		{Kind: OpAdd, ID: "x", Desc: desc("x", 1, 1)},
		{Kind: OpRemove, ID: "y"},
		{Kind: OpUpdate, ID: "x", Desc: desc("x", 2, 2)},
	}

	kept := OptimizeOperations(ops)
	require.Len(t, kept, 2)

	assert.Equal(t, "y", kept[0].ID)
	assert.Equal(t, OpRemove, kept[0].Kind)
	assert.Equal(t, "x", kept[1].ID)
	assert.Equal(t, OpUpdate, kept[1].Kind)
	assert.Equal(t, desc("x", 2, 2), kept[1].Desc)
}

func TestOptimizeOperations_NoDuplicatesIsNoop(t *testing.T) {
	ops := CalculateOperations(ids("a"), map[string]Descriptor{"b": desc("b", 1, 1)})
	assert.Equal(t, ops, OptimizeOperations(ops))
}

func TestDesiredMap_LastEntryWins(t *testing.T) {
	m := DesiredMap([]Descriptor{
		desc("s1", 1, 1),
		desc("s1", 9, 9),
	})

	require.Len(t, m, 1)
	assert.Equal(t, geo.Position{Lat: 9, Lon: 9}, m["s1"].Position)
}
