package marker

import "sort"

// OpKind tags a reconciliation operation.
type OpKind int

const (
	OpAdd OpKind = iota
	OpUpdate
	OpRemove
)

// String returns the operation name.
func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Operation is the unit of work produced by the diff: create, mutate, or tear
// down the marker with the given id. Desc is unset for removals.
type Operation struct {
	Kind OpKind
	ID   string
	Desc Descriptor
}

// CalculateOperations diffs the currently registered ids against the desired
// marker map and returns the operations that reconcile them. Pure function,
// no side effects. Removals come first, then adds and updates; within each
// group ids are sorted so the output is deterministic. Operations target
// disjoint ids, so ordering carries no semantic weight.
//
// Updates are emitted unconditionally for every surviving id; the caller is
// expected to apply the Descriptor.Equal check before committing a native
// mutation.
func CalculateOperations(current map[string]struct{}, desired map[string]Descriptor) []Operation {
	ops := make([]Operation, 0, len(current)+len(desired))

	removed := make([]string, 0)
	for id := range current {
		if _, ok := desired[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		ops = append(ops, Operation{Kind: OpRemove, ID: id})
	}

	ids := make([]string, 0, len(desired))
	for id := range desired {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		kind := OpUpdate
		if _, ok := current[id]; !ok {
			kind = OpAdd
		}
		ops = append(ops, Operation{Kind: kind, ID: id, Desc: desired[id]})
	}

	return ops
}

// OptimizeOperations collapses duplicate operations on the same id, keeping
// only the last-seen operation per id. CalculateOperations never emits
// duplicates, so this is defensive normalization rather than a load-bearing
// step; it protects future callers that batch operation lists themselves.
func OptimizeOperations(ops []Operation) []Operation {
	seen := make(map[string]struct{}, len(ops))
	kept := make([]Operation, 0, len(ops))
	for i := len(ops) - 1; i >= 0; i-- {
		if _, ok := seen[ops[i].ID]; ok {
			continue
		}
		seen[ops[i].ID] = struct{}{}
		kept = append(kept, ops[i])
	}
	// restore original relative order
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// DesiredMap converts a descriptor list into an id-keyed map. When the list
// contains duplicate ids the later entry silently wins.
func DesiredMap(desired []Descriptor) map[string]Descriptor {
	m := make(map[string]Descriptor, len(desired))
	for _, d := range desired {
		m[d.ID] = d
	}
	return m
}
