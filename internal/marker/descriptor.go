// Package marker implements the marker synchronization engine: a registry of
// live map-marker handles, a pure diff over current vs. desired marker sets,
// and a manager that applies the resulting operations to an injected map.
package marker

import (
	"fmt"

	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/maps"
)

// Descriptor is the caller-supplied, declarative description of what a marker
// should look like and where it should be. The ID is stable across
// reconciliation passes; two descriptors with the same ID in one pass are not
// permitted (the later one silently wins).
type Descriptor struct {
	ID       string
	Position geo.Position
	Title    string
	Label    *maps.Label
	// Icon is compared by pointer identity, not content. Callers that swap
	// in a structurally identical but distinct Icon get a real update.
	Icon      *maps.Icon
	Clickable *bool // default true
	Draggable *bool // default false
	Visible   *bool // default true
	ZIndex    int
	Opacity   float64
	Animation string
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// IsClickable returns the effective clickable flag.
func (d Descriptor) IsClickable() bool { return boolOr(d.Clickable, true) }

// IsDraggable returns the effective draggable flag.
func (d Descriptor) IsDraggable() bool { return boolOr(d.Draggable, false) }

// IsVisible returns the effective visible flag.
func (d Descriptor) IsVisible() bool { return boolOr(d.Visible, true) }

// Properties converts the descriptor into the native property set.
func (d Descriptor) Properties() maps.Properties {
	return maps.Properties{
		Position:  d.Position,
		Title:     d.Title,
		Label:     d.Label,
		Icon:      d.Icon,
		Clickable: d.IsClickable(),
		Draggable: d.IsDraggable(),
		Visible:   d.IsVisible(),
		ZIndex:    d.ZIndex,
		Opacity:   d.Opacity,
		Animation: d.Animation,
	}
}

// Equal reports whether two descriptors describe the same marker state.
// Labels are compared field by field; icons by pointer identity only. The
// manager uses this to skip native mutations when nothing changed.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.ID != o.ID ||
		d.Position != o.Position ||
		d.Title != o.Title ||
		d.Icon != o.Icon ||
		d.IsClickable() != o.IsClickable() ||
		d.IsDraggable() != o.IsDraggable() ||
		d.IsVisible() != o.IsVisible() ||
		d.ZIndex != o.ZIndex ||
		d.Opacity != o.Opacity ||
		d.Animation != o.Animation {
		return false
	}
	if (d.Label == nil) != (o.Label == nil) {
		return false
	}
	if d.Label != nil && *d.Label != *o.Label {
		return false
	}
	return true
}

// MarkerError describes a marker-lifecycle fault: which operation failed, on
// which marker, and the underlying cause when one exists.
type MarkerError struct {
	Op  string
	ID  string
	Err error
}

func (e *MarkerError) Error() string {
	switch {
	case e.ID != "" && e.Err != nil:
		return fmt.Sprintf("marker %s: %s: %v", e.ID, e.Op, e.Err)
	case e.ID != "":
		return fmt.Sprintf("marker %s: %s", e.ID, e.Op)
	default:
		return fmt.Sprintf("marker: %s: %v", e.Op, e.Err)
	}
}

func (e *MarkerError) Unwrap() error { return e.Err }
