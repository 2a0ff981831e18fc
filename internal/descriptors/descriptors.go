// Package descriptors builds desired marker sets from domain data: route
// stops, temporary stops from the batch-add workflow, live bus positions,
// and the user-location pin.
package descriptors

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/fleetops/fleetmap/internal/geo"
	"github.com/fleetops/fleetmap/internal/maps"
	"github.com/fleetops/fleetmap/internal/marker"
	"github.com/fleetops/fleetmap/internal/model"
)

// Shared icon instances. The engine compares icons by pointer identity, so
// reusing these across passes is what keeps unchanged markers from being
// re-rendered.
var (
	StopIcon = &maps.Icon{
		Path:         "M 0,-10 A 10,10 0 1,1 0,10 A 10,10 0 1,1 0,-10",
		Scale:        1,
		FillColor:    "#1a73e8",
		FillOpacity:  1,
		StrokeColor:  "#ffffff",
		StrokeWeight: 2,
	}
	TemporaryStopIcon = &maps.Icon{
		Path:         "M 0,-10 A 10,10 0 1,1 0,10 A 10,10 0 1,1 0,-10",
		Scale:        1,
		FillColor:    "#e8710a",
		FillOpacity:  0.9,
		StrokeColor:  "#ffffff",
		StrokeWeight: 2,
	}
	BusIcon          = &maps.Icon{URL: "/icons/bus.png", Scale: 1.2}
	UserLocationIcon = &maps.Icon{URL: "/icons/me.png", Scale: 1}
)

// ForStops builds one descriptor per stop with the sequence number as the
// marker label. Temporary stops get their own icon and color.
func ForStops(stops []model.Stop) []marker.Descriptor {
	out := make([]marker.Descriptor, 0, len(stops))
	for _, s := range stops {
		out = append(out, forStop(s))
	}
	return out
}

func forStop(s model.Stop) marker.Descriptor {
	icon := StopIcon
	labelColor := "#ffffff"
	prefix := "stop"
	if s.Temporary {
		icon = TemporaryStopIcon
		prefix = "tmpstop"
	}
	if len(s.IconConfig) > 0 {
		if override := overrideIcon(s.IconConfig); override != nil {
			icon = override
		}
	}
	return marker.Descriptor{
		ID:       fmt.Sprintf("%s-%d-%d", prefix, s.RouteID, s.Seq),
		Position: s.Position(),
		Title:    s.Name,
		Label: &maps.Label{
			Text:       fmt.Sprintf("%d", s.Seq),
			Color:      labelColor,
			FontSize:   "11px",
			FontWeight: "bold",
		},
		Icon:   icon,
		ZIndex: 10,
	}
}

// overrideIcons caches parsed per-stop icon overrides keyed by their raw
// JSON. The cache is what preserves icon pointer identity across passes;
// re-parsing every pass would defeat the no-op update skip.
var overrideIcons sync.Map

func overrideIcon(raw []byte) *maps.Icon {
	if cached, ok := overrideIcons.Load(string(raw)); ok {
		return cached.(*maps.Icon)
	}
	var icon maps.Icon
	if err := json.Unmarshal(raw, &icon); err != nil {
		return nil
	}
	cached, _ := overrideIcons.LoadOrStore(string(raw), &icon)
	return cached.(*maps.Icon)
}

// ForBuses builds one descriptor per live vehicle. The marker id is stable
// per vehicle so successive position updates reconcile to in-place moves.
func ForBuses(positions []model.BusPosition) []marker.Descriptor {
	out := make([]marker.Descriptor, 0, len(positions))
	for _, p := range positions {
		out = append(out, marker.Descriptor{
			ID:       "bus-" + p.Key(),
			Position: p.Position(),
			Title:    fmt.Sprintf("%s (%.0f km/h)", p.BusNumber, p.Speed),
			Icon:     BusIcon,
			ZIndex:   20,
		})
	}
	return out
}

// UserLocation builds the user-location pin. Not clickable so it never
// swallows clicks aimed at stops underneath.
func UserLocation(pos geo.Position) marker.Descriptor {
	clickable := false
	return marker.Descriptor{
		ID:        "user-location",
		Position:  pos,
		Icon:      UserLocationIcon,
		Clickable: &clickable,
		ZIndex:    30,
	}
}
