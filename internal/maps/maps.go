// Package maps defines the capability contract for the native map widget the
// marker engine renders onto. The engine never constructs the map itself; a
// Provider is injected once the widget is ready.
package maps

import "github.com/fleetops/fleetmap/internal/geo"

// Event names a marker can be listened on.
const (
	EventClick     = "click"
	EventDragEnd   = "dragend"
	EventMouseOver = "mouseover"
	EventMouseOut  = "mouseout"
)

// Label is a textual badge drawn on a marker, e.g. a stop sequence number.
type Label struct {
	Text       string `json:"text"`
	Color      string `json:"color,omitempty"`
	FontSize   string `json:"fontSize,omitempty"`
	FontWeight string `json:"fontWeight,omitempty"`
}

// Icon describes how a marker is drawn: either a vector symbol (Path, Scale,
// fill and stroke) or an image reference (URL). Icons are shared by pointer;
// the marker engine compares them by identity, not by content.
type Icon struct {
	Path         string
	Scale        float64
	FillColor    string
	FillOpacity  float64
	StrokeColor  string
	StrokeWeight float64
	URL          string
}

// Properties is the full property set applied to a native marker on creation,
// or a patch applied in place on update.
type Properties struct {
	Position  geo.Position
	Title     string
	Label     *Label
	Icon      *Icon
	Clickable bool
	Draggable bool
	Visible   bool
	ZIndex    int
	Opacity   float64
	Animation string
}

// Event is delivered to a ListenerFunc when a native marker event fires.
type Event struct {
	Type     string
	Position geo.Position
}

// ListenerFunc handles a native marker event.
type ListenerFunc func(e Event)

// Listener is an opaque token for an attached event callback. Tokens are
// owned by the marker engine and must be detached exactly once.
type Listener interface {
	Detach() error
}

// Marker is a live native marker created by a Provider.
type Marker interface {
	// SetProperties mutates the marker in place.
	SetProperties(props Properties) error
	// Position returns the marker's current position.
	Position() geo.Position
	// AttachListener registers a callback for the named event and returns
	// the token used to detach it later.
	AttachListener(event string, fn ListenerFunc) (Listener, error)
	// Remove destroys the marker and detaches it from the map.
	Remove() error
}

// Provider creates markers on a live map instance.
type Provider interface {
	CreateMarker(props Properties) (Marker, error)
}
