package feed

import (
	"encoding/json"
	"fmt"

	"github.com/fleetops/fleetmap/internal/model"
)

// Message type constants for the position feed protocol.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeBusPosition = "bus_position"
)

// Envelope wraps all messages exchanged over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// SubscribePayload names the per-route topic to (un)subscribe.
type SubscribePayload struct {
	Topic string `json:"topic"`
}

// Topic builds the per-route subscription topic from bus number and
// direction, the key the broker shards positions by.
func Topic(busNumber string, direction int) string {
	return fmt.Sprintf("bus.%s.%d", busNumber, direction)
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// decodePosition parses a bus_position payload.
func decodePosition(payload json.RawMessage) (model.BusPosition, error) {
	var pos model.BusPosition
	if err := json.Unmarshal(payload, &pos); err != nil {
		return model.BusPosition{}, fmt.Errorf("decode bus_position: %w", err)
	}
	return pos, nil
}
