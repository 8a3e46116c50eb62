package realtime

import (
	"encoding/json"
	"time"
)

// State is the observable connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Message is an inbound frame from the push server.
//
// Data is opaque; category-specific decoding (keyed by Type and Event)
// belongs to the consumer, not this package.
type Message struct {
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`

	// ReceivedAt is the local time ReadMessage returned. Not on the wire.
	ReceivedAt time.Time `json:"-"`
}

// subscribeFrame is the announcement sent once per successful connection.
type subscribeFrame struct {
	Type  string   `json:"type"`
	Rooms []string `json:"rooms"`
}

// Config configures a realtime client.
type Config struct {
	URL                string        // Full connect URL (e.g. ws://localhost:8000/api/v1/ws/connect)
	Rooms              []string      // Fixed subscription set, declared once per connection
	HandshakeTimeout   time.Duration // WebSocket dial timeout
	WriteTimeout       time.Duration // Write deadline for outbound frames
	ReconnectBaseDelay time.Duration // First retry delay
	ReconnectMaxDelay  time.Duration // Retry delay cap
	MaxReconnects      int           // Consecutive attempts before giving up
	EventBufferSize    int           // Events() channel buffer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Rooms:              []string{"alerts", "sensors", "safety"},
		HandshakeTimeout:   10 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		MaxReconnects:      5,
		EventBufferSize:    256,
	}
}
