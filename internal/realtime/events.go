package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// EventKind is the type field of a frame
type EventKind string

const (
	EventMessage    EventKind = "message"
	EventRoomUpdate EventKind = "room_update"
	EventPresence   EventKind = "presence"
	EventError      EventKind = "error"
)

// ConnectionLostMessage is delivered to error subscribers once the
// reconnect budget is spent.
const ConnectionLostMessage = "Connection lost. Please refresh the page."

// Kinds lists every event kind the server may send
func Kinds() []EventKind {
	return []EventKind{EventMessage, EventRoomUpdate, EventPresence, EventError}
}

// Valid reports whether k belongs to the closed set of event kinds
func (k EventKind) Valid() bool {
	switch k {
	case EventMessage, EventRoomUpdate, EventPresence, EventError:
		return true
	default:
		return false
	}
}

// Frame is the envelope exchanged in both directions
type Frame struct {
	Type    EventKind       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives the raw payload of a frame
type Handler func(payload json.RawMessage)

// Decode unmarshals a frame payload into T
func Decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, fmt.Errorf("realtime: empty payload")
	}
	if err := sonic.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("realtime: decode %T: %w", v, err)
	}
	return v, nil
}

// Member is the minimal user info carried in room payloads
type Member struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// Sender is either a bare address or a user object on the wire
type Sender struct {
	Member
}

// UnmarshalJSON accepts "0xabc..." or {"id":..,"name":..,"address":..}
func (s *Sender) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		return sonic.Unmarshal(data, &s.Address)
	}
	return sonic.Unmarshal(data, &s.Member)
}

// MarshalJSON writes the bare address unless user details are present
func (s Sender) MarshalJSON() ([]byte, error) {
	if s.ID == "" && s.Name == "" {
		return sonic.Marshal(s.Address)
	}
	return sonic.Marshal(s.Member)
}

// ChatMessage is the payload of a message event
type ChatMessage struct {
	ID        string `json:"id,omitempty"`
	ClientID  string `json:"clientId,omitempty"`
	Sender    Sender `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
	RoomID    string `json:"roomId"`
	Edited    bool   `json:"edited,omitempty"`
	Deleted   bool   `json:"deleted,omitempty"`
}

// RoomUpdate is the payload of a room_update event
type RoomUpdate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	IsPrivate   bool     `json:"isPrivate,omitempty"`
	Topic       string   `json:"topic,omitempty"`
	Members     []Member `json:"members,omitempty"`
	CreatedAt   int64    `json:"createdAt,omitempty"`
	UpdatedAt   int64    `json:"updatedAt,omitempty"`
}

// Presence is the payload of a presence event
type Presence struct {
	Address  string `json:"address"`
	RoomID   string `json:"roomId,omitempty"`
	Status   string `json:"status"` // online, offline, typing
	LastSeen int64  `json:"lastSeen,omitempty"`
}

// ErrorPayload is the payload of an error event
type ErrorPayload struct {
	Message string `json:"message"`
}
