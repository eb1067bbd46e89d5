package wire

import (
	"encoding/json"
	"time"
)

// Event types exchanged over the chat websocket, in both directions.
const (
	TypeJoinRoom       = "joinRoom"
	TypeSendMessage    = "sendMessage"
	TypeReceiveMessage = "receiveMessage"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeError          = "error"
)

// Event is the JSON envelope for every websocket frame.
type Event struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content,omitempty"`
}

// NewEvent wraps a payload into an Event envelope.
func NewEvent(eventType string, content any) (Event, error) {
	if content == nil {
		return Event{Type: eventType}, nil
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Content: raw}, nil
}

// Decode unmarshals the envelope content into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Content, v)
}

// JoinRoom subscribes the connection to a room. The key is either a derived
// incident room key or a bare user id (the user's personal room).
type JoinRoom struct {
	RoomKey string `json:"roomKey"`
}

// SendMessage is the client's request to deliver a message into an incident
// conversation. The room key is derived server-side.
type SendMessage struct {
	IncidentID string `json:"incidentId"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Text       string `json:"text"`
}

// ReceiveMessage echoes a persisted message to every current room member.
type ReceiveMessage struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incidentId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	RoomKey    string    `json:"roomKey"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Error carries a server-side failure description to one client.
type Error struct {
	Message string `json:"message"`
}
