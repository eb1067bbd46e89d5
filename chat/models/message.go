package models

import (
	"time"
)

// Message is a persisted chat message. Messages are immutable once created;
// there are no update or delete paths.
type Message struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	IncidentID string    `json:"incident_id" gorm:"index"`
	SenderID   string    `json:"sender_id" gorm:"index"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text"`
	RoomKey    string    `json:"room_key" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// SendRequest is the unpersisted draft of a message as received from a
// client. ID, RoomKey and CreatedAt are assigned at persistence time.
type SendRequest struct {
	IncidentID string `json:"incident_id"`
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
	Text       string `json:"text"`
}
