package model

import "time"

type EventType string

const (
	EventMessage EventType = "message"
	EventDeleted EventType = "message_deleted"
	EventStatus  EventType = "status"
	EventAssign  EventType = "assign"
	EventTyping  EventType = "typing"
)

// Event is published after every durable change to a conversation. It carries
// enough to wake viewers and drive notifications, never the message body.
type Event struct {
	Type           EventType  `json:"type"`
	ConversationID int64      `json:"conversation_id"`
	MessageID      int64      `json:"message_id,omitempty"`
	Role           Role       `json:"role,omitempty"`
	Visibility     Visibility `json:"visibility,omitempty"`
	Status         Status     `json:"status,omitempty"`
	At             time.Time  `json:"at"`
}
