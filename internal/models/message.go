package models

import "time"

// MessageType distinguishes member messages from lifecycle notices.
type MessageType string

const (
	MessageUser   MessageType = "user"
	MessageSystem MessageType = "system"
)

// ChatMessage is an immutable message in a room. SenderID is nil for system messages.
type ChatMessage struct {
	ID          int         `db:"id" json:"id"`
	RoomID      int         `db:"room_id" json:"room_id"`
	SenderID    *int        `db:"sender_id" json:"sender_id"`
	MessageType MessageType `db:"message_type" json:"message_type"`
	Content     string      `db:"content" json:"content"`
	Timestamp   time.Time   `db:"timestamp" json:"timestamp"`
}

// MessageView is the wire shape of a message delivered to clients.
type MessageView struct {
	ID          int         `json:"id"`
	RoomID      int         `json:"room_id"`
	SenderID    *int        `json:"sender_id"`
	SenderName  string      `json:"sender_name"`
	MessageType MessageType `json:"message_type"`
	Content     string      `json:"content"`
	Timestamp   time.Time   `json:"timestamp"`
}

// View renders m for clients with the resolved sender name.
func (m ChatMessage) View(senderName string) MessageView {
	return MessageView{
		ID:          m.ID,
		RoomID:      m.RoomID,
		SenderID:    m.SenderID,
		SenderName:  senderName,
		MessageType: m.MessageType,
		Content:     m.Content,
		Timestamp:   m.Timestamp,
	}
}
