package chat

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Chat is a conversation between members and agents.
type Chat struct {
	ID        string    `db:"id" json:"id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Message is one persisted chat message.
type Message struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ChatID     string    `db:"chat_id" json:"chat_id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	SenderType string    `db:"sender_type" json:"sender_type"`
	Body       string    `db:"body" json:"message"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ReadMark records that a user has read a message.
type ReadMark struct {
	MessageID uuid.UUID `db:"message_id" json:"message_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}
