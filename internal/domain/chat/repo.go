package chat

import (
	"context"

	"github.com/google/uuid"
)

type ChatRepository interface {
	GetByID(ctx context.Context, id string) (*Chat, error)
	Participants(ctx context.Context, chatID string) ([]string, error)
}

type MessageRepository interface {
	// Create inserts m if its chat is still active.
	Create(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	MarkRead(ctx context.Context, r *ReadMark) error
}
