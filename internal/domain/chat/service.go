// Package chat persists chat messages and read receipts and answers
// participant lookups for fanout.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalid wraps every request validation failure.
	ErrInvalid         = errors.New("invalid chat request")
	ErrChatNotFound    = errors.New("chat not found")
	ErrChatClosed      = errors.New("chat is closed")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotParticipant  = errors.New("sender is not a participant of the chat")
)

const maxBodyLength = 4000

type Service struct {
	chats    ChatRepository
	messages MessageRepository
}

func NewService(chats ChatRepository, messages MessageRepository) *Service {
	return &Service{chats: chats, messages: messages}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Send validates and stores m, returning the chat's participant ids so the
// caller can fan the message out without a second lookup.
func (s *Service) Send(ctx context.Context, m *Message) ([]string, error) {
	m.Body = strings.TrimSpace(m.Body)
	switch {
	case m.ChatID == "":
		return nil, invalid("chat_id is required")
	case m.SenderID == "":
		return nil, invalid("sender_id is required")
	case m.SenderType == "":
		return nil, invalid("sender_type is required")
	case m.Body == "":
		return nil, invalid("message is required")
	case len(m.Body) > maxBodyLength:
		return nil, invalid("message exceeds %d characters", maxBodyLength)
	}

	c, err := s.chats.GetByID(ctx, m.ChatID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, ErrChatClosed
	}

	participants, err := s.chats.Participants(ctx, m.ChatID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if !contains(participants, m.SenderID) {
		return nil, ErrNotParticipant
	}

	if err := s.messages.Create(ctx, m); err != nil {
		return nil, err
	}
	return participants, nil
}

func (s *Service) Participants(ctx context.Context, chatID string) ([]string, error) {
	if chatID == "" {
		return nil, invalid("chat_id is required")
	}
	if _, err := s.chats.GetByID(ctx, chatID); err != nil {
		return nil, err
	}
	return s.chats.Participants(ctx, chatID)
}

// MarkRead records a read receipt for a message in chatID and returns the
// participants to notify.
func (s *Service) MarkRead(ctx context.Context, chatID, userID, messageID string) ([]string, error) {
	if chatID == "" || userID == "" || messageID == "" {
		return nil, invalid("chat_id, user_id and message_id are required")
	}
	id, err := uuid.Parse(messageID)
	if err != nil {
		return nil, invalid("message_id is not a valid id")
	}

	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.ChatID != chatID {
		return nil, ErrMessageNotFound
	}

	participants, err := s.chats.Participants(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("load participants: %w", err)
	}
	if !contains(participants, userID) {
		return nil, ErrNotParticipant
	}

	if err := s.messages.MarkRead(ctx, &ReadMark{MessageID: id, UserID: userID}); err != nil {
		return nil, err
	}
	return participants, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
