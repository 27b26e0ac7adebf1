package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/benefits-gateway/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Chat Repository ===========

type chatRepoPG struct{ pool *pgxpool.Pool }

func NewChatRepoPG(pool *pgxpool.Pool) ChatRepository {
	return &chatRepoPG{pool: pool}
}

func (r *chatRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *chatRepoPG) GetByID(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, status, created_at FROM chat WHERE id = $1`, id).
		Scan(&c.ID, &c.Status, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *chatRepoPG) Participants(ctx context.Context, chatID string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT user_id FROM chat_participant WHERE chat_id = $1 ORDER BY user_id`, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =========== Message Repository ===========

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

func (r *messageRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const messageCols = `id, chat_id, sender_id, sender_type, body, created_at`

func (r *messageRepoPG) scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderType, &m.Body, &m.CreatedAt)
	return &m, err
}

// Create holds a share lock on the chat row so the chat cannot be closed
// between the status check and the insert.
func (r *messageRepoPG) Create(ctx context.Context, m *Message) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		var status string
		err := r.conn(ctx).QueryRow(ctx, `SELECT status FROM chat WHERE id = $1 FOR SHARE`, m.ChatID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrChatNotFound
		}
		if err != nil {
			return fmt.Errorf("lock chat: %w", err)
		}
		if status != StatusActive {
			return ErrChatClosed
		}

		m.ID = uuid.New()
		return r.conn(ctx).QueryRow(ctx, `
			INSERT INTO chat_message (id, chat_id, sender_id, sender_type, body)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING created_at`,
			m.ID, m.ChatID, m.SenderID, m.SenderType, m.Body).Scan(&m.CreatedAt)
	})
}

func (r *messageRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := r.scanMessage(r.conn(ctx).QueryRow(ctx, `SELECT `+messageCols+` FROM chat_message WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *messageRepoPG) MarkRead(ctx context.Context, rm *ReadMark) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO chat_message_read (message_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (message_id, user_id) DO UPDATE SET read_at = chat_message_read.read_at
		RETURNING read_at`,
		rm.MessageID, rm.UserID).Scan(&rm.ReadAt)
}
