package websocket

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ehr/benefits-gateway/internal/platform/auth"
)

// Client is one authenticated connection. Send is drained by the write pump
// and closed exactly once when the client is closed.
type Client struct {
	ID       string
	Identity auth.Identity
	Send     chan []byte

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func NewClient(identity auth.Identity, sendBuffer int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		ID:       uuid.New().String(),
		Identity: identity,
		Send:     make(chan []byte, sendBuffer),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Context is cancelled when the client is closed.
func (c *Client) Context() context.Context {
	return c.ctx
}

// Enqueue queues data without blocking. It reports false when the buffer is
// full or the client is closed.
func (c *Client) Enqueue(data []byte) bool {
	if data == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	close(c.Send)
}

func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
