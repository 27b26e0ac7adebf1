// Package websocket is the real-time gateway: it authenticates upgrades,
// tracks who is online, and routes frames between members, agents and the
// intake chatbot.
package websocket

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Hub is the connection registry. It maps each identity to its single live
// client; the set of keys is the online set. All operations are safe for
// concurrent use.
type Hub struct {
	mu         sync.RWMutex
	byIdentity map[string]*Client
	closed     bool
	log        zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		byIdentity: make(map[string]*Client),
		log:        logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Register makes client the live connection for its identity and announces
// it. A previous client for the same identity is closed and returned.
//
// Presence frames are queued while the registry lock is held, so every
// client sees online_users lists in the order the changes were applied.
func (h *Hub) Register(client *Client) (displaced *Client) {
	id := client.Identity.ID

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		client.close()
		return nil
	}
	displaced = h.byIdentity[id]
	h.byIdentity[id] = client

	if displaced != nil {
		displaced.close()
		h.log.Info().Str("identity_id", id).Str("client_id", displaced.ID).Msg("connection replaced by newer login")
	}

	h.announceLocked(EventUserConnected, id)
	return displaced
}

// Unregister closes client and, if it is still the live connection for its
// identity, removes the identity from the online set and announces it.
// It reports whether the identity went offline.
func (h *Hub) Unregister(client *Client) bool {
	id := client.Identity.ID

	h.mu.Lock()
	defer h.mu.Unlock()
	client.close()
	if current, ok := h.byIdentity[id]; !ok || current != client {
		return false
	}
	delete(h.byIdentity, id)

	h.announceLocked(EventUserDisconnected, id)
	return true
}

// announceLocked queues a presence change followed by the online list.
// Enqueue never blocks, so holding mu here is safe.
func (h *Hub) announceLocked(event, id string) {
	presence := encode(PresenceFrame{Event: event, UserID: id})
	online := encode(OnlineUsersFrame{Event: EventOnlineUsers, Users: h.onlineIDsLocked()})
	for _, c := range h.byIdentity {
		h.deliver(c, presence)
		h.deliver(c, online)
	}
}

func (h *Hub) Lookup(identityID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.byIdentity[identityID]
	return c, ok
}

// OnlineIDs returns the online set, sorted.
func (h *Hub) OnlineIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineIDsLocked()
}

func (h *Hub) onlineIDsLocked() []string {
	ids := make([]string, 0, len(h.byIdentity))
	for id := range h.byIdentity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byIdentity)
}

func (h *Hub) deliver(c *Client, data []byte) bool {
	if c.Enqueue(data) {
		return true
	}
	h.log.Debug().Str("client_id", c.ID).Str("identity_id", c.Identity.ID).Msg("send buffer full or closed, frame dropped")
	return false
}

// Broadcast sends data to every live client.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.byIdentity {
		h.deliver(c, data)
	}
}

// SendTo sends data to those of ids that are online and returns how many
// clients accepted it.
func (h *Hub) SendTo(ids []string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, id := range ids {
		if c, ok := h.byIdentity[id]; ok && h.deliver(c, data) {
			n++
		}
	}
	return n
}

// SendToActiveAgents sends data to every connected agent who is on duty.
func (h *Hub) SendToActiveAgents(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.byIdentity {
		if c.Identity.ActiveAgent() && h.deliver(c, data) {
			n++
		}
	}
	return n
}

// Close disconnects every client and refuses new registrations.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.byIdentity
	h.byIdentity = make(map[string]*Client)
	h.closed = true
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.log.Info().Int("clients", len(clients)).Msg("hub closed")
}
