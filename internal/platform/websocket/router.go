package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/benefits-gateway/internal/platform/chatbot"
)

const (
	msgInvalidFrame  = "invalid frame"
	msgInternalError = "internal error"
)

// ChatService persists chat traffic. Send and MarkRead return the chat's
// participant ids for fanout.
type ChatService interface {
	Send(ctx context.Context, msg *ChatMessage) ([]string, error)
	MarkRead(ctx context.Context, chatID, userID, messageID string) ([]string, error)
	Participants(ctx context.Context, chatID string) ([]string, error)
}

// AppointmentLister lists stored appointment requests.
type AppointmentLister interface {
	ForRequester(ctx context.Context, requesterID string) ([]chatbot.Appointment, error)
	Pending(ctx context.Context) ([]chatbot.Appointment, error)
}

// RejectError is a request the caller got wrong. Its Reason is sent back to
// the caller verbatim; any other error is reported as a generic failure.
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return e.Reason }

func Reject(format string, args ...interface{}) error {
	return &RejectError{Reason: fmt.Sprintf(format, args...)}
}

// Router classifies inbound frames and dispatches them. Dispatch is called
// by the connection's read loop, one frame at a time.
type Router struct {
	hub          *Hub
	chats        ChatService
	appointments AppointmentLister
	machine      *chatbot.Machine
	sessions     chatbot.SessionStore
	frameTimeout time.Duration
	log          zerolog.Logger

	// Sessions are keyed by identity while frames are only ordered per
	// connection, so turns of one identity are serialized here.
	sessionLocks [64]sync.Mutex
}

func NewRouter(
	hub *Hub,
	chats ChatService,
	appointments AppointmentLister,
	machine *chatbot.Machine,
	sessions chatbot.SessionStore,
	frameTimeout time.Duration,
	logger zerolog.Logger,
) *Router {
	return &Router{
		hub:          hub,
		chats:        chats,
		appointments: appointments,
		machine:      machine,
		sessions:     sessions,
		frameTimeout: frameTimeout,
		log:          logger.With().Str("component", "ws_router").Logger(),
	}
}

// Dispatch processes one frame from client to completion. Failures are
// reported to client only.
func (r *Router) Dispatch(client *Client, data []byte) {
	ctx, cancel := context.WithTimeout(client.Context(), r.frameTimeout)
	defer cancel()

	log := r.log.With().Str("client_id", client.ID).Str("identity_id", client.Identity.ID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			var stack [4096]byte
			n := runtime.Stack(stack[:], false)
			log.Error().
				Str("panic", fmt.Sprintf("%v", rec)).
				Str("stack", string(stack[:n])).
				Msg("panic recovered in frame handler")
			sendError(client, msgInternalError)
		}
	}()

	var f InboundFrame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Debug().Err(err).Msg("malformed frame")
		sendError(client, msgInvalidFrame)
		return
	}

	err := r.route(ctx, client, &f)
	if err == nil {
		return
	}
	var rej *RejectError
	if errors.As(err, &rej) {
		log.Debug().Str("event", f.Event).Str("reason", rej.Reason).Msg("frame rejected")
		sendError(client, rej.Reason)
		return
	}
	log.Error().Err(err).Str("event", f.Event).Msg("frame failed")
	sendError(client, msgInternalError)
}

func (r *Router) route(ctx context.Context, c *Client, f *InboundFrame) error {
	switch f.Event {
	case EventTyping, EventStopTyping:
		return r.handleTyping(ctx, c, f)
	case EventMessageRead:
		return r.handleMessageRead(ctx, c, f)
	case EventGetAppointments:
		return r.handleGetAppointments(ctx, c)
	case EventInit, EventChatbotInit:
		return r.handleChatbotInit(ctx, c)
	}

	if f.ChatID == "" {
		unlock := r.lockSession(c.Identity.ID)
		defer unlock()
		s, err := r.sessions.Get(ctx, c.Identity.ID)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if s != nil {
			return r.handleChatbotInput(ctx, c, *s, f)
		}
	}
	return r.handleChatSend(ctx, c, f)
}

func (r *Router) lockSession(identityID string) (unlock func()) {
	h := fnv.New32a()
	h.Write([]byte(identityID))
	m := &r.sessionLocks[h.Sum32()%uint32(len(r.sessionLocks))]
	m.Lock()
	return m.Unlock
}

// superseded reports whether c was closed, typically replaced by a newer
// login. A closed client's frames must not advance the shared session; the
// session lock keeps a newer connection's turn from starting mid-transition.
func (r *Router) superseded(c *Client) bool {
	if c.Context().Err() == nil {
		return false
	}
	r.log.Debug().Str("client_id", c.ID).Str("identity_id", c.Identity.ID).Msg("connection closed, conversation turn discarded")
	return true
}

func sendError(c *Client, message string) {
	c.Enqueue(encode(ErrorFrame{Event: EventError, Message: message}))
}

func checkUser(c *Client, userID string) error {
	if userID != "" && userID != c.Identity.ID {
		return Reject("user_id does not match the authenticated user")
	}
	return nil
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Chat signals
// ---------------------------------------------------------------------------

func (r *Router) handleTyping(ctx context.Context, c *Client, f *InboundFrame) error {
	if f.ChatID == "" {
		return Reject("chat_id is required")
	}
	if err := checkUser(c, f.UserID); err != nil {
		return err
	}
	participants, err := r.chats.Participants(ctx, f.ChatID)
	if err != nil {
		return err
	}
	if !containsID(participants, c.Identity.ID) {
		return Reject("not a participant of this chat")
	}
	r.hub.SendTo(without(participants, c.Identity.ID), encode(TypingFrame{
		Event:  f.Event,
		ChatID: f.ChatID,
		UserID: c.Identity.ID,
	}))
	return nil
}

func (r *Router) handleMessageRead(ctx context.Context, c *Client, f *InboundFrame) error {
	if f.ChatID == "" || f.MessageID == "" {
		return Reject("chat_id and message_id are required")
	}
	if err := checkUser(c, f.UserID); err != nil {
		return err
	}
	participants, err := r.chats.MarkRead(ctx, f.ChatID, c.Identity.ID, f.MessageID)
	if err != nil {
		return err
	}
	r.hub.SendTo(participants, encode(MessageReadFrame{
		Event:     EventMessageRead,
		ChatID:    f.ChatID,
		UserID:    c.Identity.ID,
		MessageID: f.MessageID,
	}))
	return nil
}

func (r *Router) handleChatSend(ctx context.Context, c *Client, f *InboundFrame) error {
	var missing []string
	if f.ChatID == "" {
		missing = append(missing, "chat_id")
	}
	if f.SenderID == "" {
		missing = append(missing, "sender_id")
	}
	if f.SenderType == "" {
		missing = append(missing, "sender_type")
	}
	if f.Message == nil || strings.TrimSpace(*f.Message) == "" {
		missing = append(missing, "message")
	}
	if len(missing) > 0 {
		return Reject("missing required fields: %s", strings.Join(missing, ", "))
	}
	if f.SenderID != c.Identity.ID {
		return Reject("sender_id does not match the authenticated user")
	}

	msg := &ChatMessage{
		ChatID:     f.ChatID,
		SenderID:   f.SenderID,
		SenderType: f.SenderType,
		Body:       *f.Message,
	}
	participants, err := r.chats.Send(ctx, msg)
	if err != nil {
		return err
	}
	r.hub.SendTo(participants, encode(NewMessageFrame{
		Event:   EventNewMessage,
		ChatID:  msg.ChatID,
		Message: msg,
	}))
	return nil
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

func (r *Router) handleGetAppointments(ctx context.Context, c *Client) error {
	if c.Identity.ActiveAgent() {
		list, err := r.appointments.Pending(ctx)
		if err != nil {
			return fmt.Errorf("list pending appointments: %w", err)
		}
		c.Enqueue(encode(AppointmentsFrame{Event: EventAllAppointments, Appointments: nonNil(list)}))
		return nil
	}
	list, err := r.appointments.ForRequester(ctx, c.Identity.ID)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	c.Enqueue(encode(AppointmentsFrame{Event: EventUserAppointments, Appointments: nonNil(list)}))
	return nil
}

func nonNil(list []chatbot.Appointment) []chatbot.Appointment {
	if list == nil {
		return []chatbot.Appointment{}
	}
	return list
}

// ---------------------------------------------------------------------------
// Intake conversation
// ---------------------------------------------------------------------------

func (r *Router) handleChatbotInit(ctx context.Context, c *Client) error {
	unlock := r.lockSession(c.Identity.ID)
	defer unlock()
	if r.superseded(c) {
		return nil
	}

	existing, err := r.sessions.Get(ctx, c.Identity.ID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s, reply := r.machine.Start(c.Identity, existing)
	if err := r.sessions.Put(ctx, s); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	c.Enqueue(encode(chatbotFrame(reply)))
	return nil
}

func (r *Router) handleChatbotInput(ctx context.Context, c *Client, s chatbot.Session, f *InboundFrame) error {
	input := ""
	if f.Message != nil {
		input = *f.Message
	}

	if r.superseded(c) {
		return nil
	}
	next, reply, err := r.machine.Handle(ctx, c.Identity, s, input)
	if err != nil {
		return err
	}

	if next.Done() {
		if err := r.sessions.Delete(ctx, c.Identity.ID); err != nil {
			r.log.Warn().Err(err).Str("identity_id", c.Identity.ID).Msg("failed to delete completed session")
		}
	} else if err := r.sessions.Put(ctx, next); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	c.Enqueue(encode(chatbotFrame(reply)))

	if reply.Submitted != nil {
		n := r.hub.SendToActiveAgents(encode(NewAppointmentFrame{Event: EventNewAppointment, Appointment: reply.Submitted}))
		r.log.Info().
			Str("identity_id", c.Identity.ID).
			Str("appointment_id", reply.Submitted.ID).
			Int("agents_notified", n).
			Msg("appointment request submitted")
	}
	return nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
