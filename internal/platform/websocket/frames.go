package websocket

import (
	"encoding/json"
	"time"

	"github.com/ehr/benefits-gateway/internal/platform/chatbot"
)

// Inbound events.
const (
	EventTyping          = "typing"
	EventStopTyping      = "stop_typing"
	EventMessageRead     = "message_read"
	EventInit            = "init"
	EventChatbotInit     = "chatbot_init"
	EventGetAppointments = "get_appointments"
)

// Outbound events.
const (
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
	EventOnlineUsers      = "online_users"
	EventNewMessage       = "new_message"
	EventChatbotMessage   = "chatbot_message"
	EventUserAppointments = "user_appointments"
	EventAllAppointments  = "all_appointments"
	EventNewAppointment   = "new_appointment"
	EventError            = "error"
)

const SenderTypeBot = "BOT"

// InboundFrame is the union of every frame a client may send. Message is a
// pointer so an absent field can be told apart from an empty one.
type InboundFrame struct {
	Event      string  `json:"event"`
	ChatID     string  `json:"chat_id"`
	UserID     string  `json:"user_id"`
	MessageID  string  `json:"message_id"`
	SenderID   string  `json:"sender_id"`
	SenderType string  `json:"sender_type"`
	Message    *string `json:"message"`
}

type PresenceFrame struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

type OnlineUsersFrame struct {
	Event string   `json:"event"`
	Users []string `json:"users"`
}

// ChatMessage is a persisted chat message as it travels on the wire.
type ChatMessage struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderType string    `json:"sender_type"`
	Body       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

type NewMessageFrame struct {
	Event   string       `json:"event"`
	ChatID  string       `json:"chat_id"`
	Message *ChatMessage `json:"message"`
}

type TypingFrame struct {
	Event  string `json:"event"`
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

type MessageReadFrame struct {
	Event     string `json:"event"`
	ChatID    string `json:"chat_id"`
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
}

type ChatbotFrame struct {
	Event       string   `json:"event"`
	Message     string   `json:"message"`
	SenderType  string   `json:"sender_type"`
	List        []string `json:"list,omitempty"`
	Options     []string `json:"options,omitempty"`
	RedirectURL string   `json:"redirectUrl,omitempty"`
}

type AppointmentsFrame struct {
	Event        string                `json:"event"`
	Appointments []chatbot.Appointment `json:"appointments"`
}

type NewAppointmentFrame struct {
	Event       string               `json:"event"`
	Appointment *chatbot.Appointment `json:"appointment"`
}

type ErrorFrame struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}

func chatbotFrame(r chatbot.Reply) ChatbotFrame {
	return ChatbotFrame{
		Event:       EventChatbotMessage,
		Message:     r.Message,
		SenderType:  SenderTypeBot,
		List:        r.List,
		Options:     r.Options,
		RedirectURL: r.RedirectURL,
	}
}

// encode marshals an outbound frame. Frames are plain structs, so failure
// means a programming error and yields nil.
func encode(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
