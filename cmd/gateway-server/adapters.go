package main

import (
	"context"
	"errors"

	"github.com/ehr/benefits-gateway/internal/domain/chat"
	"github.com/ehr/benefits-gateway/internal/domain/directory"
	"github.com/ehr/benefits-gateway/internal/domain/intake"
	"github.com/ehr/benefits-gateway/internal/platform/chatbot"
	"github.com/ehr/benefits-gateway/internal/platform/websocket"
)

// directoryAdapter adapts directory.Service to chatbot.Directory, keeping
// the chatbot package free of persistence types.
type directoryAdapter struct {
	svc *directory.Service
}

func (a *directoryAdapter) HolderByDocument(ctx context.Context, document string) (*chatbot.Person, error) {
	h, err := a.svc.HolderByDocument(ctx, document)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chatbot.Person{
		ID:       h.ID,
		Name:     h.FullName,
		CityID:   deref(h.CityID),
		CityName: deref(h.CityName),
	}, nil
}

func (a *directoryAdapter) DependentByDocument(ctx context.Context, document string) (*chatbot.Dependent, error) {
	b, err := a.svc.BeneficiaryByDocument(ctx, document)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chatbot.Dependent{
		Person: chatbot.Person{
			ID:       b.ID,
			Name:     b.FullName,
			CityID:   deref(b.CityID),
			CityName: deref(b.CityName),
		},
		HolderID: b.HolderID,
	}, nil
}

func (a *directoryAdapter) SearchCities(ctx context.Context, term string) ([]chatbot.Option, error) {
	cities, err := a.svc.SearchCities(ctx, term)
	if err != nil {
		return nil, err
	}
	opts := make([]chatbot.Option, len(cities))
	for i, c := range cities {
		opts[i] = chatbot.Option{ID: c.ID, Name: c.Name}
	}
	return opts, nil
}

func (a *directoryAdapter) SearchSpecialties(ctx context.Context, term string) ([]chatbot.Option, error) {
	specialties, err := a.svc.SearchSpecialties(ctx, term)
	if err != nil {
		return nil, err
	}
	opts := make([]chatbot.Option, len(specialties))
	for i, s := range specialties {
		opts[i] = chatbot.Option{ID: s.ID, Name: s.Name}
	}
	return opts, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// intakeAdapter stores confirmed chatbot appointments as intake requests.
type intakeAdapter struct {
	svc *intake.Service
}

func (a *intakeAdapter) Submit(ctx context.Context, apt *chatbot.Appointment) error {
	r := &intake.Request{
		RequesterID:   apt.RequesterID,
		PersonID:      apt.PersonID,
		PersonKind:    apt.PersonKind,
		CityID:        apt.CityID,
		CityName:      apt.CityName,
		SpecialtyID:   apt.SpecialtyID,
		SpecialtyName: apt.SpecialtyName,
		FirstTime:     apt.FirstTime,
		Control:       apt.Control,
		Description:   apt.Description,
	}
	if err := a.svc.Submit(ctx, r); err != nil {
		return err
	}
	apt.ID = r.ID.String()
	apt.Status = r.Status
	apt.CreatedAt = r.CreatedAt
	return nil
}

// appointmentAdapter serves appointment listings to the router.
type appointmentAdapter struct {
	svc *intake.Service
}

func (a *appointmentAdapter) ForRequester(ctx context.Context, requesterID string) ([]chatbot.Appointment, error) {
	reqs, err := a.svc.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	return toAppointments(reqs), nil
}

func (a *appointmentAdapter) Pending(ctx context.Context) ([]chatbot.Appointment, error) {
	reqs, err := a.svc.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	return toAppointments(reqs), nil
}

func toAppointments(reqs []*intake.Request) []chatbot.Appointment {
	out := make([]chatbot.Appointment, len(reqs))
	for i, r := range reqs {
		out[i] = chatbot.Appointment{
			ID:            r.ID.String(),
			RequesterID:   r.RequesterID,
			PersonID:      r.PersonID,
			PersonKind:    r.PersonKind,
			CityID:        r.CityID,
			CityName:      r.CityName,
			SpecialtyID:   r.SpecialtyID,
			SpecialtyName: r.SpecialtyName,
			FirstTime:     r.FirstTime,
			Control:       r.Control,
			Description:   r.Description,
			Status:        r.Status,
			CreatedAt:     r.CreatedAt,
		}
	}
	return out
}

// chatAdapter adapts chat.Service to websocket.ChatService. Domain errors
// the caller can act on are turned into rejections.
type chatAdapter struct {
	svc *chat.Service
}

func (a *chatAdapter) Send(ctx context.Context, msg *websocket.ChatMessage) ([]string, error) {
	m := &chat.Message{
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		SenderType: msg.SenderType,
		Body:       msg.Body,
	}
	participants, err := a.svc.Send(ctx, m)
	if err != nil {
		return nil, chatError(err)
	}
	msg.ID = m.ID.String()
	msg.Body = m.Body
	msg.CreatedAt = m.CreatedAt
	return participants, nil
}

func (a *chatAdapter) MarkRead(ctx context.Context, chatID, userID, messageID string) ([]string, error) {
	participants, err := a.svc.MarkRead(ctx, chatID, userID, messageID)
	if err != nil {
		return nil, chatError(err)
	}
	return participants, nil
}

func (a *chatAdapter) Participants(ctx context.Context, chatID string) ([]string, error) {
	participants, err := a.svc.Participants(ctx, chatID)
	if err != nil {
		return nil, chatError(err)
	}
	return participants, nil
}

func chatError(err error) error {
	switch {
	case errors.Is(err, chat.ErrInvalid):
		return websocket.Reject("%s", err.Error())
	case errors.Is(err, chat.ErrNotParticipant):
		return websocket.Reject("not a participant of this chat")
	case errors.Is(err, chat.ErrChatNotFound):
		return websocket.Reject("chat not found")
	case errors.Is(err, chat.ErrChatClosed):
		return websocket.Reject("chat is closed")
	case errors.Is(err, chat.ErrMessageNotFound):
		return websocket.Reject("message not found")
	}
	return err
}
