// Package chatbot implements the appointment intake conversation. The
// Machine is a transition function over Session values; it never touches a
// socket, and callers decide whether to keep the session it returns.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ehr/benefits-gateway/internal/platform/auth"
)

const (
	minDocumentLength = 5
	maxDocumentLength = 15
)

// Directory resolves members and searches the city and specialty catalogues.
// Lookups that match nothing return nil without an error.
type Directory interface {
	HolderByDocument(ctx context.Context, document string) (*Person, error)
	DependentByDocument(ctx context.Context, document string) (*Dependent, error)
	SearchCities(ctx context.Context, term string) ([]Option, error)
	SearchSpecialties(ctx context.Context, term string) ([]Option, error)
}

// Intake stores confirmed appointment requests. Submit sets a.ID.
type Intake interface {
	Submit(ctx context.Context, a *Appointment) error
}

type Machine struct {
	dir         Directory
	intake      Intake
	redirectURL string
	now         func() time.Time
}

func NewMachine(dir Directory, intake Intake, redirectURL string) *Machine {
	return &Machine{
		dir:         dir,
		intake:      intake,
		redirectURL: redirectURL,
		now:         time.Now,
	}
}

// Start begins a conversation, or resumes existing when it is still live.
func (m *Machine) Start(requester auth.Identity, existing *Session) (Session, Reply) {
	if existing != nil && !existing.Done() && existing.IdentityID == requester.ID {
		s := existing.clone()
		r := promptFor(s)
		r.Message = msgResume + " " + r.Message
		return s, r
	}
	s := NewSession(requester.ID)
	s.UpdatedAt = m.now()
	return s, Reply{Message: msgGreeting + " " + msgAskDocument}
}

// Handle applies one caller input to s. On error the returned session is s
// unchanged and the caller should keep its previous copy.
func (m *Machine) Handle(ctx context.Context, requester auth.Identity, s Session, input string) (Session, Reply, error) {
	next := s.clone()
	input = strings.TrimSpace(input)

	var (
		reply Reply
		err   error
	)
	switch next.State {
	case StateAwaitingDocument:
		reply, err = m.handleDocument(ctx, requester, &next, input)
	case StateAwaitingCitySelection:
		reply, err = m.handleCity(ctx, &next, input)
	case StateAwaitingSpecialtySearch:
		reply, err = m.handleSpecialtySearch(ctx, &next, input)
	case StateAwaitingSpecialtySelection:
		reply = m.handleSpecialtySelection(&next, input)
	case StateAwaitingVisitType:
		reply = m.handleVisitType(&next, input)
	case StateAwaitingDescription:
		reply = m.handleDescription(&next, input)
	case StateConfirmation:
		reply, err = m.handleConfirmation(ctx, requester, &next, input)
	case StateCompleted:
		reply = Reply{Message: msgAlreadyCompleted}
	default:
		next = NewSession(requester.ID)
		reply = Reply{Message: msgRestart + " " + msgAskDocument}
	}
	if err != nil {
		return s, Reply{}, err
	}
	next.UpdatedAt = m.now()
	return next, reply, nil
}

// Prompt re-renders the question the session is waiting on.
func (m *Machine) Prompt(s Session) Reply {
	return promptFor(s)
}

// ---------------------------------------------------------------------------
// Document
// ---------------------------------------------------------------------------

func normalizeDocument(input string) (string, error) {
	doc := strings.NewReplacer(".", "", " ", "").Replace(input)
	if doc == "" {
		return "", ErrDocumentRequired
	}
	if len(doc) < minDocumentLength || len(doc) > maxDocumentLength {
		return "", ErrDocumentFormat
	}
	for _, r := range doc {
		if r < '0' || r > '9' {
			return "", ErrDocumentFormat
		}
	}
	return doc, nil
}

// resolvePerson looks the document up as a holder first, then as a
// dependent, and checks the requester may book for the result.
func (m *Machine) resolvePerson(ctx context.Context, requester auth.Identity, doc string) (*Person, error) {
	holder, err := m.dir.HolderByDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("lookup holder: %w", err)
	}
	if holder != nil {
		if !requester.ActiveAgent() && holder.ID != requester.ID {
			return nil, ErrNotOwner
		}
		p := *holder
		p.Kind = PersonHolder
		return &p, nil
	}

	dep, err := m.dir.DependentByDocument(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("lookup dependent: %w", err)
	}
	if dep == nil {
		return nil, ErrPersonNotFound
	}
	if !requester.ActiveAgent() && dep.HolderID != requester.ID && dep.ID != requester.ID {
		return nil, ErrNotOwner
	}
	p := dep.Person
	p.Kind = PersonDependent
	return &p, nil
}

func (m *Machine) handleDocument(ctx context.Context, requester auth.Identity, s *Session, input string) (Reply, error) {
	doc, err := normalizeDocument(input)
	if err != nil {
		return validationReply(err), nil
	}
	person, err := m.resolvePerson(ctx, requester, doc)
	switch {
	case errors.Is(err, ErrPersonNotFound), errors.Is(err, ErrNotOwner):
		return validationReply(err), nil
	case err != nil:
		return Reply{}, err
	}

	s.Data = Data{Person: person}
	s.State = StateAwaitingCitySelection
	return cityPrompt(s.Data), nil
}

func validationReply(err error) Reply {
	switch {
	case errors.Is(err, ErrDocumentRequired):
		return Reply{Message: msgDocumentRequired}
	case errors.Is(err, ErrDocumentFormat):
		return Reply{Message: msgDocumentFormat}
	case errors.Is(err, ErrNotOwner):
		return Reply{Message: msgNotOwner}
	default:
		return Reply{Message: msgPersonNotFound}
	}
}

// ---------------------------------------------------------------------------
// City
// ---------------------------------------------------------------------------

func (m *Machine) handleCity(ctx context.Context, s *Session, input string) (Reply, error) {
	d := &s.Data

	if opt, ok := findOption(d.CityCandidates, input); ok {
		return adoptCity(s, opt.ID, opt.Name), nil
	}

	folded := fold(input)
	if p := d.Person; p != nil && p.CityID != "" {
		if folded == fold(homeCityOption(p.CityName)) || folded == fold(p.CityName) {
			return adoptCity(s, p.CityID, p.CityName), nil
		}
	}
	if folded == fold(optionOtherCity) {
		d.CityCandidates = nil
		return Reply{Message: msgAskCityName}, nil
	}
	if input == "" || len(d.CityCandidates) > 0 {
		return cityPrompt(*d), nil
	}

	cities, err := m.dir.SearchCities(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("search cities: %w", err)
	}
	if len(cities) == 0 {
		return Reply{Message: fmt.Sprintf(msgNoCityMatches, input)}, nil
	}
	d.CityCandidates = cities
	return cityPrompt(*d), nil
}

func adoptCity(s *Session, id, name string) Reply {
	s.Data.CityID = id
	s.Data.CityName = name
	s.Data.CityCandidates = nil
	s.State = StateAwaitingSpecialtySearch
	return Reply{Message: msgAskSpecialty}
}

// ---------------------------------------------------------------------------
// Specialty
// ---------------------------------------------------------------------------

func (m *Machine) handleSpecialtySearch(ctx context.Context, s *Session, input string) (Reply, error) {
	if input == "" {
		return Reply{Message: msgAskSpecialty}, nil
	}
	specialties, err := m.dir.SearchSpecialties(ctx, input)
	if err != nil {
		return Reply{}, fmt.Errorf("search specialties: %w", err)
	}
	if len(specialties) == 0 {
		return Reply{Message: fmt.Sprintf(msgNoSpecialtyResult, input)}, nil
	}
	s.Data.SpecialtyCandidates = specialties
	s.State = StateAwaitingSpecialtySelection
	return Reply{Message: msgPickSpecialty, List: optionNames(specialties)}, nil
}

func (m *Machine) handleSpecialtySelection(s *Session, input string) Reply {
	opt, ok := findOption(s.Data.SpecialtyCandidates, input)
	if !ok {
		return Reply{Message: msgPickSpecialty, List: optionNames(s.Data.SpecialtyCandidates)}
	}
	s.Data.SpecialtyID = opt.ID
	s.Data.SpecialtyName = opt.Name
	s.Data.SpecialtyCandidates = nil
	s.State = StateAwaitingVisitType
	return Reply{Message: msgAskVisitType, Options: visitTypeOptions}
}

// ---------------------------------------------------------------------------
// Visit type, description and confirmation
// ---------------------------------------------------------------------------

func (m *Machine) handleVisitType(s *Session, input string) Reply {
	switch fold(input) {
	case fold(optionFirstTime):
		s.Data.FirstTime, s.Data.Control = true, false
	case fold(optionControl):
		s.Data.FirstTime, s.Data.Control = false, true
	default:
		return Reply{Message: msgAskVisitType, Options: visitTypeOptions}
	}
	s.State = StateAwaitingDescription
	return Reply{Message: msgAskDescription}
}

func (m *Machine) handleDescription(s *Session, input string) Reply {
	if input == "" {
		return Reply{Message: msgAskDescription}
	}
	s.Data.Description = input
	s.State = StateConfirmation
	return Reply{Message: summary(s.Data), Options: confirmationOptions}
}

func (m *Machine) handleConfirmation(ctx context.Context, requester auth.Identity, s *Session, input string) (Reply, error) {
	switch fold(input) {
	case optionYes:
		a := appointmentFrom(requester, s.Data)
		if err := m.intake.Submit(ctx, a); err != nil {
			return Reply{}, fmt.Errorf("submit appointment: %w", err)
		}
		s.State = StateCompleted
		return Reply{Message: msgSubmitted, RedirectURL: m.redirectURL, Submitted: a}, nil
	case optionNo:
		s.State = StateCompleted
		return Reply{Message: msgCancelled}, nil
	default:
		return Reply{Message: msgAskConfirmation, Options: confirmationOptions}, nil
	}
}

func appointmentFrom(requester auth.Identity, d Data) *Appointment {
	a := &Appointment{
		RequesterID:   requester.ID,
		CityID:        d.CityID,
		CityName:      d.CityName,
		SpecialtyID:   d.SpecialtyID,
		SpecialtyName: d.SpecialtyName,
		FirstTime:     d.FirstTime,
		Control:       d.Control,
		Description:   d.Description,
	}
	if d.Person != nil {
		a.PersonID = d.Person.ID
		a.PersonKind = d.Person.Kind
		a.PersonName = d.Person.Name
	}
	return a
}
