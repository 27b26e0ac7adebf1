package chatbot

import "time"

// State is the step of the intake conversation a session is waiting on.
type State string

const (
	StateAwaitingDocument           State = "awaiting_document"
	StateAwaitingCitySelection      State = "awaiting_city_selection"
	StateAwaitingSpecialtySearch    State = "awaiting_specialty_search"
	StateAwaitingSpecialtySelection State = "awaiting_specialty_selection"
	StateAwaitingVisitType          State = "awaiting_visit_type"
	StateAwaitingDescription        State = "awaiting_description"
	StateConfirmation               State = "confirmation"
	StateCompleted                  State = "completed"
)

const (
	PersonHolder    = "holder"
	PersonDependent = "dependent"
)

// Person is the member the appointment is being booked for.
type Person struct {
	Kind     string `json:"kind"`
	ID       string `json:"id"`
	Name     string `json:"name"`
	CityID   string `json:"city_id,omitempty"`
	CityName string `json:"city_name,omitempty"`
}

// Dependent is a Person covered under another member's plan.
type Dependent struct {
	Person
	HolderID string `json:"holder_id"`
}

// Option is one entry of a candidate list offered to the caller.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Data is everything the conversation has collected so far.
type Data struct {
	Person              *Person  `json:"person,omitempty"`
	CityID              string   `json:"city_id,omitempty"`
	CityName            string   `json:"city_name,omitempty"`
	CityCandidates      []Option `json:"city_candidates,omitempty"`
	SpecialtyID         string   `json:"specialty_id,omitempty"`
	SpecialtyName       string   `json:"specialty_name,omitempty"`
	SpecialtyCandidates []Option `json:"specialty_candidates,omitempty"`
	FirstTime           bool     `json:"first_time,omitempty"`
	Control             bool     `json:"control,omitempty"`
	Description         string   `json:"description,omitempty"`
}

// Session is one caller's intake conversation. It is keyed by identity id
// so it can outlive a single connection.
type Session struct {
	IdentityID string    `json:"identity_id"`
	State      State     `json:"state"`
	Data       Data      `json:"data"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewSession(identityID string) Session {
	return Session{IdentityID: identityID, State: StateAwaitingDocument}
}

// Done reports whether the conversation has reached its terminal state.
func (s Session) Done() bool {
	return s.State == StateCompleted
}

// clone returns a copy that shares no mutable memory with s.
func (s Session) clone() Session {
	c := s
	if s.Data.Person != nil {
		p := *s.Data.Person
		c.Data.Person = &p
	}
	c.Data.CityCandidates = append([]Option(nil), s.Data.CityCandidates...)
	c.Data.SpecialtyCandidates = append([]Option(nil), s.Data.SpecialtyCandidates...)
	return c
}

// Appointment is the request handed to the intake service on confirmation.
type Appointment struct {
	ID            string    `json:"id"`
	RequesterID   string    `json:"requester_id"`
	PersonID      string    `json:"person_id"`
	PersonKind    string    `json:"person_kind"`
	PersonName    string    `json:"person_name"`
	CityID        string    `json:"city_id"`
	CityName      string    `json:"city_name"`
	SpecialtyID   string    `json:"specialty_id"`
	SpecialtyName string    `json:"specialty_name"`
	FirstTime     bool      `json:"first_time"`
	Control       bool      `json:"control"`
	Description   string    `json:"description"`
	Status        string    `json:"status,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Reply is what the caller is told after a transition.
type Reply struct {
	Message     string
	List        []string
	Options     []string
	RedirectURL string
	// Submitted is set when the transition stored an appointment request.
	Submitted *Appointment
}
