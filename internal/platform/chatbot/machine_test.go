package chatbot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ehr/benefits-gateway/internal/platform/auth"
)

// -- Fakes --

type fakeDirectory struct {
	holders     map[string]*Person
	dependents  map[string]*Dependent
	cities      []Option
	specialties []Option
	err         error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		holders: map[string]*Person{
			"12345678": {ID: "holder-1", Name: "Ana Pérez", CityID: "bog", CityName: "Bogotá"},
			"55555555": {ID: "holder-2", Name: "Jorge Díaz"},
		},
		dependents: map[string]*Dependent{
			"87654321": {Person: Person{ID: "dep-1", Name: "Luis Pérez", CityID: "bog", CityName: "Bogotá"}, HolderID: "holder-1"},
			"11112222": {Person: Person{ID: "dep-2", Name: "Sofía Díaz"}, HolderID: "holder-2"},
		},
		cities: []Option{
			{ID: "bog", Name: "Bogotá"},
			{ID: "med", Name: "Medellín"},
			{ID: "mon", Name: "Montería"},
		},
		specialties: []Option{
			{ID: "car", Name: "Cardiología"},
			{ID: "cir", Name: "Cirugía cardiovascular"},
			{ID: "der", Name: "Dermatología"},
		},
	}
}

func (f *fakeDirectory) HolderByDocument(_ context.Context, document string) (*Person, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.holders[document], nil
}

func (f *fakeDirectory) DependentByDocument(_ context.Context, document string) (*Dependent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dependents[document], nil
}

func search(opts []Option, term string) []Option {
	var out []Option
	for _, o := range opts {
		if strings.Contains(fold(o.Name), fold(term)) {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeDirectory) SearchCities(_ context.Context, term string) ([]Option, error) {
	if f.err != nil {
		return nil, f.err
	}
	return search(f.cities, term), nil
}

func (f *fakeDirectory) SearchSpecialties(_ context.Context, term string) ([]Option, error) {
	if f.err != nil {
		return nil, f.err
	}
	return search(f.specialties, term), nil
}

type fakeIntake struct {
	submitted []*Appointment
	err       error
}

func (f *fakeIntake) Submit(_ context.Context, a *Appointment) error {
	if f.err != nil {
		return f.err
	}
	a.ID = "req-1"
	f.submitted = append(f.submitted, a)
	return nil
}

var (
	holderIdentity = auth.Identity{ID: "holder-1", Kind: auth.KindHolder}
	agentIdentity  = auth.Identity{ID: "agent-1", Kind: auth.KindAgent, IsAgent: true, AgentActive: true}
)

func newTestMachine() (*Machine, *fakeDirectory, *fakeIntake) {
	dir := newFakeDirectory()
	in := &fakeIntake{}
	return NewMachine(dir, in, "/appointments"), dir, in
}

// step feeds input and fails the test on a transition error.
func step(t *testing.T, m *Machine, who auth.Identity, s Session, input string) (Session, Reply) {
	t.Helper()
	next, reply, err := m.Handle(context.Background(), who, s, input)
	if err != nil {
		t.Fatalf("Handle(%q) in %s: unexpected error: %v", input, s.State, err)
	}
	return next, reply
}

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestMachine_EndToEnd(t *testing.T) {
	m, _, in := newTestMachine()
	s, _ := m.Start(holderIdentity, nil)

	s, r := step(t, m, holderIdentity, s, "12345678")
	if s.State != StateAwaitingCitySelection {
		t.Fatalf("expected AwaitingCitySelection, got %s", s.State)
	}
	if len(r.Options) != 2 || r.Options[0] != "En Bogotá" || r.Options[1] != "En otra ciudad" {
		t.Fatalf("unexpected city options: %v", r.Options)
	}

	s, _ = step(t, m, holderIdentity, s, "En Bogotá")
	if s.State != StateAwaitingSpecialtySearch {
		t.Fatalf("expected AwaitingSpecialtySearch, got %s", s.State)
	}
	if s.Data.CityID != "bog" {
		t.Errorf("expected home city adopted, got %q", s.Data.CityID)
	}

	s, r = step(t, m, holderIdentity, s, "cardio")
	if s.State != StateAwaitingSpecialtySelection {
		t.Fatalf("expected AwaitingSpecialtySelection, got %s", s.State)
	}
	if !containsString(r.List, "Cardiología") {
		t.Fatalf("expected Cardiología in list, got %v", r.List)
	}

	s, r = step(t, m, holderIdentity, s, "Cardiología")
	if s.State != StateAwaitingVisitType {
		t.Fatalf("expected AwaitingVisitType, got %s", s.State)
	}
	if len(r.Options) != 2 || r.Options[0] != "Primera vez" || r.Options[1] != "Control" {
		t.Fatalf("unexpected visit options: %v", r.Options)
	}

	s, _ = step(t, m, holderIdentity, s, "Primera vez")
	if s.State != StateAwaitingDescription {
		t.Fatalf("expected AwaitingDescription, got %s", s.State)
	}

	s, r = step(t, m, holderIdentity, s, "Dolor en el pecho al caminar")
	if s.State != StateConfirmation {
		t.Fatalf("expected Confirmation, got %s", s.State)
	}
	if len(r.Options) != 2 || r.Options[0] != "si" || r.Options[1] != "no" {
		t.Fatalf("unexpected confirmation options: %v", r.Options)
	}
	for _, want := range []string{"Ana Pérez", "Bogotá", "Cardiología", "Primera vez", "Dolor en el pecho"} {
		if !strings.Contains(r.Message, want) {
			t.Errorf("summary missing %q: %s", want, r.Message)
		}
	}
	if len(in.submitted) != 0 {
		t.Fatal("nothing may be submitted before confirmation")
	}

	s, r = step(t, m, holderIdentity, s, "si")
	if s.State != StateCompleted {
		t.Fatalf("expected Completed, got %s", s.State)
	}
	if len(in.submitted) != 1 {
		t.Fatalf("expected exactly one submission, got %d", len(in.submitted))
	}
	got := in.submitted[0]
	if got.PersonID != "holder-1" || got.PersonKind != PersonHolder || got.SpecialtyID != "car" || !got.FirstTime || got.Control {
		t.Errorf("unexpected appointment: %+v", got)
	}
	if r.RedirectURL != "/appointments" {
		t.Errorf("expected redirect hint, got %q", r.RedirectURL)
	}
	if r.Submitted == nil || r.Submitted.ID != "req-1" {
		t.Errorf("expected reply to carry the submitted appointment, got %+v", r.Submitted)
	}
}

func TestMachine_DocumentNotFound(t *testing.T) {
	m, _, _ := newTestMachine()
	s := NewSession(holderIdentity.ID)

	for _, doc := range []string{"99999999", "00000", "123456789012345"} {
		next, r := step(t, m, holderIdentity, s, doc)
		if next.State != StateAwaitingDocument {
			t.Errorf("%s: expected AwaitingDocument, got %s", doc, next.State)
		}
		if r.Message != msgPersonNotFound {
			t.Errorf("%s: expected not-found prompt, got %q", doc, r.Message)
		}
	}
}

func TestMachine_DocumentFormat(t *testing.T) {
	m, _, _ := newTestMachine()
	s := NewSession(holderIdentity.ID)

	tests := []struct {
		input string
		want  string
	}{
		{"", msgDocumentRequired},
		{" . ", msgDocumentRequired},
		{"12a45678", msgDocumentFormat},
		{"1234", msgDocumentFormat},
		{"1234567890123456", msgDocumentFormat},
	}
	for _, tt := range tests {
		next, r := step(t, m, holderIdentity, s, tt.input)
		if next.State != StateAwaitingDocument {
			t.Errorf("%q: expected AwaitingDocument, got %s", tt.input, next.State)
		}
		if r.Message != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.input, tt.want, r.Message)
		}
	}
}

func TestMachine_DocumentWithDots(t *testing.T) {
	m, _, _ := newTestMachine()
	s, _ := step(t, m, holderIdentity, NewSession(holderIdentity.ID), "12.345.678")
	if s.State != StateAwaitingCitySelection {
		t.Fatalf("expected dotted document to be accepted, got %s", s.State)
	}
}

func TestMachine_OwnDependent(t *testing.T) {
	m, _, _ := newTestMachine()
	s, _ := step(t, m, holderIdentity, NewSession(holderIdentity.ID), "87654321")
	if s.State != StateAwaitingCitySelection {
		t.Fatalf("expected AwaitingCitySelection, got %s", s.State)
	}
	if s.Data.Person.Kind != PersonDependent || s.Data.Person.ID != "dep-1" {
		t.Errorf("unexpected person: %+v", s.Data.Person)
	}
}

func TestMachine_ForeignDependent(t *testing.T) {
	m, _, _ := newTestMachine()
	s, r := step(t, m, holderIdentity, NewSession(holderIdentity.ID), "11112222")
	if s.State != StateAwaitingDocument {
		t.Fatalf("expected AwaitingDocument, got %s", s.State)
	}
	if r.Message != msgNotOwner {
		t.Errorf("expected ownership error, got %q", r.Message)
	}
	if r.Message == msgPersonNotFound {
		t.Error("ownership failure must not read as not found")
	}
}

func TestMachine_ForeignHolder(t *testing.T) {
	m, _, _ := newTestMachine()
	_, r := step(t, m, holderIdentity, NewSession(holderIdentity.ID), "55555555")
	if r.Message != msgNotOwner {
		t.Errorf("expected ownership error, got %q", r.Message)
	}
}

func TestMachine_BeneficiaryBooksForSelf(t *testing.T) {
	m, _, _ := newTestMachine()
	dep := auth.Identity{ID: "dep-1", Kind: auth.KindBeneficiary, IsBeneficiary: true}
	s, _ := step(t, m, dep, NewSession(dep.ID), "87654321")
	if s.State != StateAwaitingCitySelection {
		t.Fatalf("expected AwaitingCitySelection, got %s", s.State)
	}
}

func TestMachine_ActiveAgentBooksForAnyone(t *testing.T) {
	m, _, _ := newTestMachine()
	s, _ := step(t, m, agentIdentity, NewSession(agentIdentity.ID), "11112222")
	if s.State != StateAwaitingCitySelection {
		t.Fatalf("expected active agent to bypass ownership, got %s", s.State)
	}

	inactive := agentIdentity
	inactive.AgentActive = false
	_, r := step(t, m, inactive, NewSession(inactive.ID), "11112222")
	if r.Message != msgNotOwner {
		t.Errorf("inactive agent should be subject to ownership, got %q", r.Message)
	}
}

func TestMachine_LookupErrorKeepsSession(t *testing.T) {
	m, dir, _ := newTestMachine()
	dir.err = errors.New("connection refused")
	s := NewSession(holderIdentity.ID)

	next, _, err := m.Handle(context.Background(), holderIdentity, s, "12345678")
	if err == nil {
		t.Fatal("expected lookup error")
	}
	if next.State != StateAwaitingDocument || next.Data.Person != nil {
		t.Errorf("expected unchanged session on error, got %+v", next)
	}
}

func cityStage(t *testing.T, m *Machine, doc string) Session {
	t.Helper()
	s, _ := step(t, m, holderIdentity, NewSession(holderIdentity.ID), doc)
	return s
}

func TestMachine_CitySearchAndSelect(t *testing.T) {
	m, _, _ := newTestMachine()
	s := cityStage(t, m, "12345678")

	s, r := step(t, m, holderIdentity, s, "En otra ciudad")
	if s.State != StateAwaitingCitySelection || r.Message != msgAskCityName {
		t.Fatalf("expected ask for city name, got %s %q", s.State, r.Message)
	}

	s, r = step(t, m, holderIdentity, s, "mon")
	if s.State != StateAwaitingCitySelection {
		t.Fatalf("search must stay in AwaitingCitySelection, got %s", s.State)
	}
	if len(r.List) != 1 || r.List[0] != "Montería" {
		t.Fatalf("unexpected list: %v", r.List)
	}
	if len(s.Data.CityCandidates) != 1 {
		t.Fatalf("expected candidates cached, got %v", s.Data.CityCandidates)
	}

	s, _ = step(t, m, holderIdentity, s, "monteria")
	if s.State != StateAwaitingSpecialtySearch || s.Data.CityID != "mon" {
		t.Fatalf("expected Montería adopted, got %s %q", s.State, s.Data.CityID)
	}
	if s.Data.CityCandidates != nil {
		t.Error("expected candidates cleared after selection")
	}
}

func TestMachine_CitySearchNoMatches(t *testing.T) {
	m, _, _ := newTestMachine()
	// Jorge Díaz has no home city on file, so free text goes straight to search.
	s, r := step(t, m, agentIdentity, NewSession(agentIdentity.ID), "55555555")
	if r.Message != msgAskCityName {
		t.Fatalf("expected city name prompt, got %q", r.Message)
	}

	next, r := step(t, m, agentIdentity, s, "zzz")
	if next.State != StateAwaitingCitySelection {
		t.Fatalf("expected AwaitingCitySelection, got %s", next.State)
	}
	if !strings.Contains(r.Message, "zzz") {
		t.Errorf("expected re-prompt mentioning the term, got %q", r.Message)
	}
	if len(next.Data.CityCandidates) != 0 {
		t.Error("no candidates should be cached")
	}
}

func TestMachine_CityUnknownSelectionResendsList(t *testing.T) {
	m, _, _ := newTestMachine()
	s := cityStage(t, m, "12345678")
	s, _ = step(t, m, holderIdentity, s, "En otra ciudad")
	s, _ = step(t, m, holderIdentity, s, "me")

	next, r := step(t, m, holderIdentity, s, "Cali")
	if next.State != StateAwaitingCitySelection {
		t.Fatalf("expected AwaitingCitySelection, got %s", next.State)
	}
	if len(r.List) != len(s.Data.CityCandidates) {
		t.Errorf("expected current list re-sent, got %v", r.List)
	}
}

func specialtyStage(t *testing.T, m *Machine) Session {
	t.Helper()
	s := cityStage(t, m, "12345678")
	s, _ = step(t, m, holderIdentity, s, "En Bogotá")
	return s
}

func TestMachine_SpecialtyNoMatches(t *testing.T) {
	m, _, _ := newTestMachine()
	s := specialtyStage(t, m)

	next, r := step(t, m, holderIdentity, s, "astrologia")
	if next.State != StateAwaitingSpecialtySearch {
		t.Fatalf("expected AwaitingSpecialtySearch, got %s", next.State)
	}
	if !strings.Contains(r.Message, "astrologia") {
		t.Errorf("expected re-prompt mentioning the term, got %q", r.Message)
	}
}

func TestMachine_SpecialtyUnknownSelection(t *testing.T) {
	m, _, _ := newTestMachine()
	s := specialtyStage(t, m)
	s, first := step(t, m, holderIdentity, s, "c")

	next, r := step(t, m, holderIdentity, s, "Neurología")
	if next.State != StateAwaitingSpecialtySelection {
		t.Fatalf("expected AwaitingSpecialtySelection, got %s", next.State)
	}
	if strings.Join(r.List, "|") != strings.Join(first.List, "|") {
		t.Errorf("expected same list re-sent, got %v want %v", r.List, first.List)
	}
}

func visitStage(t *testing.T, m *Machine) Session {
	t.Helper()
	s := specialtyStage(t, m)
	s, _ = step(t, m, holderIdentity, s, "cardio")
	s, _ = step(t, m, holderIdentity, s, "cardiologia")
	return s
}

func TestMachine_VisitType(t *testing.T) {
	m, _, _ := newTestMachine()
	s := visitStage(t, m)
	if s.State != StateAwaitingVisitType {
		t.Fatalf("expected AwaitingVisitType, got %s", s.State)
	}

	next, r := step(t, m, holderIdentity, s, "urgente")
	if next.State != StateAwaitingVisitType || len(r.Options) != 2 {
		t.Fatalf("expected re-prompt with options, got %s %v", next.State, r.Options)
	}

	next, _ = step(t, m, holderIdentity, s, "CONTROL")
	if next.State != StateAwaitingDescription || !next.Data.Control || next.Data.FirstTime {
		t.Fatalf("expected control flag, got %+v", next.Data)
	}
}

func confirmationStage(t *testing.T, m *Machine) Session {
	t.Helper()
	s := visitStage(t, m)
	s, _ = step(t, m, holderIdentity, s, "primera vez")
	s, _ = step(t, m, holderIdentity, s, "revisión general")
	return s
}

func TestMachine_DescriptionBlankReprompts(t *testing.T) {
	m, _, _ := newTestMachine()
	s := visitStage(t, m)
	s, _ = step(t, m, holderIdentity, s, "Primera vez")

	next, r := step(t, m, holderIdentity, s, "   ")
	if next.State != StateAwaitingDescription || r.Message != msgAskDescription {
		t.Fatalf("expected description re-prompt, got %s %q", next.State, r.Message)
	}
}

func TestMachine_ConfirmationInvalidInputs(t *testing.T) {
	m, _, in := newTestMachine()
	s := confirmationStage(t, m)

	for _, input := range []string{"", "yes", "ok", "sii", "n", "tal vez"} {
		next, r := step(t, m, holderIdentity, s, input)
		if next.State != StateConfirmation {
			t.Errorf("%q: expected Confirmation, got %s", input, next.State)
		}
		if len(r.Options) != 2 || r.Options[0] != "si" || r.Options[1] != "no" {
			t.Errorf("%q: expected yes/no options, got %v", input, r.Options)
		}
	}
	if len(in.submitted) != 0 {
		t.Fatalf("invalid confirmations must not submit, got %d", len(in.submitted))
	}
}

func TestMachine_ConfirmationAccentedYes(t *testing.T) {
	for _, input := range []string{"sí", "SÍ", "Si"} {
		m, _, in := newTestMachine()
		s := confirmationStage(t, m)
		next, _ := step(t, m, holderIdentity, s, input)
		if next.State != StateCompleted || len(in.submitted) != 1 {
			t.Errorf("%q: expected one submission, got %d (%s)", input, len(in.submitted), next.State)
		}
	}
}

func TestMachine_ConfirmationNo(t *testing.T) {
	m, _, in := newTestMachine()
	s := confirmationStage(t, m)

	next, r := step(t, m, holderIdentity, s, "No")
	if next.State != StateCompleted {
		t.Fatalf("expected Completed, got %s", next.State)
	}
	if len(in.submitted) != 0 {
		t.Fatal("declining must not submit")
	}
	if r.Submitted != nil || r.RedirectURL != "" {
		t.Errorf("unexpected submission hints on cancel: %+v", r)
	}
}

func TestMachine_SubmitErrorKeepsConfirmation(t *testing.T) {
	m, _, in := newTestMachine()
	s := confirmationStage(t, m)
	in.err = errors.New("insert failed")

	next, _, err := m.Handle(context.Background(), holderIdentity, s, "si")
	if err == nil {
		t.Fatal("expected submit error")
	}
	if next.State != StateConfirmation {
		t.Errorf("expected session left in Confirmation, got %s", next.State)
	}
}

func TestMachine_Completed(t *testing.T) {
	m, _, in := newTestMachine()
	s := NewSession(holderIdentity.ID)
	s.State = StateCompleted

	next, r := step(t, m, holderIdentity, s, "si")
	if next.State != StateCompleted || r.Message != msgAlreadyCompleted {
		t.Fatalf("expected terminal notice, got %s %q", next.State, r.Message)
	}
	if len(in.submitted) != 0 {
		t.Fatal("completed session must not submit")
	}
}

func TestMachine_UnknownStateResets(t *testing.T) {
	m, _, _ := newTestMachine()
	s := NewSession(holderIdentity.ID)
	s.State = "bogus"
	s.Data.Description = "stale"

	next, r := step(t, m, holderIdentity, s, "hola")
	if next.State != StateAwaitingDocument {
		t.Fatalf("expected reset to AwaitingDocument, got %s", next.State)
	}
	if next.Data.Description != "" {
		t.Error("expected data cleared on reset")
	}
	if !strings.Contains(r.Message, msgRestart) {
		t.Errorf("expected restart notice, got %q", r.Message)
	}
}

func TestMachine_HandleDoesNotMutateInput(t *testing.T) {
	m, _, _ := newTestMachine()
	s := specialtyStage(t, m)
	s, _ = step(t, m, holderIdentity, s, "c")
	before := len(s.Data.SpecialtyCandidates)

	next, _ := step(t, m, holderIdentity, s, "Cardiología")
	if next.Data.SpecialtyCandidates != nil {
		t.Fatal("expected candidates cleared on the returned session")
	}
	if len(s.Data.SpecialtyCandidates) != before || s.State != StateAwaitingSpecialtySelection {
		t.Error("Handle mutated the session it was given")
	}
}

func TestMachine_StartAndResume(t *testing.T) {
	m, _, _ := newTestMachine()

	s, r := m.Start(holderIdentity, nil)
	if s.State != StateAwaitingDocument || s.IdentityID != holderIdentity.ID {
		t.Fatalf("unexpected new session: %+v", s)
	}
	if !strings.Contains(r.Message, msgAskDocument) {
		t.Errorf("expected document prompt, got %q", r.Message)
	}

	live := visitStage(t, m)
	resumed, r := m.Start(holderIdentity, &live)
	if resumed.State != StateAwaitingVisitType {
		t.Fatalf("expected resume in AwaitingVisitType, got %s", resumed.State)
	}
	if !strings.HasPrefix(r.Message, msgResume) || len(r.Options) != 2 {
		t.Errorf("expected resume prompt with options, got %+v", r)
	}

	done := live
	done.State = StateCompleted
	fresh, _ := m.Start(holderIdentity, &done)
	if fresh.State != StateAwaitingDocument {
		t.Errorf("completed session should restart, got %s", fresh.State)
	}
}
