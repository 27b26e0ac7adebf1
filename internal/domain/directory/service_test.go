package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

// -- Mock Repositories --

type mockHolderRepo struct {
	items map[string]*Holder
}

func (m *mockHolderRepo) GetByDocument(_ context.Context, document string) (*Holder, error) {
	h, ok := m.items[document]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return h, nil
}

type mockBeneficiaryRepo struct {
	items map[string]*Beneficiary
}

func (m *mockBeneficiaryRepo) GetByDocument(_ context.Context, document string) (*Beneficiary, error) {
	b, ok := m.items[document]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return b, nil
}

type mockCityRepo struct {
	items []*City
	terms []string
}

func (m *mockCityRepo) Search(_ context.Context, term string, limit int) ([]*City, error) {
	m.terms = append(m.terms, term)
	var result []*City
	for _, c := range m.items {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(term)) && len(result) < limit {
			result = append(result, c)
		}
	}
	return result, nil
}

type mockSpecialtyRepo struct {
	items []*Specialty
	err   error
}

func (m *mockSpecialtyRepo) Search(_ context.Context, term string, limit int) ([]*Specialty, error) {
	if m.err != nil {
		return nil, m.err
	}
	var result []*Specialty
	for _, s := range m.items {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(term)) {
			result = append(result, s)
		}
	}
	return result, nil
}

func newTestService() (*Service, *mockCityRepo, *mockSpecialtyRepo) {
	bogota := "bog"
	bogotaName := "Bogotá"
	cities := &mockCityRepo{items: []*City{{ID: "bog", Name: "Bogotá"}, {ID: "med", Name: "Medellín"}}}
	specialties := &mockSpecialtyRepo{items: []*Specialty{{ID: "car", Name: "Cardiología"}, {ID: "der", Name: "Dermatología"}}}
	svc := NewService(
		&mockHolderRepo{items: map[string]*Holder{
			"12345678": {ID: "h1", Document: "12345678", FullName: "Ana Pérez", CityID: &bogota, CityName: &bogotaName},
		}},
		&mockBeneficiaryRepo{items: map[string]*Beneficiary{
			"87654321": {ID: "b1", HolderID: "h1", Document: "87654321", FullName: "Luis Pérez"},
		}},
		cities,
		specialties,
	)
	return svc, cities, specialties
}

func TestService_HolderByDocument(t *testing.T) {
	svc, _, _ := newTestService()

	h, err := svc.HolderByDocument(context.Background(), "12345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.ID != "h1" || h.CityName == nil || *h.CityName != "Bogotá" {
		t.Errorf("unexpected holder: %+v", h)
	}
}

func TestService_HolderByDocument_NotFound(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.HolderByDocument(context.Background(), "999")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestService_HolderByDocument_Empty(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.HolderByDocument(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestService_BeneficiaryByDocument(t *testing.T) {
	svc, _, _ := newTestService()

	b, err := svc.BeneficiaryByDocument(context.Background(), "87654321")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.HolderID != "h1" {
		t.Errorf("expected holder h1, got %s", b.HolderID)
	}

	if _, err := svc.BeneficiaryByDocument(context.Background(), "000"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestService_SearchCities(t *testing.T) {
	svc, repo, _ := newTestService()

	cities, err := svc.SearchCities(context.Background(), "  med ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cities) != 1 || cities[0].ID != "med" {
		t.Errorf("unexpected result: %+v", cities)
	}
	if repo.terms[0] != "med" {
		t.Errorf("expected trimmed term, got %q", repo.terms[0])
	}
}

func TestService_SearchCities_BlankTerm(t *testing.T) {
	svc, repo, _ := newTestService()

	cities, err := svc.SearchCities(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cities) != 0 {
		t.Errorf("expected no cities, got %d", len(cities))
	}
	if len(repo.terms) != 0 {
		t.Error("blank term should not reach the repository")
	}
}

func TestService_SearchSpecialties(t *testing.T) {
	svc, _, _ := newTestService()

	got, err := svc.SearchSpecialties(context.Background(), "cardio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Cardiología" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestService_SearchSpecialties_RepoError(t *testing.T) {
	svc, _, specs := newTestService()
	specs.err = errors.New("connection reset")

	if _, err := svc.SearchSpecialties(context.Background(), "cardio"); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}
