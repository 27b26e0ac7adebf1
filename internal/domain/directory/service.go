// Package directory answers the read-only member and catalogue lookups the
// intake conversation depends on.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const defaultSearchLimit = 20

type Service struct {
	holders       HolderRepository
	beneficiaries BeneficiaryRepository
	cities        CityRepository
	specialties   SpecialtyRepository
}

func NewService(
	holders HolderRepository,
	beneficiaries BeneficiaryRepository,
	cities CityRepository,
	specialties SpecialtyRepository,
) *Service {
	return &Service{
		holders:       holders,
		beneficiaries: beneficiaries,
		cities:        cities,
		specialties:   specialties,
	}
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}

func (s *Service) HolderByDocument(ctx context.Context, document string) (*Holder, error) {
	if document == "" {
		return nil, fmt.Errorf("document is required")
	}
	h, err := s.holders.GetByDocument(ctx, document)
	if err != nil {
		return nil, notFound(err, "holder")
	}
	return h, nil
}

func (s *Service) BeneficiaryByDocument(ctx context.Context, document string) (*Beneficiary, error) {
	if document == "" {
		return nil, fmt.Errorf("document is required")
	}
	b, err := s.beneficiaries.GetByDocument(ctx, document)
	if err != nil {
		return nil, notFound(err, "beneficiary")
	}
	return b, nil
}

// SearchCities returns cities whose name contains term, case-insensitively.
func (s *Service) SearchCities(ctx context.Context, term string) ([]*City, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	return s.cities.Search(ctx, term, defaultSearchLimit)
}

func (s *Service) SearchSpecialties(ctx context.Context, term string) ([]*Specialty, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	return s.specialties.Search(ctx, term, defaultSearchLimit)
}
