// Package intake stores the appointment requests produced by the intake
// conversation.
package intake

import (
	"context"
	"fmt"
	"strings"
)

const defaultListLimit = 50

type Service struct {
	requests RequestRepository
}

func NewService(requests RequestRepository) *Service {
	return &Service{requests: requests}
}

// Submit validates and stores a new pending request.
func (s *Service) Submit(ctx context.Context, r *Request) error {
	r.Description = strings.TrimSpace(r.Description)
	if r.RequesterID == "" {
		return fmt.Errorf("requester_id is required")
	}
	if r.PersonID == "" {
		return fmt.Errorf("person_id is required")
	}
	if r.PersonKind != PersonHolder && r.PersonKind != PersonDependent {
		return fmt.Errorf("invalid person_kind: %s", r.PersonKind)
	}
	if r.CityID == "" {
		return fmt.Errorf("city_id is required")
	}
	if r.SpecialtyID == "" {
		return fmt.Errorf("specialty_id is required")
	}
	if r.FirstTime == r.Control {
		return fmt.Errorf("exactly one of first_time or control must be set")
	}
	if r.Description == "" {
		return fmt.Errorf("description is required")
	}
	r.Status = StatusPending
	if err := s.requests.Create(ctx, r); err != nil {
		return fmt.Errorf("create appointment request: %w", err)
	}
	return nil
}

func (s *Service) ListByRequester(ctx context.Context, requesterID string) ([]*Request, error) {
	if requesterID == "" {
		return nil, fmt.Errorf("requester_id is required")
	}
	return s.requests.ListByRequester(ctx, requesterID, defaultListLimit)
}

// ListPending returns the requests still waiting for an agent.
func (s *Service) ListPending(ctx context.Context) ([]*Request, error) {
	return s.requests.ListByStatus(ctx, StatusPending, defaultListLimit)
}
