package intake

import "context"

type RequestRepository interface {
	Create(ctx context.Context, r *Request) error
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]*Request, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]*Request, error)
}
