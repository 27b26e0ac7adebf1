package intake

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/benefits-gateway/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type requestRepoPG struct{ pool *pgxpool.Pool }

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `a.id, a.requester_id, a.person_id, a.person_kind, a.city_id, c.name,
	a.specialty_id, s.name, a.first_time, a.control, a.description, a.status, a.created_at`

const requestFrom = ` FROM appointment_request a
	JOIN city c ON c.id = a.city_id
	JOIN specialty s ON s.id = a.specialty_id`

func (r *requestRepoPG) scanRequest(row pgx.Row) (*Request, error) {
	var a Request
	err := row.Scan(&a.ID, &a.RequesterID, &a.PersonID, &a.PersonKind, &a.CityID, &a.CityName,
		&a.SpecialtyID, &a.SpecialtyName, &a.FirstTime, &a.Control, &a.Description, &a.Status, &a.CreatedAt)
	return &a, err
}

func (r *requestRepoPG) Create(ctx context.Context, a *Request) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment_request (id, requester_id, person_id, person_kind, city_id,
			specialty_id, first_time, control, description, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		a.ID, a.RequesterID, a.PersonID, a.PersonKind, a.CityID,
		a.SpecialtyID, a.FirstTime, a.Control, a.Description, a.Status).Scan(&a.CreatedAt)
}

func (r *requestRepoPG) list(ctx context.Context, where string, arg string, limit int) ([]*Request, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+requestCols+requestFrom+` WHERE `+where+`
		ORDER BY a.created_at DESC LIMIT $2`, arg, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Request
	for rows.Next() {
		a, err := r.scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *requestRepoPG) ListByRequester(ctx context.Context, requesterID string, limit int) ([]*Request, error) {
	return r.list(ctx, "a.requester_id = $1", requesterID, limit)
}

func (r *requestRepoPG) ListByStatus(ctx context.Context, status string, limit int) ([]*Request, error) {
	return r.list(ctx, "a.status = $1", status, limit)
}
