package directory

import (
	"context"
	"strings"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Holder Repository ===========

type holderRepoPG struct{ pool *pgxpool.Pool }

func NewHolderRepoPG(pool *pgxpool.Pool) HolderRepository {
	return &holderRepoPG{pool: pool}
}

func (r *holderRepoPG) GetByDocument(ctx context.Context, document string) (*Holder, error) {
	var h Holder
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT h.id, h.document, h.full_name, h.city_id, c.name
		FROM account_holder h
		LEFT JOIN city c ON c.id = h.city_id
		WHERE h.document = $1`, document).
		Scan(&h.ID, &h.Document, &h.FullName, &h.CityID, &h.CityName)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// =========== Beneficiary Repository ===========

type beneficiaryRepoPG struct{ pool *pgxpool.Pool }

func NewBeneficiaryRepoPG(pool *pgxpool.Pool) BeneficiaryRepository {
	return &beneficiaryRepoPG{pool: pool}
}

const beneficiaryCols = `b.id, b.holder_id, b.document, b.full_name, b.city_id, c.name`

func (r *beneficiaryRepoPG) scan(row pgx.Row) (*Beneficiary, error) {
	var b Beneficiary
	err := row.Scan(&b.ID, &b.HolderID, &b.Document, &b.FullName, &b.CityID, &b.CityName)
	return &b, err
}

func (r *beneficiaryRepoPG) GetByDocument(ctx context.Context, document string) (*Beneficiary, error) {
	b, err := r.scan(connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT `+beneficiaryCols+`
		FROM beneficiary b
		LEFT JOIN city c ON c.id = b.city_id
		WHERE b.document = $1`, document))
	if err != nil {
		return nil, err
	}
	return b, nil
}

// =========== City Repository ===========

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching term anywhere in a name.
// LIKE metacharacters in term match literally.
func containsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}

type cityRepoPG struct{ pool *pgxpool.Pool }

func NewCityRepoPG(pool *pgxpool.Pool) CityRepository {
	return &cityRepoPG{pool: pool}
}

func (r *cityRepoPG) Search(ctx context.Context, term string, limit int) ([]*City, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT id, name FROM city
		WHERE unaccent(name) ILIKE unaccent($1) ESCAPE '\'
		ORDER BY name LIMIT $2`, containsPattern(term), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*City
	for rows.Next() {
		var c City
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		items = append(items, &c)
	}
	return items, rows.Err()
}

// =========== Specialty Repository ===========

type specialtyRepoPG struct{ pool *pgxpool.Pool }

func NewSpecialtyRepoPG(pool *pgxpool.Pool) SpecialtyRepository {
	return &specialtyRepoPG{pool: pool}
}

func (r *specialtyRepoPG) Search(ctx context.Context, term string, limit int) ([]*Specialty, error) {
	rows, err := connFor(ctx, r.pool).Query(ctx, `
		SELECT id, name FROM specialty
		WHERE unaccent(name) ILIKE unaccent($1) ESCAPE '\'
		ORDER BY name LIMIT $2`, containsPattern(term), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, rows.Err()
}
