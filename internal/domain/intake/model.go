package intake

import (
	"time"

	"github.com/google/uuid"
)

const (
	PersonHolder    = "holder"
	PersonDependent = "dependent"

	StatusPending = "pending"
)

// Request is an appointment booking request captured by the intake flow.
type Request struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RequesterID   string    `db:"requester_id" json:"requester_id"`
	PersonID      string    `db:"person_id" json:"person_id"`
	PersonKind    string    `db:"person_kind" json:"person_kind"`
	CityID        string    `db:"city_id" json:"city_id"`
	CityName      string    `db:"city_name" json:"city_name,omitempty"`
	SpecialtyID   string    `db:"specialty_id" json:"specialty_id"`
	SpecialtyName string    `db:"specialty_name" json:"specialty_name,omitempty"`
	FirstTime     bool      `db:"first_time" json:"first_time"`
	Control       bool      `db:"control" json:"control"`
	Description   string    `db:"description" json:"description"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
