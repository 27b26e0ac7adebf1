package directory

// Holder is a primary account holder of a benefits plan.
type Holder struct {
	ID       string  `db:"id" json:"id"`
	Document string  `db:"document" json:"document"`
	FullName string  `db:"full_name" json:"full_name"`
	CityID   *string `db:"city_id" json:"city_id,omitempty"`
	CityName *string `db:"city_name" json:"city_name,omitempty"`
}

// Beneficiary is a dependent covered under a holder's plan.
type Beneficiary struct {
	ID       string  `db:"id" json:"id"`
	HolderID string  `db:"holder_id" json:"holder_id"`
	Document string  `db:"document" json:"document"`
	FullName string  `db:"full_name" json:"full_name"`
	CityID   *string `db:"city_id" json:"city_id,omitempty"`
	CityName *string `db:"city_name" json:"city_name,omitempty"`
}

type City struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Specialty struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}
