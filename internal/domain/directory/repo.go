package directory

import "context"

type HolderRepository interface {
	GetByDocument(ctx context.Context, document string) (*Holder, error)
}

type BeneficiaryRepository interface {
	GetByDocument(ctx context.Context, document string) (*Beneficiary, error)
}

type CityRepository interface {
	Search(ctx context.Context, term string, limit int) ([]*City, error)
}

type SpecialtyRepository interface {
	Search(ctx context.Context, term string, limit int) ([]*Specialty, error)
}
