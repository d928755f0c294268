package customers

import (
	"strings"
	"time"
)

// Customer is a billable party. RowVersion increments on every update.
type Customer struct {
	ID               int64     `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	TaxID            string    `json:"tax_id,omitempty"`
	Country          string    `json:"country"`
	PaymentTermsDays int       `json:"payment_terms_days"`
	CreditLimitCents int64     `json:"credit_limit_cents"`
	Notes            string    `json:"notes,omitempty"`
	IsActive         bool      `json:"is_active"`
	RowVersion       int64     `json:"row_version"`
	CreatedBy        *int64    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateInput carries a new customer.
type CreateInput struct {
	Code             string `validate:"required,max=32"`
	Name             string `validate:"required,max=200"`
	Email            string `validate:"omitempty,email,max=254"`
	Phone            string `validate:"max=50"`
	TaxID            string `validate:"max=50"`
	Country          string `validate:"required,iso3166_1_alpha2"`
	PaymentTermsDays int    `validate:"gte=0,lte=365"`
	CreditLimitCents int64  `validate:"gte=0"`
	Notes            string `validate:"max=2000"`
	ActorID          int64
}

// UpdateInput is a partial update: nil fields are left untouched.
// RowVersion must carry the version the caller last read.
type UpdateInput struct {
	RowVersion       *int64
	Code             *string `validate:"omitnil,min=1,max=32"`
	Name             *string `validate:"omitnil,min=1,max=200"`
	Email            *string `validate:"omitempty,email,max=254"`
	Phone            *string `validate:"omitnil,max=50"`
	TaxID            *string `validate:"omitnil,max=50"`
	Country          *string `validate:"omitnil,iso3166_1_alpha2"`
	PaymentTermsDays *int    `validate:"omitnil,gte=0,lte=365"`
	CreditLimitCents *int64  `validate:"omitnil,gte=0"`
	Notes            *string `validate:"omitnil,max=2000"`
	IsActive         *bool
}

func (in UpdateInput) empty() bool {
	return in.Code == nil && in.Name == nil && in.Email == nil && in.Phone == nil &&
		in.TaxID == nil && in.Country == nil && in.PaymentTermsDays == nil &&
		in.CreditLimitCents == nil && in.Notes == nil && in.IsActive == nil
}

func (in *CreateInput) normalize() {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Country = strings.ToUpper(strings.TrimSpace(in.Country))
}

func (in *UpdateInput) normalize() {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	in.Code = trim(in.Code)
	in.Name = trim(in.Name)
	in.Email = trim(in.Email)
	if in.Country != nil {
		v := strings.ToUpper(strings.TrimSpace(*in.Country))
		in.Country = &v
	}
}
