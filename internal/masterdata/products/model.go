package products

import (
	"strings"
	"time"
)

// Product is a sellable item. UnitPriceCents is the net list price.
type Product struct {
	ID             int64     `json:"id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Unit           string    `json:"unit"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	VATRate        string    `json:"vat_rate"`
	IsActive       bool      `json:"is_active"`
	RowVersion     int64     `json:"row_version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// CreateInput carries a new product. UnitPrice is a decimal string ("12.50").
type CreateInput struct {
	SKU         string `validate:"required,max=64"`
	Name        string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	Unit        string `validate:"max=16"`
	UnitPrice   string `validate:"required"`
	VATRate     string

	unitPriceCents int64
}

// UpdateInput is a partial update guarded by RowVersion.
type UpdateInput struct {
	RowVersion  *int64
	SKU         *string `validate:"omitnil,min=1,max=64"`
	Name        *string `validate:"omitnil,min=1,max=200"`
	Description *string `validate:"omitnil,max=2000"`
	Unit        *string `validate:"omitnil,min=1,max=16"`
	UnitPrice   *string
	VATRate     *string
	IsActive    *bool

	unitPriceCents *int64
}

func (in UpdateInput) empty() bool {
	return in.SKU == nil && in.Name == nil && in.Description == nil && in.Unit == nil &&
		in.UnitPrice == nil && in.VATRate == nil && in.IsActive == nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
