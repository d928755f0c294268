// Package masterdata holds the pieces shared by the customer and product
// repositories: list filters, the version-stamped update builder and the
// classification of zero-row updates.
package masterdata

import (
	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const (
	// DefaultLimit applies when a list request carries no limit.
	DefaultLimit = 50
	// MaxLimit caps a single list page.
	MaxLimit = 500

	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	SortBy   string
	SortDir  string
	IsActive *bool
}

// Normalize clamps paging values.
func (f ListFilters) Normalize() ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.SortDir != SortDesc {
		f.SortDir = SortAsc
	}
	return f
}

// Offset returns the row offset of the requested page.
func (f ListFilters) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

var (
	// ErrDuplicate reports a unique key (code, sku) already in use.
	ErrDuplicate = shared.NewError(shared.CodeDuplicate, "duplicate entry")
	// ErrEmptyPatch reports an update that changes nothing.
	ErrEmptyPatch = shared.NewError(shared.CodeInvalidInput, "update changes no fields")
)

// IsUniqueViolation reports whether err is a postgres unique_violation.
func IsUniqueViolation(err error) bool {
	return db.IsUniqueViolation(err)
}
