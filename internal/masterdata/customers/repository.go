package customers

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/masterdata"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const customerColumns = `id, code, name, COALESCE(email, ''), COALESCE(phone, ''), COALESCE(tax_id, ''), country,
payment_terms_days, credit_limit_cents, COALESCE(notes, ''), is_active, row_version, created_by, created_at, updated_at`

type Repository interface {
	List(ctx context.Context, filters masterdata.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, in CreateInput) (Customer, error)
	// Update applies in when the stored row_version equals *in.RowVersion.
	Update(ctx context.Context, id int64, in UpdateInput) (Customer, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters masterdata.ListFilters) ([]Customer, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	args = append(args, filters.Limit, filters.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("%w: customer %d", shared.ErrNotFound, id)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Customer, error) {
	var actor any
	if in.ActorID > 0 {
		actor = in.ActorID
	}
	c, err := scanCustomer(r.db.QueryRow(ctx, `INSERT INTO customers
(code, name, email, phone, tax_id, country, payment_terms_days, credit_limit_cents, notes, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+customerColumns,
		in.Code, in.Name, masterdata.NullIfEmpty(in.Email), masterdata.NullIfEmpty(in.Phone),
		masterdata.NullIfEmpty(in.TaxID), in.Country, in.PaymentTermsDays, in.CreditLimitCents,
		masterdata.NullIfEmpty(in.Notes), actor))
	if masterdata.IsUniqueViolation(err) {
		return Customer{}, fmt.Errorf("%w: customer code %q", masterdata.ErrDuplicate, in.Code)
	}
	return c, err
}

func (r *repository) Update(ctx context.Context, id int64, in UpdateInput) (Customer, error) {
	var set masterdata.Assignments
	if in.Code != nil {
		set.Set("code", *in.Code)
	}
	if in.Name != nil {
		set.Set("name", *in.Name)
	}
	if in.Email != nil {
		set.Set("email", masterdata.NullIfEmpty(*in.Email))
	}
	if in.Phone != nil {
		set.Set("phone", masterdata.NullIfEmpty(*in.Phone))
	}
	if in.TaxID != nil {
		set.Set("tax_id", masterdata.NullIfEmpty(*in.TaxID))
	}
	if in.Country != nil {
		set.Set("country", *in.Country)
	}
	if in.PaymentTermsDays != nil {
		set.Set("payment_terms_days", *in.PaymentTermsDays)
	}
	if in.CreditLimitCents != nil {
		set.Set("credit_limit_cents", *in.CreditLimitCents)
	}
	if in.Notes != nil {
		set.Set("notes", masterdata.NullIfEmpty(*in.Notes))
	}
	if in.IsActive != nil {
		set.Set("is_active", *in.IsActive)
	}

	query, args := set.VersionedUpdate("customers", id, *in.RowVersion, customerColumns)
	c, err := scanCustomer(r.db.QueryRow(ctx, query, args...))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Customer{}, masterdata.ClassifyMiss(ctx, r.db, "customers", id)
	case masterdata.IsUniqueViolation(err):
		return Customer{}, fmt.Errorf("%w: customer code %q", masterdata.ErrDuplicate, *in.Code)
	}
	return c, err
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.TaxID, &c.Country,
		&c.PaymentTermsDays, &c.CreditLimitCents, &c.Notes, &c.IsActive, &c.RowVersion,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == masterdata.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "name":
		return "name " + dir
	case "updated_at":
		return "updated_at " + dir + ", id " + dir
	default:
		return "id " + dir
	}
}
