package products

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

const productColumns = `id, sku, name, COALESCE(description, ''), unit, unit_price_cents, vat_rate, is_active, row_version, created_at, updated_at`

type Repository interface {
	List(ctx context.Context, filters masterdata.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, in CreateInput) (Product, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Product, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, filters masterdata.ListFilters) ([]Product, int, error) {
	where := ` WHERE 1=1`
	args := []any{}

	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR sku ILIKE $` + n + `)`
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		where += ` AND is_active = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	args = append(args, filters.Limit, filters.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, fmt.Errorf("%w: product %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, in CreateInput) (Product, error) {
	p, err := scanProduct(r.db.QueryRow(ctx, `INSERT INTO products (sku, name, description, unit, unit_price_cents, vat_rate)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+productColumns,
		in.SKU, in.Name, masterdata.NullIfEmpty(in.Description), in.Unit, in.unitPriceCents, in.VATRate))
	if masterdata.IsUniqueViolation(err) {
		return Product{}, fmt.Errorf("%w: sku %q", masterdata.ErrDuplicate, in.SKU)
	}
	return p, err
}

func (r *repository) Update(ctx context.Context, id int64, in UpdateInput) (Product, error) {
	var set masterdata.Assignments
	if in.SKU != nil {
		set.Set("sku", *in.SKU)
	}
	if in.Name != nil {
		set.Set("name", *in.Name)
	}
	if in.Description != nil {
		set.Set("description", masterdata.NullIfEmpty(*in.Description))
	}
	if in.Unit != nil {
		set.Set("unit", *in.Unit)
	}
	if in.unitPriceCents != nil {
		set.Set("unit_price_cents", *in.unitPriceCents)
	}
	if in.VATRate != nil {
		set.Set("vat_rate", *in.VATRate)
	}
	if in.IsActive != nil {
		set.Set("is_active", *in.IsActive)
	}

	query, args := set.VersionedUpdate("products", id, *in.RowVersion, productColumns)
	p, err := scanProduct(r.db.QueryRow(ctx, query, args...))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Product{}, masterdata.ClassifyMiss(ctx, r.db, "products", id)
	case masterdata.IsUniqueViolation(err):
		return Product{}, fmt.Errorf("%w: sku %q", masterdata.ErrDuplicate, *in.SKU)
	}
	return p, err
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Unit, &p.UnitPriceCents, &p.VATRate,
		&p.IsActive, &p.RowVersion, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == masterdata.SortDesc {
		dir = "DESC"
	}
	switch sortBy {
	case "sku":
		return "sku " + dir
	case "name":
		return "name " + dir
	case "price":
		return "unit_price_cents " + dir + ", id " + dir
	default:
		return "id " + dir
	}
}
