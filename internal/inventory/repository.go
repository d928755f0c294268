package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the movement ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LockDocument(ctx context.Context, id int64) error
	LockOrder(ctx context.Context, id int64) error
	LockProduct(ctx context.Context, id int64) error
	HasOutboundShipment(ctx context.Context, documentID int64) (bool, error)
	StockOf(ctx context.Context, productID int64) (decimal.Decimal, error)
	InsertMovements(ctx context.Context, movements []Movement) ([]Movement, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// Snapshot sums the ledger for productID.
func (r *Repository) Snapshot(ctx context.Context, productID int64) (Snapshot, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return Snapshot{}, err
	}
	if !exists {
		return Snapshot{}, ErrProductNotFound
	}
	onHand, err := sumStock(ctx, r.pool, productID, time.Time{})
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{ProductID: productID, OnHand: onHand}, nil
}

// StockBefore sums the ledger for productID up to, but excluding, t.
func (r *Repository) StockBefore(ctx context.Context, productID int64, t time.Time) (decimal.Decimal, error) {
	return sumStock(ctx, r.pool, productID, t)
}

// ListMovements returns movements in ledger order.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	var (
		clauses = []string{"product_id = $1"}
		args    = []any{filter.ProductID}
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	args = append(args, filter.Limit)
	query := selectMovement + ` WHERE ` + strings.Join(clauses, " AND ") +
		fmt.Sprintf(` ORDER BY created_at, id LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *txRepo) lockRow(ctx context.Context, query string, id int64) error {
	var locked int64
	err := r.tx.QueryRow(ctx, query, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func (r *txRepo) LockDocument(ctx context.Context, id int64) error {
	return r.lockRow(ctx, `SELECT id FROM documents WHERE id = $1 FOR UPDATE`, id)
}

func (r *txRepo) LockOrder(ctx context.Context, id int64) error {
	return r.lockRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *txRepo) LockProduct(ctx context.Context, id int64) error {
	return r.lockRow(ctx, `SELECT id FROM products WHERE id = $1 FOR UPDATE`, id)
}

func (r *txRepo) HasOutboundShipment(ctx context.Context, documentID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (
    SELECT 1 FROM inventory_movements
    WHERE document_id = $1 AND movement_type = 'shipment' AND direction = 'out')`, documentID).Scan(&exists)
	return exists, err
}

func (r *txRepo) StockOf(ctx context.Context, productID int64) (decimal.Decimal, error) {
	return sumStock(ctx, r.tx, productID, time.Time{})
}

func (r *txRepo) InsertMovements(ctx context.Context, movements []Movement) ([]Movement, error) {
	out := make([]Movement, 0, len(movements))
	for _, m := range movements {
		err := r.tx.QueryRow(ctx, `INSERT INTO inventory_movements
    (batch_id, product_id, document_id, order_id, movement_type, direction, quantity,
     unit_cost_cents, currency, lot, location, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`,
			m.BatchID.String(), m.ProductID, m.DocumentID, m.OrderID, string(m.Type), string(m.Direction),
			m.Quantity.String(), m.UnitCostCents, nullString(m.Currency), nullString(m.Lot),
			nullString(m.Location), nullString(m.Notes), nullInt(m.CreatedBy), m.CreatedAt,
		).Scan(&m.ID)
		if err != nil {
			return nil, fmt.Errorf("inventory: insert movement for product %d: %w", m.ProductID, db.MissingReference(err))
		}
		out = append(out, m)
	}
	return out, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func sumStock(ctx context.Context, q querier, productID int64, before time.Time) (decimal.Decimal, error) {
	var (
		total pgtype.Numeric
		err   error
	)
	const sum = `SELECT COALESCE(SUM(CASE WHEN direction = 'in' THEN quantity ELSE -quantity END), 0)
FROM inventory_movements WHERE product_id = $1`
	if before.IsZero() {
		err = q.QueryRow(ctx, sum, productID).Scan(&total)
	} else {
		err = q.QueryRow(ctx, sum+` AND created_at < $2`, productID, before).Scan(&total)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(total)
}

const selectMovement = `SELECT id, batch_id::text, product_id, document_id, order_id, movement_type, direction,
    quantity, unit_cost_cents, COALESCE(currency, ''), COALESCE(lot, ''), COALESCE(location, ''),
    COALESCE(notes, ''), COALESCE(created_by, 0), created_at
FROM inventory_movements`

func scanMovement(row pgx.Row) (Movement, error) {
	var (
		m        Movement
		batchID  string
		mType    string
		dir      string
		quantity pgtype.Numeric
	)
	if err := row.Scan(&m.ID, &batchID, &m.ProductID, &m.DocumentID, &m.OrderID, &mType, &dir,
		&quantity, &m.UnitCostCents, &m.Currency, &m.Lot, &m.Location, &m.Notes, &m.CreatedBy, &m.CreatedAt); err != nil {
		return Movement{}, err
	}
	id, err := uuid.Parse(batchID)
	if err != nil {
		return Movement{}, fmt.Errorf("inventory: batch id: %w", err)
	}
	qty, err := numericToDecimal(quantity)
	if err != nil {
		return Movement{}, err
	}
	m.BatchID, m.Type, m.Direction, m.Quantity = id, MovementType(mType), Direction(dir), qty
	return m, nil
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid {
		return decimal.Zero, nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return decimal.Zero, errors.New("inventory: non-finite quantity")
	}
	if n.Int == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullInt(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
