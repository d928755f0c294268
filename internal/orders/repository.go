package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-books/internal/platform/db"
	"github.com/odyssey-erp/odyssey-books/internal/sequence"
)

// Repository provides PostgreSQL backed persistence for sales orders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	InsertOrder(ctx context.Context, order Order) (int64, error)
	LockOrder(ctx context.Context, id int64) (Order, error)
	SaveOrder(ctx context.Context, order Order) error
	ReplaceLines(ctx context.Context, orderID int64, lines []Line) error
	AppendHistory(ctx context.Context, change StatusChange) error
	Sequences() sequence.TxStore
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

// Get loads an order with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, id))
	if err != nil {
		return Order{}, err
	}
	order.Lines, err = loadLines(ctx, r.pool, id)
	return order, err
}

// History lists status changes of an order, oldest first.
func (r *Repository) History(ctx context.Context, orderID int64) ([]StatusChange, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, order_id, from_status, to_status, action, COALESCE(actor_id, 0), occurred_at
FROM order_status_history WHERE order_id = $1 ORDER BY occurred_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusChange
	for rows.Next() {
		var (
			c             StatusChange
			from, to, act string
		)
		if err := rows.Scan(&c.ID, &c.OrderID, &from, &to, &act, &c.ActorID, &c.OccurredAt); err != nil {
			return nil, err
		}
		c.From, c.To, c.Action = Status(from), Status(to), Action(act)
		out = append(out, c)
	}
	return out, rows.Err()
}

const selectOrder = `SELECT id, order_number, customer_id, status, currency, default_vat_rate, net_cents, vat_cents,
    gross_cents, COALESCE(payment_terms, ''), COALESCE(delivery_terms, ''), requested_delivery_date,
    COALESCE(notes, ''), COALESCE(created_by, 0), created_at, updated_at
FROM orders`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &status, &o.Currency, &o.DefaultVATRate,
		&o.NetCents, &o.VATCents, &o.GrossCents, &o.PaymentTerms, &o.DeliveryTerms,
		&o.RequestedDeliveryDate, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadLines(ctx context.Context, q querier, orderID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, line_no, product_id, description, quantity::text,
    unit_price_cents, discount_percent, discount_cents, vat_rate, net_cents, vat_cents, gross_cents
FROM order_lines WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNo, &l.ProductID, &l.Description, &l.Quantity,
			&l.UnitPriceCents, &l.DiscountPercent, &l.DiscountCents, &l.VATRate,
			&l.NetCents, &l.VATCents, &l.GrossCents); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *txRepo) Sequences() sequence.TxStore {
	return sequence.NewTxStore(r.tx)
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO orders
    (order_number, customer_id, status, currency, default_vat_rate, net_cents, vat_cents, gross_cents,
     payment_terms, delivery_terms, requested_delivery_date, notes, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14, $14)
RETURNING id`,
		o.OrderNumber, o.CustomerID, string(o.Status), o.Currency, o.DefaultVATRate,
		o.NetCents, o.VATCents, o.GrossCents, o.PaymentTerms, o.DeliveryTerms,
		o.RequestedDeliveryDate, o.Notes, o.CreatedBy, o.CreatedAt,
	).Scan(&id)
	return id, db.MissingReference(err)
}

func (r *txRepo) LockOrder(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.tx.QueryRow(ctx, selectOrder+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Order{}, err
	}
	order.Lines, err = loadLines(ctx, r.tx, id)
	return order, err
}

func (r *txRepo) SaveOrder(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE orders SET
    customer_id = $2, status = $3, currency = $4, default_vat_rate = $5, net_cents = $6, vat_cents = $7,
    gross_cents = $8, payment_terms = NULLIF($9, ''), delivery_terms = NULLIF($10, ''),
    requested_delivery_date = $11, notes = NULLIF($12, ''), updated_at = $13
WHERE id = $1`,
		o.ID, o.CustomerID, string(o.Status), o.Currency, o.DefaultVATRate, o.NetCents, o.VATCents,
		o.GrossCents, o.PaymentTerms, o.DeliveryTerms, o.RequestedDeliveryDate, o.Notes, o.UpdatedAt)
	if err != nil {
		return db.MissingReference(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepo) ReplaceLines(ctx context.Context, orderID int64, lines []Line) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, orderID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(`INSERT INTO order_lines
    (order_id, line_no, product_id, description, quantity, unit_price_cents, discount_percent,
     discount_cents, vat_rate, net_cents, vat_cents, gross_cents)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)`,
			orderID, l.LineNo, l.ProductID, l.Description, l.Quantity, l.UnitPriceCents,
			l.DiscountPercent, l.DiscountCents, l.VATRate, l.NetCents, l.VATCents, l.GrossCents)
	}
	if batch.Len() == 0 {
		return nil
	}
	return db.MissingReference(r.tx.SendBatch(ctx, batch).Close())
}

func (r *txRepo) AppendHistory(ctx context.Context, c StatusChange) error {
	var actor *int64
	if c.ActorID != 0 {
		actor = &c.ActorID
	}
	_, err := r.tx.Exec(ctx, `INSERT INTO order_status_history (order_id, from_status, to_status, action, actor_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)`, c.OrderID, string(c.From), string(c.To), string(c.Action), actor, c.OccurredAt)
	return err
}
