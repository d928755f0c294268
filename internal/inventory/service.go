package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-books/internal/money"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

const defaultCardLimit = 500

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Snapshot(ctx context.Context, productID int64) (Snapshot, error)
	StockBefore(ctx context.Context, productID int64, t time.Time) (decimal.Decimal, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the movement ledger. No other path writes movements.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
	batchID func() uuid.UUID
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		batchID: uuid.New,
	}
}

// GetStockSnapshot derives current stock from the ledger.
func (s *Service) GetStockSnapshot(ctx context.Context, productID int64) (Snapshot, error) {
	if productID <= 0 {
		return Snapshot{}, ErrProductNotFound
	}
	snap, err := s.repo.Snapshot(ctx, productID)
	if err != nil {
		return Snapshot{}, err
	}
	snap.At = s.now()
	return snap, nil
}

// PostShipment writes one outbound movement per line for a delivery document.
// The batch is all-or-none: any failing line rolls back every line.
func (s *Service) PostShipment(ctx context.Context, input ShipmentInput) (PostingResult, error) {
	var result PostingResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockDocument(ctx, input.DocumentID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrDocumentNotFound, input.DocumentID)
			}
			return err
		}
		if input.OrderID != nil {
			if err := tx.LockOrder(ctx, *input.OrderID); err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					return fmt.Errorf("%w: id %d", ErrOrderNotFound, *input.OrderID)
				}
				return err
			}
		}
		posted, err := tx.HasOutboundShipment(ctx, input.DocumentID)
		if err != nil {
			return err
		}
		if posted {
			return fmt.Errorf("%w: document %d", ErrShipmentAlreadyPosted, input.DocumentID)
		}

		quantities, err := parseShipmentLines(input.Lines)
		if err != nil {
			return err
		}
		if err := s.guardStock(ctx, tx, sumByProduct(input.Lines, quantities)); err != nil {
			return err
		}

		batch := s.batchID()
		now := s.now()
		rows := make([]Movement, 0, len(input.Lines))
		for i, line := range input.Lines {
			docID := input.DocumentID
			rows = append(rows, Movement{
				BatchID:    batch,
				ProductID:  line.ProductID,
				DocumentID: &docID,
				OrderID:    input.OrderID,
				Type:       MovementShipment,
				Direction:  DirectionOut,
				Quantity:   quantities[i],
				Lot:        strings.TrimSpace(line.Lot),
				Location:   strings.TrimSpace(line.Location),
				Notes:      strings.TrimSpace(line.Notes),
				CreatedAt:  now,
				CreatedBy:  input.ActorID,
			})
		}
		written, err := tx.InsertMovements(ctx, rows)
		if err != nil {
			return err
		}
		result = PostingResult{BatchID: batch, Movements: written}
		return nil
	})
	if err != nil {
		s.metrics.InventoryRejected(string(shared.CodeOf(err)))
		return PostingResult{}, err
	}
	s.afterPosting(ctx, MovementShipment, input.ActorID, result, map[string]any{"document_id": input.DocumentID})
	return result, nil
}

// PostReceipt writes an inbound movement.
func (s *Service) PostReceipt(ctx context.Context, input ReceiptInput) (PostingResult, error) {
	mType := input.Type
	if mType == "" {
		mType = MovementReceipt
	}
	switch mType {
	case MovementReceipt, MovementProduction, MovementReturn:
	default:
		return PostingResult{}, fmt.Errorf("%w: %q is not an inbound movement type", ErrInvalidLine, mType)
	}
	if input.ProductID <= 0 {
		return PostingResult{}, fmt.Errorf("%w: product required", ErrInvalidLine)
	}
	qty, err := money.ParseQuantity(input.Quantity)
	if err != nil {
		return PostingResult{}, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	if input.UnitCostCents != nil && *input.UnitCostCents < 0 {
		return PostingResult{}, fmt.Errorf("%w: negative unit cost", ErrInvalidLine)
	}
	currency := ""
	if input.Currency != "" {
		if currency, err = shared.NormalizeCurrency(input.Currency); err != nil {
			return PostingResult{}, err
		}
	}

	movement := Movement{
		ProductID:     input.ProductID,
		DocumentID:    input.DocumentID,
		OrderID:       input.OrderID,
		Type:          mType,
		Direction:     DirectionIn,
		Quantity:      qty.Decimal(),
		UnitCostCents: input.UnitCostCents,
		Currency:      currency,
		Lot:           strings.TrimSpace(input.Lot),
		Location:      strings.TrimSpace(input.Location),
		Notes:         strings.TrimSpace(input.Notes),
		CreatedBy:     input.ActorID,
	}
	return s.postSingle(ctx, movement, false)
}

// PostAdjustment corrects stock by a signed quantity. Negative adjustments
// are guarded like shipments.
func (s *Service) PostAdjustment(ctx context.Context, input AdjustmentInput) (PostingResult, error) {
	if input.ProductID <= 0 {
		return PostingResult{}, fmt.Errorf("%w: product required", ErrInvalidLine)
	}
	raw := strings.TrimSpace(input.Quantity)
	direction := DirectionIn
	if strings.HasPrefix(raw, "-") {
		direction = DirectionOut
		raw = strings.TrimPrefix(raw, "-")
	} else {
		raw = strings.TrimPrefix(raw, "+")
	}
	qty, err := money.ParseQuantity(raw)
	if err != nil {
		return PostingResult{}, fmt.Errorf("%w: %v", ErrInvalidLine, err)
	}
	movement := Movement{
		ProductID: input.ProductID,
		Type:      MovementAdjustment,
		Direction: direction,
		Quantity:  qty.Decimal(),
		Lot:       strings.TrimSpace(input.Lot),
		Location:  strings.TrimSpace(input.Location),
		Notes:     strings.TrimSpace(input.Notes),
		CreatedBy: input.ActorID,
	}
	return s.postSingle(ctx, movement, direction == DirectionOut)
}

// ListMovements returns the stock card for a product with running balances.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]StockCardEntry, error) {
	if filter.ProductID <= 0 {
		return nil, ErrProductNotFound
	}
	if filter.Limit <= 0 || filter.Limit > defaultCardLimit {
		filter.Limit = defaultCardLimit
	}
	balance := decimal.Zero
	if !filter.From.IsZero() {
		opening, err := s.repo.StockBefore(ctx, filter.ProductID, filter.From)
		if err != nil {
			return nil, err
		}
		balance = opening
	}
	movements, err := s.repo.ListMovements(ctx, filter)
	if err != nil {
		return nil, err
	}
	card := make([]StockCardEntry, 0, len(movements))
	for _, m := range movements {
		balance = balance.Add(m.Signed())
		card = append(card, StockCardEntry{Movement: m, Balance: balance})
	}
	return card, nil
}

func (s *Service) postSingle(ctx context.Context, movement Movement, guard bool) (PostingResult, error) {
	var result PostingResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if guard {
			if err := s.guardStock(ctx, tx, map[int64]decimal.Decimal{movement.ProductID: movement.Quantity}); err != nil {
				return err
			}
		} else if err := s.lockProduct(ctx, tx, movement.ProductID); err != nil {
			return err
		}
		movement.BatchID = s.batchID()
		movement.CreatedAt = s.now()
		written, err := tx.InsertMovements(ctx, []Movement{movement})
		if err != nil {
			return err
		}
		result = PostingResult{BatchID: movement.BatchID, Movements: written}
		return nil
	})
	if err != nil {
		s.metrics.InventoryRejected(string(shared.CodeOf(err)))
		return PostingResult{}, err
	}
	s.afterPosting(ctx, movement.Type, movement.CreatedBy, result, map[string]any{
		"product_id": movement.ProductID,
		"direction":  string(movement.Direction),
		"quantity":   movement.Quantity.String(),
	})
	return result, nil
}

// guardStock locks every product in ascending id order, then compares the
// requested outbound quantity against stock re-read under the lock.
func (s *Service) guardStock(ctx context.Context, tx TxRepository, outbound map[int64]decimal.Decimal) error {
	ids := make([]int64, 0, len(outbound))
	for id := range outbound {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := s.lockProduct(ctx, tx, id); err != nil {
			return err
		}
		stock, err := tx.StockOf(ctx, id)
		if err != nil {
			return err
		}
		if requested := outbound[id]; requested.GreaterThan(stock) {
			return fmt.Errorf("%w: product %d has %s, requested %s", ErrNegativeStock, id, stock.String(), requested.String())
		}
	}
	return nil
}

func (s *Service) lockProduct(ctx context.Context, tx TxRepository, id int64) error {
	if err := tx.LockProduct(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: product %d not found", ErrInvalidLine, id)
		}
		return err
	}
	return nil
}

func (s *Service) afterPosting(ctx context.Context, mType MovementType, actorID int64, result PostingResult, meta map[string]any) {
	s.metrics.InventoryMovements(string(mType), len(result.Movements))
	if s.audit == nil {
		return
	}
	meta["movements"] = len(result.Movements)
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("inventory:%s", mType),
		Entity:   "inventory_batch",
		EntityID: result.BatchID.String(),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("inventory audit failed", slog.String("batch_id", result.BatchID.String()), slog.Any("error", err))
	}
}

func parseShipmentLines(lines []ShipmentLine) ([]decimal.Decimal, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: shipment has no lines", ErrInvalidLine)
	}
	out := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			return nil, fmt.Errorf("%w: line %d has no product", ErrInvalidLine, i+1)
		}
		qty, err := money.ParseQuantity(line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidLine, i+1, err)
		}
		out[i] = qty.Decimal()
	}
	return out, nil
}

func sumByProduct(lines []ShipmentLine, quantities []decimal.Decimal) map[int64]decimal.Decimal {
	totals := make(map[int64]decimal.Decimal, len(lines))
	for i, line := range lines {
		totals[line.ProductID] = totals[line.ProductID].Add(quantities[i])
	}
	return totals
}
