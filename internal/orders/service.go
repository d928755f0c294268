package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/money"
	"github.com/odyssey-erp/odyssey-books/internal/observability"
	"github.com/odyssey-erp/odyssey-books/internal/sequence"
	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	History(ctx context.Context, orderID int64) ([]StatusChange, error)
}

// NumberAllocator reserves order numbers inside an open transaction.
type NumberAllocator interface {
	ReserveNextNumber(ctx context.Context, store sequence.TxStore, key string, now time.Time) (sequence.Reservation, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the sales order lifecycle.
type Service struct {
	repo    RepositoryPort
	numbers NumberAllocator
	audit   AuditPort
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, numbers NumberAllocator, audit AuditPort, metrics *observability.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		numbers: numbers,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// History returns the status changes of an order.
func (s *Service) History(ctx context.Context, id int64) ([]StatusChange, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// CreateDraft stores a new draft order.
func (s *Service) CreateDraft(ctx context.Context, input CreateDraftInput) (Order, error) {
	if err := shared.ValidateStruct(input); err != nil {
		return Order{}, err
	}
	currency, err := shared.NormalizeCurrency(input.Currency)
	if err != nil {
		return Order{}, err
	}
	rate, err := normalizeDefaultRate(input.DefaultVATRate)
	if err != nil {
		return Order{}, err
	}
	now := s.now()
	order := Order{
		CustomerID:            input.CustomerID,
		Status:                StatusDraft,
		Currency:              currency,
		DefaultVATRate:        rate,
		PaymentTerms:          strings.TrimSpace(input.PaymentTerms),
		DeliveryTerms:         strings.TrimSpace(input.DeliveryTerms),
		RequestedDeliveryDate: input.RequestedDeliveryDate,
		Notes:                 strings.TrimSpace(input.Notes),
		CreatedBy:             input.ActorID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := applyLines(&order, input.Lines); err != nil {
		return Order{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res, err := s.numbers.ReserveNextNumber(ctx, tx.Sequences(), sequence.KeySalesOrder, now)
		if err != nil {
			return err
		}
		order.OrderNumber = res.Formatted
		id, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		for i := range order.Lines {
			order.Lines[i].OrderID = id
		}
		return tx.ReplaceLines(ctx, id, order.Lines)
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, input.ActorID, "order:create", order, nil)
	return order, nil
}

// UpdateDraft edits a draft order. Any other state only changes through Transition.
func (s *Service) UpdateDraft(ctx context.Context, id int64, patch UpdateDraftInput) (Order, error) {
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !order.Status.CanEdit() {
			return fmt.Errorf("%w: order %s is %s", ErrImmutableOrder, order.OrderNumber, order.Status)
		}
		if err := applyPatch(&order, patch); err != nil {
			return err
		}
		order.UpdatedAt = s.now()
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		if patch.Lines != nil {
			return tx.ReplaceLines(ctx, order.ID, order.Lines)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, patch.ActorID, "order:update", order, nil)
	return order, nil
}

// Transition applies a named action to an order.
func (s *Service) Transition(ctx context.Context, id int64, action Action, actorID int64) (Order, error) {
	var (
		order Order
		from  Status
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		from = order.Status
		target, ok := from.Next(action)
		if !ok {
			return fmt.Errorf("%w: cannot %s order in status %s", ErrInvalidTransition, action, from)
		}
		now := s.now()
		order.Status = target
		order.UpdatedAt = now
		if err := tx.SaveOrder(ctx, order); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, StatusChange{
			OrderID:    order.ID,
			From:       from,
			To:         target,
			Action:     action,
			ActorID:    actorID,
			OccurredAt: now,
		})
	})
	if err != nil {
		return Order{}, err
	}
	s.metrics.OrderTransition(string(action))
	s.record(ctx, actorID, "order:"+string(action), order, map[string]any{
		"from": string(from),
		"to":   string(order.Status),
	})
	return order, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, order Order, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["order_number"] = order.OrderNumber
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", order.ID),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("order audit failed", slog.Int64("order_id", order.ID), slog.String("action", action), slog.Any("error", err))
	}
}

func applyPatch(order *Order, patch UpdateDraftInput) error {
	if err := shared.ValidateStruct(patch); err != nil {
		return err
	}
	if patch.CustomerID != nil {
		order.CustomerID = *patch.CustomerID
	}
	if patch.Currency != nil {
		currency, err := shared.NormalizeCurrency(*patch.Currency)
		if err != nil {
			return err
		}
		order.Currency = currency
	}
	if patch.DefaultVATRate != nil {
		rate, err := normalizeDefaultRate(*patch.DefaultVATRate)
		if err != nil {
			return err
		}
		order.DefaultVATRate = rate
	}
	if patch.PaymentTerms != nil {
		order.PaymentTerms = strings.TrimSpace(*patch.PaymentTerms)
	}
	if patch.DeliveryTerms != nil {
		order.DeliveryTerms = strings.TrimSpace(*patch.DeliveryTerms)
	}
	if patch.RequestedDeliveryDate != nil {
		order.RequestedDeliveryDate = patch.RequestedDeliveryDate
	}
	if patch.Notes != nil {
		order.Notes = strings.TrimSpace(*patch.Notes)
	}
	if patch.Lines != nil {
		return applyLines(order, *patch.Lines)
	}
	return recompute(order)
}

func applyLines(order *Order, inputs []LineInput) error {
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		if err := shared.ValidateStruct(in); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		lines = append(lines, Line{
			OrderID:         order.ID,
			LineNo:          i + 1,
			ProductID:       in.ProductID,
			Description:     strings.TrimSpace(in.Description),
			Quantity:        strings.TrimSpace(in.Quantity),
			UnitPriceCents:  in.UnitPriceCents,
			DiscountPercent: strings.TrimSpace(in.DiscountPercent),
			DiscountCents:   in.DiscountCents,
			VATRate:         strings.TrimSpace(in.VATRate),
		})
	}
	order.Lines = lines
	return recompute(order)
}

func recompute(order *Order) error {
	inputs := make([]money.Line, len(order.Lines))
	for i, l := range order.Lines {
		inputs[i] = money.Line{
			Quantity:        l.Quantity,
			UnitPriceCents:  l.UnitPriceCents,
			DiscountPercent: l.DiscountPercent,
			DiscountCents:   l.DiscountCents,
			VATRate:         l.VATRate,
		}
	}
	totals, err := money.ComputeLines(inputs, money.LineOptions{DefaultVATRate: order.DefaultVATRate})
	if err != nil {
		return err
	}
	for i, t := range totals {
		order.Lines[i].NetCents = t.NetCents
		order.Lines[i].VATCents = t.VATCents
		order.Lines[i].GrossCents = t.GrossCents
	}
	summary := money.SummariseDocumentTotals(totals)
	order.NetCents, order.VATCents, order.GrossCents = summary.NetCents, summary.VATCents, summary.GrossCents
	return nil
}

func normalizeDefaultRate(rate string) (string, error) {
	if strings.TrimSpace(rate) == "" {
		return "0", nil
	}
	norm, err := money.NormalizeRate(rate)
	if err != nil {
		return "", fmt.Errorf("default vat rate: %w", err)
	}
	return norm, nil
}
