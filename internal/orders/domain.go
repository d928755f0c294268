package orders

import (
	"time"

	"github.com/odyssey-erp/odyssey-books/internal/shared"
)

// Status enumerates sales order states.
type Status string

const (
	StatusDraft        Status = "draft"
	StatusConfirmed    Status = "confirmed"
	StatusInProduction Status = "in_production"
	StatusReadyToShip  Status = "ready_to_ship"
	StatusShipped      Status = "shipped"
	StatusInvoiced     Status = "invoiced"
	StatusClosed       Status = "closed"
	StatusCancelled    Status = "cancelled"
)

// Action names a lifecycle transition.
type Action string

const (
	ActionConfirm         Action = "confirm"
	ActionStartProduction Action = "start_production"
	ActionMarkReady       Action = "mark_ready"
	ActionShip            Action = "ship"
	ActionInvoice         Action = "invoice"
	ActionClose           Action = "close"
	ActionCancel          Action = "cancel"
)

var transitions = map[Status]map[Action]Status{
	StatusDraft: {
		ActionConfirm: StatusConfirmed,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionStartProduction: StatusInProduction,
		ActionMarkReady:       StatusReadyToShip,
		ActionCancel:          StatusCancelled,
	},
	StatusInProduction: {
		ActionMarkReady: StatusReadyToShip,
		ActionCancel:    StatusCancelled,
	},
	StatusReadyToShip: {ActionShip: StatusShipped},
	StatusShipped:     {ActionInvoice: StatusInvoiced},
	StatusInvoiced:    {ActionClose: StatusClosed},
}

// Next returns the state reached from s by action.
func (s Status) Next(action Action) (Status, bool) {
	target, ok := transitions[s][action]
	return target, ok
}

// CanTransitionTo reports whether target is a direct successor of s.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no action leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// CanEdit reports whether fields may be edited directly.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// Line is one priced order line.
type Line struct {
	ID              int64
	OrderID         int64
	LineNo          int
	ProductID       *int64
	Description     string
	Quantity        string
	UnitPriceCents  int64
	DiscountPercent string
	DiscountCents   int64
	VATRate         string
	NetCents        int64
	VATCents        int64
	GrossCents      int64
}

// Order is a sales order.
type Order struct {
	ID                    int64
	OrderNumber           string
	CustomerID            int64
	Status                Status
	Currency              string
	DefaultVATRate        string
	NetCents              int64
	VATCents              int64
	GrossCents            int64
	PaymentTerms          string
	DeliveryTerms         string
	RequestedDeliveryDate *time.Time
	Notes                 string
	CreatedBy             int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Lines                 []Line
}

// StatusChange is one row of the order status history.
type StatusChange struct {
	ID         int64
	OrderID    int64
	From       Status
	To         Status
	Action     Action
	ActorID    int64
	OccurredAt time.Time
}

// LineInput is a caller-supplied order line.
type LineInput struct {
	ProductID       *int64 `validate:"omitempty,gt=0"`
	Description     string `validate:"max=500"`
	Quantity        string `validate:"required"`
	UnitPriceCents  int64  `validate:"gte=0"`
	DiscountPercent string
	DiscountCents   int64 `validate:"gte=0"`
	VATRate         string
}

// CreateDraftInput describes a new draft order.
type CreateDraftInput struct {
	CustomerID            int64  `validate:"required,gt=0"`
	Currency              string `validate:"required,iso4217"`
	DefaultVATRate        string
	PaymentTerms          string `validate:"max=200"`
	DeliveryTerms         string `validate:"max=200"`
	RequestedDeliveryDate *time.Time
	Notes                 string      `validate:"max=2000"`
	Lines                 []LineInput `validate:"dive"`
	ActorID               int64
}

// UpdateDraftInput patches a draft order. Nil fields are left unchanged.
type UpdateDraftInput struct {
	CustomerID            *int64  `validate:"omitempty,gt=0"`
	Currency              *string `validate:"omitempty,iso4217"`
	DefaultVATRate        *string
	PaymentTerms          *string `validate:"omitempty,max=200"`
	DeliveryTerms         *string `validate:"omitempty,max=200"`
	RequestedDeliveryDate *time.Time
	Notes                 *string `validate:"omitempty,max=2000"`
	Lines                 *[]LineInput
	ActorID               int64
}

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = shared.NewError(shared.CodeOrderNotFound, "order not found")
	// ErrInvalidTransition indicates an action not allowed from the current state.
	ErrInvalidTransition = shared.NewError(shared.CodeInvalidTransition, "invalid order status transition")
	// ErrImmutableOrder indicates a direct edit outside draft.
	ErrImmutableOrder = shared.NewError(shared.CodeImmutableDocument, "order is no longer a draft; use a named transition")
)
