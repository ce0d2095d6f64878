package repository

import (
	"context"
	"errors"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order already exists")
	ErrPaidDowngrade  = errors.New("order is paid, refusing status downgrade")
)

// ListFilter narrows ListOrders. Zero values mean "no constraint".
type ListFilter struct {
	Status domain.OrderStatus
	Since  time.Time
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*domain.Order, error)

	// SetPaymentReference attaches the initiator-generated reference and
	// resets status to PENDING. Safe to call again for a retried payment
	// attempt; the newest reference wins.
	SetPaymentReference(ctx context.Context, id uuid.UUID, reference string) error

	// UpdatePayment applies a reconciliation outcome. Transitions that
	// domain.CanTransitionTo forbids are refused with ErrPaidDowngrade:
	// a PAID order never moves to a non-PAID status (except SHIPPED),
	// and SHIPPED or CANCELLED orders never change. Re-affirming PAID
	// is allowed and may overwrite the receipt.
	UpdatePayment(ctx context.Context, id uuid.UUID, status domain.OrderStatus, receiptID *string) error

	// AppendNote adds one line to the order's append-only audit trail.
	AppendNote(ctx context.Context, id uuid.UUID, note string) error

	// ListStalePending returns orders that have had a payment reference
	// attached but were still PENDING before the cutoff.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*domain.Order, error)

	Close() error
}
