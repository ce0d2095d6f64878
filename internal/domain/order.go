package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPaid      OrderStatus = "PAID"
	OrderStatusFailed    OrderStatus = "FAILED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
)

// CanTransitionTo reports whether an order may move from its current
// status to the target status. PAID is sticky: only SHIPPED follows it,
// and a later PAID re-affirmation is allowed (duplicate success callbacks
// both indicate genuine success).
func CanTransitionTo(from, to OrderStatus) bool {
	switch from {
	case OrderStatusPending:
		return to == OrderStatusPaid || to == OrderStatusFailed ||
			to == OrderStatusCancelled || to == OrderStatusPending
	case OrderStatusPaid:
		return to == OrderStatusPaid || to == OrderStatusShipped
	case OrderStatusFailed:
		return to == OrderStatusPending || to == OrderStatusPaid ||
			to == OrderStatusCancelled
	case OrderStatusCancelled:
		return false
	case OrderStatusShipped:
		return false
	default:
		return false
	}
}

type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"` // minor currency units
}

type Order struct {
	ID               uuid.UUID
	CustomerName     string
	CustomerPhone    string
	CustomerEmail    string
	Amount           int64 // minor currency units, immutable after creation
	Currency         string
	Status           OrderStatus
	PaymentReference string
	PaymentReceiptID *string
	Notes            string // append-only audit trail, one line per event
	Items            []OrderItem
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
