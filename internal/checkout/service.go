package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/cart"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
	"github.com/google/uuid"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

type CheckoutRequest struct {
	CustomerToken string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
}

// Service turns a cart into a pending order. The payment reference is
// attached later by the initiator; the order is created without one.
type Service struct {
	orders repository.OrderRepository
	carts  *cart.Service
}

func NewService(orders repository.OrderRepository, carts *cart.Service) *Service {
	return &Service{orders: orders, carts: carts}
}

func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*domain.Order, error) {
	c, err := s.carts.GetCart(ctx, req.CustomerToken)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]domain.OrderItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, domain.OrderItem{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}

	order := &domain.Order{
		ID:            uuid.New(),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
		Amount:        c.Total(),
		Currency:      "KES",
		Status:        domain.OrderStatusPending,
		Items:         items,
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Cart clearing is best effort; the order exists either way.
	if err := s.carts.ClearCart(ctx, req.CustomerToken); err != nil {
		log.Printf("failed to clear cart %s after checkout: %v", req.CustomerToken, err)
	}

	return order, nil
}
