package cart

import (
	"context"
	"errors"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)

// CartRepository defines the interface for cart data operations.
// Consumers define this interface, not the MongoDB implementation.
type CartRepository interface {
	GetCart(ctx context.Context, customerToken string) (*domain.Cart, error)
	AddItem(ctx context.Context, customerToken string, item domain.CartItem) error
	RemoveItem(ctx context.Context, customerToken string, productID int64) error
	DeleteCart(ctx context.Context, customerToken string) error
}
