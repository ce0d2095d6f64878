package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/cart"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
)

type cartService interface {
	GetCart(ctx context.Context, customerToken string) (*domain.Cart, error)
	AddItem(ctx context.Context, customerToken string, item domain.CartItem) error
	RemoveItem(ctx context.Context, customerToken string, productID int64) error
}

type CartHandler struct {
	carts   cartService
	timeout time.Duration
}

func NewCartHandler(carts cartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type AddCartItemRequestDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := customerToken(r)
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_customer_token",
			"X-Customer-Token header is required")
		return
	}

	c, err := h.carts.GetCart(ctx, token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}

	respondJSON(w, http.StatusOK, c)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := customerToken(r)
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_customer_token",
			"X-Customer-Token header is required")
		return
	}

	var req AddCartItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity < 1 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	err := h.carts.AddItem(ctx, token, domain.CartItem{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not add item")
		return
	}

	c, err := h.carts.GetCart(ctx, token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load cart")
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	token := customerToken(r)
	if token == "" {
		respondError(w, http.StatusBadRequest, "missing_customer_token",
			"X-Customer-Token header is required")
		return
	}

	productID, err := parseInt64Param(r, "product_id")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a number")
		return
	}

	if err := h.carts.RemoveItem(ctx, token, productID); err != nil {
		switch {
		case errors.Is(err, cart.ErrCartNotFound):
			respondError(w, http.StatusNotFound, "cart_not_found", "no cart for this customer")
		case errors.Is(err, cart.ErrItemNotFound):
			respondError(w, http.StatusNotFound, "item_not_found", "item is not in the cart")
		default:
			respondError(w, http.StatusInternalServerError, "internal_error", "could not remove item")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func customerToken(r *http.Request) string {
	return r.Header.Get("X-Customer-Token")
}
