package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/checkout"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type checkoutService interface {
	Checkout(ctx context.Context, req checkout.CheckoutRequest) (*domain.Order, error)
}

type OrderHandler struct {
	checkout checkoutService
	orders   repository.OrderRepository
	timeout  time.Duration
}

func NewOrderHandler(checkoutSvc checkoutService, orders repository.OrderRepository, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		checkout: checkoutSvc,
		orders:   orders,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	CustomerToken string `json:"customer_token"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
}

type OrderResponseDTO struct {
	ID               string             `json:"id"`
	Status           string             `json:"status"`
	Amount           int64              `json:"amount"`
	Currency         string             `json:"currency"`
	PaymentReference string             `json:"payment_reference,omitempty"`
	PaymentReceiptID string             `json:"payment_receipt_id,omitempty"`
	Items            []domain.OrderItem `json:"items"`
	CreatedAt        time.Time          `json:"created_at"`
}

// POST /api/v1/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.CustomerToken == "" {
		respondError(w, http.StatusBadRequest, "missing_customer_token", "customer_token is required")
		return
	}
	if req.CustomerPhone == "" {
		respondError(w, http.StatusBadRequest, "missing_customer_phone", "customer_phone is required")
		return
	}

	order, err := h.checkout.Checkout(ctx, checkout.CheckoutRequest{
		CustomerToken: req.CustomerToken,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
			return
		}
		respondError(w, http.StatusInternalServerError, "checkout_failed", "could not create order")
		return
	}

	respondJSON(w, http.StatusCreated, toOrderDTO(order))
}

// GET /api/v1/orders/{order_id}
//
// The storefront polls this while the customer confirms the STK prompt
// on their phone; the order stays PENDING until a callback arrives.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order_not_found", "no such order")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "could not load order")
		return
	}

	respondJSON(w, http.StatusOK, toOrderDTO(order))
}

// GET /api/v1/admin/orders?status=PENDING
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter := repository.ListFilter{
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", "could not list orders")
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, order := range orders {
		dtos = append(dtos, toOrderDTO(order))
	}
	respondJSON(w, http.StatusOK, dtos)
}

func toOrderDTO(order *domain.Order) OrderResponseDTO {
	dto := OrderResponseDTO{
		ID:               order.ID.String(),
		Status:           string(order.Status),
		Amount:           order.Amount,
		Currency:         order.Currency,
		PaymentReference: order.PaymentReference,
		Items:            order.Items,
		CreatedAt:        order.CreatedAt,
	}
	if order.PaymentReceiptID != nil {
		dto.PaymentReceiptID = *order.PaymentReceiptID
	}
	return dto
}
