package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
	"github.com/google/uuid"
)

type initiatorService interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error)
}

type PaymentHandler struct {
	initiator initiatorService
	timeout   time.Duration
}

func NewPaymentHandler(initiator initiatorService, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{
		initiator: initiator,
		timeout:   timeout,
	}
}

type InitiatePaymentRequestDTO struct {
	OrderID  string `json:"order_id"`
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
}

type InitiatePaymentResponseDTO struct {
	Reference    string `json:"reference"`
	ProviderCode string `json:"provider_code"`
	Detail       string `json:"detail,omitempty"`
}

// POST /api/v1/payments/initiate
func (h *PaymentHandler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req InitiatePaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}
	if req.Phone == "" {
		respondError(w, http.StatusBadRequest, "missing_phone", "phone is required")
		return
	}
	if req.Provider == "" {
		req.Provider = payment.ProviderDaraja
	}

	result, err := h.initiator.Initiate(ctx, payment.InitiateRequest{
		OrderID:  orderID,
		Phone:    req.Phone,
		Provider: req.Provider,
	})
	if err != nil {
		handleInitiateError(w, result, err)
		return
	}

	respondJSON(w, http.StatusAccepted, InitiatePaymentResponseDTO{
		Reference:    result.Reference,
		ProviderCode: result.Ack.ProviderCode,
		Detail:       result.Ack.Detail,
	})
}

func handleInitiateError(w http.ResponseWriter, result *payment.InitiateResult, err error) {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", "no such order")
	case errors.Is(err, payment.ErrUnknownProvider):
		respondError(w, http.StatusBadRequest, "unknown_provider", err.Error())
	case errors.Is(err, payment.ErrOrderNotPayable):
		respondError(w, http.StatusConflict, "order_not_payable", err.Error())
	case errors.Is(err, payment.ErrProviderRejected):
		detail := ""
		if result != nil && result.Ack != nil {
			detail = result.Ack.Detail
		}
		respondError(w, http.StatusBadGateway, "provider_rejected", detail)
	default:
		respondError(w, http.StatusBadGateway, "provider_unavailable",
			"payment provider could not be reached")
	}
}
