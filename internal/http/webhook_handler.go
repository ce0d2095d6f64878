package http

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/reconcile"
	"github.com/go-chi/chi/v5"
)

const maxCallbackBody = 1 << 20 // 1MB

type reconcilerService interface {
	Process(ctx context.Context, provider string, payload []byte) (*reconcile.Result, error)
}

type WebhookHandler struct {
	reconciler reconcilerService
	timeout    time.Duration
}

func NewWebhookHandler(reconciler reconcilerService, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		timeout:    timeout,
	}
}

// POST /webhooks/{provider}
//
// The response contract is deliberately not plain REST: any parseable
// callback is acked with 200 even when it matches no order, because a
// non-2xx makes the provider re-deliver an event we have already
// decided about. Only a datastore failure returns 500 so the provider
// retries exactly the case where a retry can help.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable_body", "could not read callback body")
		return
	}

	result, err := h.reconciler.Process(ctx, provider, payload)
	if err != nil {
		log.Printf("request_id=%s callback mutation failed: %v", getRequestID(r.Context()), err)
		respondError(w, http.StatusInternalServerError, "store_error",
			"could not record payment result")
		return
	}

	switch result.Outcome {
	case reconcile.OutcomeMalformed:
		respondError(w, http.StatusBadRequest, "malformed_callback",
			"no payment reference could be extracted")
	default:
		respondJSON(w, http.StatusOK, ackBody(provider))
	}
}

// ackBody speaks each provider's own acknowledgment dialect.
func ackBody(provider string) interface{} {
	switch provider {
	case payment.ProviderDaraja:
		return map[string]interface{}{"ResultCode": 0, "ResultDesc": "Accepted"}
	case payment.ProviderBankGate:
		return map[string]string{"responseCode": "00", "responseMessage": "Received"}
	default:
		return map[string]string{"status": "ok"}
	}
}
