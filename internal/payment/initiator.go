package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrUnknownProvider = errors.New("unknown payment provider")
	ErrOrderNotPayable = errors.New("order is not in a payable state")
)

type InitiateRequest struct {
	OrderID  uuid.UUID
	Phone    string
	Provider string
}

type InitiateResult struct {
	Reference string
	Ack       *STKAck
}

// Initiator sends the outbound payment request and records the generated
// reference on the order. The synchronous ack only means the provider
// accepted the request; the money outcome arrives later via callback.
type Initiator struct {
	repo      repository.OrderRepository
	providers map[string]Provider
	now       func() time.Time
}

func NewInitiator(repo repository.OrderRepository, providers ...Provider) *Initiator {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Initiator{repo: repo, providers: m, now: time.Now}
}

// Initiate is idempotent from the order's point of view: a retried
// payment attempt overwrites the stale reference and the order stays
// PENDING. On any ack failure the order is left untouched so the caller
// may retry.
func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	provider, ok := i.providers[req.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}

	order, err := i.repo.GetOrderByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case domain.OrderStatusPending, domain.OrderStatusFailed:
		// payable
	default:
		return nil, fmt.Errorf("%w: status %s", ErrOrderNotPayable, order.Status)
	}

	reference := BuildReference(order.ID, i.now())

	ack, err := provider.InitiateSTKPush(ctx, STKRequest{
		Phone:       req.Phone,
		Amount:      order.Amount,
		Reference:   reference,
		Description: fmt.Sprintf("Floralgifts order %s", orderFragment(order.ID)),
	})
	if err != nil {
		return nil, fmt.Errorf("initiate via %s: %w", provider.Name(), err)
	}
	if !ack.Accepted {
		return &InitiateResult{Reference: reference, Ack: ack},
			fmt.Errorf("%w: code=%s %s", ErrProviderRejected, ack.ProviderCode, ack.Detail)
	}

	if err := i.repo.SetPaymentReference(ctx, order.ID, reference); err != nil {
		return nil, fmt.Errorf("store payment reference: %w", err)
	}
	// The provider ref goes into the note too: callbacks that omit the
	// account reference echo it instead, and the correlator's notes tier
	// finds it there.
	note := fmt.Sprintf("payment initiated via %s, reference %s", provider.Name(), reference)
	if ack.ProviderRef != "" {
		note += fmt.Sprintf(", provider ref %s", ack.ProviderRef)
	}
	if err := i.repo.AppendNote(ctx, order.ID, note); err != nil {
		return nil, fmt.Errorf("append initiation note: %w", err)
	}

	return &InitiateResult{Reference: reference, Ack: ack}, nil
}
