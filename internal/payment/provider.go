package payment

import (
	"context"
	"errors"
)

var (
	ErrProviderRejected    = errors.New("provider rejected payment request")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
)

// STKRequest asks a provider to push a payment prompt to the customer's
// phone. The reference is the correlation key echoed back in the
// asynchronous callback.
type STKRequest struct {
	Phone       string
	Amount      int64 // minor currency units
	Reference   string
	Description string
}

// STKAck is the synchronous acknowledgment that the request was accepted
// for processing. It says nothing about whether money will move.
type STKAck struct {
	Accepted     bool
	ProviderCode string
	Detail       string

	// ProviderRef is the provider-side request identifier, when the
	// provider issues one. Some callbacks echo it instead of the account
	// reference, so it is recorded on the order at initiation time.
	ProviderRef string
}

type Provider interface {
	Name() string
	InitiateSTKPush(ctx context.Context, req STKRequest) (*STKAck, error)
}
