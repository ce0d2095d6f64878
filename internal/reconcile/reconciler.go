package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
)

// Outcome classifies what a callback did so the HTTP layer can pick the
// right acknowledgment. Anything except Malformed and StoreError is acked
// with success to the provider to stop retry storms.
type Outcome int

const (
	OutcomeMalformed Outcome = iota
	OutcomeUnmatched
	OutcomeApplied
	OutcomeIgnored
	OutcomeStoreError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMalformed:
		return "malformed"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeApplied:
		return "applied"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeStoreError:
		return "store_error"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome    Outcome
	Order      *domain.Order
	Normalized *Normalized
}

type Notifier interface {
	Send(ctx context.Context, subject, htmlBody, recipient string) error
}

type PaidEventPublisher interface {
	PublishOrderPaid(ctx context.Context, order *domain.Order, receiptID string) error
}

// Reconciler applies one asynchronous payment callback to the order it
// belongs to. The order store is the only thing it protects; the
// notification and the paid event are best effort.
type Reconciler struct {
	repo            repository.OrderRepository
	correlator      *Correlator
	notifier        Notifier
	publisher       PaidEventPublisher
	candidateWindow time.Duration
	notifyTimeout   time.Duration
	now             func() time.Time
}

func NewReconciler(repo repository.OrderRepository, correlator *Correlator, notifier Notifier, publisher PaidEventPublisher) *Reconciler {
	return &Reconciler{
		repo:            repo,
		correlator:      correlator,
		notifier:        notifier,
		publisher:       publisher,
		candidateWindow: 30 * 24 * time.Hour,
		notifyTimeout:   10 * time.Second,
		now:             time.Now,
	}
}

// Process runs the per-callback state machine. An error is returned only
// for OutcomeStoreError; every other outcome is a terminal decision.
func (r *Reconciler) Process(ctx context.Context, provider string, payload []byte) (*Result, error) {
	normalized, err := Normalize(provider, payload)
	if err != nil {
		log.Printf("malformed %s callback: %v", provider, err)
		return &Result{Outcome: OutcomeMalformed}, nil
	}

	candidates, err := r.repo.ListOrders(ctx, repository.ListFilter{
		Since: r.now().Add(-r.candidateWindow),
	})
	if err != nil {
		return &Result{Outcome: OutcomeStoreError, Normalized: normalized},
			fmt.Errorf("list candidate orders: %w", err)
	}

	order := r.correlator.Resolve(normalized.Reference, candidates)
	if order == nil {
		log.Printf("unmatched %s callback, reference %q (%s)",
			provider, normalized.Reference, normalized.RawStatus)
		return &Result{Outcome: OutcomeUnmatched, Normalized: normalized}, nil
	}

	if normalized.IsSuccess {
		return r.applySuccess(ctx, provider, order, normalized)
	}
	return r.applyNonSuccess(ctx, provider, order, normalized)
}

func (r *Reconciler) applySuccess(ctx context.Context, provider string, order *domain.Order, n *Normalized) (*Result, error) {
	if !domain.CanTransitionTo(order.Status, domain.OrderStatusPaid) {
		// Shipped and cancelled orders never change on a late callback;
		// money arriving for one is a manual-reconciliation case.
		r.appendNote(ctx, order, fmt.Sprintf(
			"ignored success callback via %s (%s): order already %s",
			provider, n.RawStatus, strings.ToLower(string(order.Status))))
		log.Printf("success callback for %s order %s, reference %q: left untouched",
			order.Status, order.ID, n.Reference)
		return &Result{Outcome: OutcomeIgnored, Order: order, Normalized: n}, nil
	}

	var receipt *string
	if n.ReceiptID != "" {
		receipt = &n.ReceiptID
	}

	if err := r.repo.UpdatePayment(ctx, order.ID, domain.OrderStatusPaid, receipt); err != nil {
		return &Result{Outcome: OutcomeStoreError, Order: order, Normalized: n},
			fmt.Errorf("mark order %s paid: %w", order.ID, err)
	}

	r.appendNote(ctx, order, fmt.Sprintf(
		"payment confirmed via %s, reference %s, receipt %s (%s)",
		provider, n.Reference, n.ReceiptID, n.RawStatus))

	r.dispatchNotification(order, n.ReceiptID)
	r.publishPaidEvent(order, n.ReceiptID)

	return &Result{Outcome: OutcomeApplied, Order: order, Normalized: n}, nil
}

func (r *Reconciler) applyNonSuccess(ctx context.Context, provider string, order *domain.Order, n *Normalized) (*Result, error) {
	if !domain.CanTransitionTo(order.Status, domain.OrderStatusPending) {
		// Paid never downgrades on a weaker signal, and shipped or
		// cancelled orders never reopen.
		r.appendNote(ctx, order, fmt.Sprintf(
			"ignored non-success callback via %s (%s): order already %s",
			provider, n.RawStatus, strings.ToLower(string(order.Status))))
		return &Result{Outcome: OutcomeIgnored, Order: order, Normalized: n}, nil
	}

	// Not FAILED: the provider may still complete the payment out of
	// band, so the order stays retryable.
	err := r.repo.UpdatePayment(ctx, order.ID, domain.OrderStatusPending, nil)
	if errors.Is(err, repository.ErrPaidDowngrade) {
		// Lost a race against a concurrent success callback. Fine: both
		// signals about a paid order agree it is paid.
		r.appendNote(ctx, order, fmt.Sprintf(
			"ignored non-success callback via %s (%s): order paid concurrently",
			provider, n.RawStatus))
		return &Result{Outcome: OutcomeIgnored, Order: order, Normalized: n}, nil
	}
	if err != nil {
		return &Result{Outcome: OutcomeStoreError, Order: order, Normalized: n},
			fmt.Errorf("keep order %s pending: %w", order.ID, err)
	}

	r.appendNote(ctx, order, fmt.Sprintf(
		"payment not confirmed via %s (%s), order left pending",
		provider, n.RawStatus))
	return &Result{Outcome: OutcomeApplied, Order: order, Normalized: n}, nil
}

// appendNote keeps the audit trail best effort: a note failure must not
// turn an already-applied reconciliation into a provider retry.
func (r *Reconciler) appendNote(ctx context.Context, order *domain.Order, note string) {
	if err := r.repo.AppendNote(ctx, order.ID, note); err != nil {
		log.Printf("failed to append note to order %s: %v", order.ID, err)
	}
}

// dispatchNotification fires the confirmation email on its own goroutine
// with a detached context so a slow mail server cannot hold up the
// callback response.
func (r *Reconciler) dispatchNotification(order *domain.Order, receiptID string) {
	if r.notifier == nil || order.CustomerEmail == "" {
		return
	}

	subject := "Your Floralgifts order is confirmed"
	body := paymentConfirmedBody(order, receiptID)
	recipient := order.CustomerEmail

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("notifier panicked for order %s: %v", order.ID, rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.notifyTimeout)
		defer cancel()

		if err := r.notifier.Send(ctx, subject, body, recipient); err != nil {
			log.Printf("failed to send confirmation for order %s: %v", order.ID, err)
		}
	}()
}

func (r *Reconciler) publishPaidEvent(order *domain.Order, receiptID string) {
	if r.publisher == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.notifyTimeout)
		defer cancel()

		if err := r.publisher.PublishOrderPaid(ctx, order, receiptID); err != nil {
			log.Printf("failed to publish paid event for order %s: %v", order.ID, err)
		}
	}()
}

func paymentConfirmedBody(order *domain.Order, receiptID string) string {
	return fmt.Sprintf(
		`<p>Hello %s,</p>
<p>We have received your payment of %s %.2f for order <b>%s</b>.</p>
<p>Receipt: %s</p>
<p>Your flowers are being prepared for delivery.</p>`,
		order.CustomerName,
		order.Currency,
		float64(order.Amount)/100,
		order.ID,
		receiptID,
	)
}
