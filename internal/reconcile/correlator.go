package reconcile

import (
	"log"
	"strings"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/payment"
)

// Correlator resolves a provider reference back to an order. Providers do
// not guarantee one stable correlation key across their API surface, and
// historical data holds several reference shapes, so resolution is tiered
// rather than strict:
//
//  1. exact match against the stored payment reference
//  2. the reference appears inside the order's audit notes
//  3. the reference parses as "FL-<fragment>-<ts>" and the fragment
//     matches the start of (or appears inside) an order ID
//
// The first tier that produces any match wins. Within a tier the first
// candidate in input order is picked; additional candidates are logged,
// never an error.
type Correlator struct{}

func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Resolve returns the matching order or nil if nothing matched.
func (c *Correlator) Resolve(reference string, orders []*domain.Order) *domain.Order {
	if reference == "" || len(orders) == 0 {
		return nil
	}

	if match := pickFirst(reference, "exact-reference", matchTier(orders, func(o *domain.Order) bool {
		return o.PaymentReference != "" && o.PaymentReference == reference
	})); match != nil {
		return match
	}

	if match := pickFirst(reference, "notes-substring", matchTier(orders, func(o *domain.Order) bool {
		return o.Notes != "" && strings.Contains(o.Notes, reference)
	})); match != nil {
		return match
	}

	fragment, ok := payment.ParseReference(reference)
	if !ok {
		return nil
	}
	fragment = strings.ToLower(fragment)
	return pickFirst(reference, "id-fragment", matchTier(orders, func(o *domain.Order) bool {
		compact := strings.ReplaceAll(o.ID.String(), "-", "")
		return strings.HasPrefix(compact, fragment) || strings.Contains(compact, fragment)
	}))
}

func matchTier(orders []*domain.Order, pred func(*domain.Order) bool) []*domain.Order {
	var matches []*domain.Order
	for _, o := range orders {
		if pred(o) {
			matches = append(matches, o)
		}
	}
	return matches
}

func pickFirst(reference, tier string, matches []*domain.Order) *domain.Order {
	if len(matches) == 0 {
		return nil
	}
	if len(matches) > 1 {
		log.Printf("ambiguous reference %q: %d candidates at tier %s, picking order %s",
			reference, len(matches), tier, matches[0].ID)
	}
	return matches[0]
}
