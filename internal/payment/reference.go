package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// ReferencePrefix marks references generated by this storefront.
	ReferencePrefix = "FL"

	// MaxReferenceLen is the tightest length cap across both providers.
	MaxReferenceLen = 20

	fragmentLen = 6
)

// BuildReference produces the provider-facing correlation string for an
// order. Long form "FL-<orderIdFragment>-<unix>" embeds part of the order
// ID so the order can still be found if the stored linkage is ever lost;
// when that would exceed the provider cap the short form "FL-<unix>" is
// used instead. Both forms are understood by the correlator.
func BuildReference(orderID uuid.UUID, now time.Time) string {
	ts := fmt.Sprintf("%d", now.Unix())
	fragment := orderFragment(orderID)

	long := fmt.Sprintf("%s-%s-%s", ReferencePrefix, fragment, ts)
	if len(long) <= MaxReferenceLen {
		return long
	}
	return fmt.Sprintf("%s-%s", ReferencePrefix, ts)
}

func orderFragment(orderID uuid.UUID) string {
	compact := strings.ReplaceAll(orderID.String(), "-", "")
	if len(compact) > fragmentLen {
		compact = compact[:fragmentLen]
	}
	return compact
}

// ParseReference splits a reference into its order-ID fragment, if the
// reference carries one. Short-form references and foreign strings yield
// ok=false.
func ParseReference(reference string) (fragment string, ok bool) {
	parts := strings.Split(reference, "-")
	if len(parts) != 3 || parts[0] != ReferencePrefix {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	// Long form carries the fragment in the middle; a short form has only
	// two parts and never reaches here.
	return parts[1], true
}
