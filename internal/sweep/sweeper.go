package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/repository"
)

// Sweeper fails orders that initiated a payment but never received a
// callback. The original storefront left such orders pending forever;
// the cutoff here is an explicit policy addition so they surface for
// follow-up instead of lingering.
type Sweeper struct {
	repo     repository.OrderRepository
	interval time.Duration
	cutoff   time.Duration
	now      func() time.Time
}

func NewSweeper(repo repository.OrderRepository, interval, cutoff time.Duration) *Sweeper {
	return &Sweeper{
		repo:     repo,
		interval: interval,
		cutoff:   cutoff,
		now:      time.Now,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce marks one batch of stale pending orders failed. Errors on
// individual orders are logged and the batch continues; a later sweep
// picks up whatever was missed.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	stale, err := s.repo.ListStalePending(ctx, s.now().Add(-s.cutoff))
	if err != nil {
		log.Printf("sweep: failed to list stale pending orders: %v", err)
		return
	}

	for _, order := range stale {
		err := s.repo.UpdatePayment(ctx, order.ID, domain.OrderStatusFailed, nil)
		if err != nil {
			// ErrPaidDowngrade means a callback won the race; leave it.
			log.Printf("sweep: could not fail order %s: %v", order.ID, err)
			continue
		}
		if err := s.repo.AppendNote(ctx, order.ID, fmt.Sprintf(
			"marked failed by sweep: no payment callback within %s", s.cutoff)); err != nil {
			log.Printf("sweep: failed to append note to order %s: %v", order.ID, err)
		}
		log.Printf("sweep: order %s marked failed after %s without callback", order.ID, s.cutoff)
	}
}
