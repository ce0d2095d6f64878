package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/NelsonFranklinWere/floralgifts-sub000/internal/domain"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	repo  CartRepository
	cache CartCache
	sfg   singleflight.Group // Prevents cache stampede
}

func NewService(repo CartRepository, cache CartCache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

func (s *Service) GetCart(ctx context.Context, customerToken string) (*domain.Cart, error) {
	// Use singleflight so concurrent cache misses for the same token hit
	// the repository once.
	v, err, _ := s.sfg.Do(customerToken, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, customerToken)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, errGet := s.repo.GetCart(ctx, customerToken)
		if errors.Is(errGet, ErrCartNotFound) {
			return &domain.Cart{
				CustomerToken: customerToken,
				Items:         nil,
				CreatedAt:     time.Now(),
				UpdatedAt:     time.Now(),
			}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), customerToken, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

func (s *Service) AddItem(ctx context.Context, customerToken string, item domain.CartItem) error {
	if err := s.repo.AddItem(ctx, customerToken, item); err != nil {
		log.Printf("repo add item error: %v", err)
		return err
	}

	s.invalidateCache(customerToken)
	return nil
}

func (s *Service) RemoveItem(ctx context.Context, customerToken string, productID int64) error {
	if err := s.repo.RemoveItem(ctx, customerToken, productID); err != nil {
		return err
	}

	s.invalidateCache(customerToken)
	return nil
}

// ClearCart drops the cart after a successful checkout. A missing cart is
// not an error: a duplicate checkout may already have cleared it.
func (s *Service) ClearCart(ctx context.Context, customerToken string) error {
	err := s.repo.DeleteCart(ctx, customerToken)
	if err != nil && !errors.Is(err, ErrCartNotFound) {
		return err
	}

	s.invalidateCache(customerToken)
	return nil
}

func (s *Service) invalidateCache(customerToken string) {
	go func() {
		if err := s.cache.Delete(context.Background(), customerToken); err != nil {
			log.Printf("cache delete error: %v", err)
		}
	}()
}
