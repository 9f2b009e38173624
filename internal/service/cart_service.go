package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/cache"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	logger   *zap.Logger
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, products repository.ProductRepository, cache cache.CartCache, logger *zap.Logger) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
		logger:   logger.Named("cart"),
	}
}

// GetCart returns the user's cart; a user without one gets an empty cart.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
		}

		// the version must be read before the repository so a concurrent
		// invalidation turns the fill below into a no-op
		version, errVersion := s.cache.Version(ctx, userID)
		if errVersion != nil {
			s.logger.Warn("cache version error", zap.String("user_id", userID), zap.Error(errVersion))
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, repository.ErrCartNotFound) {
			now := time.Now().UTC()
			return &domain.Cart{
				UserID:    userID,
				Items:     []domain.CartItem{},
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		}
		if errGet != nil {
			return nil, fmt.Errorf("failed to get cart: %w", errGet)
		}

		if errVersion == nil {
			go s.fillCache(userID, version, cart)
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem adds quantity of an active product, or increases the quantity
// already in the cart.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if productID == "" {
		return fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	product, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to get product: %w", err)
	}
	if !product.IsActive() {
		return fmt.Errorf("product %s: %w", productID, ErrNotFound)
	}

	item := domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
		AddedAt:   time.Now().UTC(),
	}
	if err := s.repo.AddItem(ctx, userID, item); err != nil {
		s.logger.Error("repo add item error", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to add item: %w", err)
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	err := s.repo.UpdateItemQuantity(ctx, userID, productID, quantity)
	if errors.Is(err, repository.ErrItemNotFound) {
		return fmt.Errorf("cart item %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		s.logger.Error("repo update item quantity error", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to update item: %w", err)
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) error {
	err := s.repo.RemoveItem(ctx, userID, productID)
	if errors.Is(err, repository.ErrItemNotFound) {
		return fmt.Errorf("cart item %s: %w", productID, ErrNotFound)
	}
	if err != nil {
		s.logger.Error("repo remove item error", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to remove item: %w", err)
	}

	s.invalidateCache(userID)
	return nil
}

// ClearCart deletes the cart document. The cache entry is dropped even when
// there was no cart.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	s.invalidateCache(userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return fmt.Errorf("cart: %w", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (s *CartService) fillCache(userID string, version int64, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cache.Fill(ctx, userID, version, cart)
	if errors.Is(err, cache.ErrStaleVersion) {
		s.logger.Debug("cart changed during read, skipping cache fill", zap.String("user_id", userID))
		return
	}
	if err != nil {
		s.logger.Warn("cache set error", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}
