package cache

import (
	"context"
	"errors"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

// CartCache keeps read-through copies of carts. Every user has a version
// that Invalidate bumps; Fill only stores a cart read under the current
// version, so a read that raced a write cannot bring the old cart back.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Version(ctx context.Context, userID string) (int64, error)
	Fill(ctx context.Context, userID string, version int64, cart *domain.Cart) error
	Invalidate(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss         = errors.New("cache miss")
	ErrStaleVersion      = errors.New("cart changed since it was read")
	ErrRequestInProgress = errors.New("request with this idempotency key is in progress")
)
