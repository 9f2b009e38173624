package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

// InventoryLedger reserves and releases product stock. Every reservation is
// a single conditional write, so stock never goes negative under contention.
type InventoryLedger struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewInventoryLedger(products repository.ProductRepository, logger *zap.Logger) *InventoryLedger {
	return &InventoryLedger{
		products: products,
		logger:   logger.Named("ledger"),
	}
}

// Reserve takes quantity units of the product and returns its current unit price.
func (l *InventoryLedger) Reserve(ctx context.Context, productID string, quantity int) (decimal.Decimal, error) {
	if quantity < 1 {
		return decimal.Zero, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	product, err := l.products.DecrementStock(ctx, productID, quantity)
	if err == nil {
		return product.Price, nil
	}
	if !errors.Is(err, repository.ErrStockNotDecremented) {
		return decimal.Zero, fmt.Errorf("failed to reserve product %s: %w", productID, err)
	}

	// nothing was written; read once to tell the caller why
	current, err := l.products.GetProduct(ctx, productID)
	if errors.Is(err, repository.ErrProductNotFound) {
		return decimal.Zero, &ProductUnavailableError{ProductID: productID}
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	if !current.IsActive() {
		return decimal.Zero, &ProductUnavailableError{ProductID: productID}
	}
	return decimal.Zero, &InsufficientStockError{
		ProductID: productID,
		Requested: quantity,
		Available: current.Stock,
	}
}

// Release returns quantity units to stock. Restocking a product that no
// longer exists is a no-op.
func (l *InventoryLedger) Release(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	err := l.products.IncrementStock(ctx, productID, quantity)
	if errors.Is(err, repository.ErrProductNotFound) {
		l.logger.Warn("release skipped, product no longer exists",
			zap.String("product_id", productID),
			zap.Int("quantity", quantity),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release product %s: %w", productID, err)
	}
	return nil
}
