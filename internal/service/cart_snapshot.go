package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

// Snapshot is a reserved, priced item set captured at order time.
type Snapshot struct {
	Items       []domain.OrderItem
	TotalAmount decimal.Decimal
	Source      domain.ItemSource
	CapturedAt  time.Time
}

// SnapshotResolver turns an item source into a Snapshot, reserving stock
// for every item through the ledger.
type SnapshotResolver struct {
	carts  repository.CartRepository
	ledger *InventoryLedger
	logger *zap.Logger
}

func NewSnapshotResolver(carts repository.CartRepository, ledger *InventoryLedger, logger *zap.Logger) *SnapshotResolver {
	return &SnapshotResolver{
		carts:  carts,
		ledger: ledger,
		logger: logger.Named("snapshot"),
	}
}

// Resolve reserves every item in input order. If any reservation fails the
// ones already taken are released before the error is returned.
func (r *SnapshotResolver) Resolve(ctx context.Context, userID string, source domain.ItemSource) (*Snapshot, error) {
	requested, err := r.requestedItems(ctx, userID, source)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		Items:       make([]domain.OrderItem, 0, len(requested)),
		TotalAmount: decimal.Zero,
		Source:      source,
		CapturedAt:  time.Now().UTC(),
	}

	for _, item := range requested {
		price, err := r.ledger.Reserve(ctx, item.ProductID, item.Quantity)
		if err != nil {
			r.Release(ctx, snapshot)
			return nil, err
		}

		line := domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
		}
		snapshot.Items = append(snapshot.Items, line)
		snapshot.TotalAmount = snapshot.TotalAmount.Add(line.Subtotal())
	}

	return snapshot, nil
}

// Release gives back every reservation held by snapshot. Failures are
// logged and the remaining items are still released.
func (r *SnapshotResolver) Release(ctx context.Context, snapshot *Snapshot) {
	if snapshot == nil {
		return
	}
	for _, item := range snapshot.Items {
		if err := r.ledger.Release(ctx, item.ProductID, item.Quantity); err != nil {
			r.logger.Error("failed to release reservation",
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

func (r *SnapshotResolver) requestedItems(ctx context.Context, userID string, source domain.ItemSource) ([]domain.RequestedItem, error) {
	switch s := source.(type) {
	case domain.FromCart:
		return r.cartItems(ctx, userID)
	case domain.FromRequest:
		if len(s.Items) == 0 {
			return r.cartItems(ctx, userID)
		}
		if err := validateRequestedItems(s.Items); err != nil {
			return nil, err
		}
		return s.Items, nil
	default:
		return nil, fmt.Errorf("%w: unknown item source %T", ErrValidation, source)
	}
}

func (r *SnapshotResolver) cartItems(ctx context.Context, userID string) ([]domain.RequestedItem, error) {
	cart, err := r.carts.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil, ErrNoItemsProvided
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if cart.IsEmpty() {
		return nil, ErrNoItemsProvided
	}

	items := make([]domain.RequestedItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, domain.RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return items, nil
}

func validateRequestedItems(items []domain.RequestedItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == "" {
			return fmt.Errorf("%w: product_id is required", ErrValidation)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("%w: quantity for product %s must be at least 1", ErrValidation, item.ProductID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return fmt.Errorf("%w: product %s listed more than once", ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}
	return nil
}
