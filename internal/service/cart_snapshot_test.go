package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/store"
)

func newTestResolver(t *testing.T) (*SnapshotResolver, *store.MemoryStore, *mockCartRepository) {
	ledger, products := newTestLedger(t)
	carts := newMockCartRepository()
	return NewSnapshotResolver(carts, ledger, zaptest.NewLogger(t)), products, carts
}

func TestResolve_FromCart(t *testing.T) {
	resolver, products, carts := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(10), Stock: 5})
	b := products.AddProduct(domain.Product{Name: "B", Price: decimal.RequireFromString("2.25"), Stock: 5})
	carts.put("u1", domain.CartItem{ProductID: a, Quantity: 2}, domain.CartItem{ProductID: b, Quantity: 4})

	snapshot, err := resolver.Resolve(context.Background(), "u1", domain.FromCart{})
	require.NoError(t, err)

	require.Len(t, snapshot.Items, 2)
	assert.Equal(t, a, snapshot.Items[0].ProductID)
	assert.Equal(t, b, snapshot.Items[1].ProductID)
	assert.True(t, decimal.RequireFromString("29").Equal(snapshot.TotalAmount))
	assert.True(t, domain.SumItems(snapshot.Items).Equal(snapshot.TotalAmount))
	assert.Equal(t, domain.FromCart{}, snapshot.Source)
	assert.Equal(t, 3, stockOf(t, products, a))
	assert.Equal(t, 1, stockOf(t, products, b))
}

func TestResolve_FromRequest(t *testing.T) {
	resolver, products, _ := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(7), Stock: 5})

	snapshot, err := resolver.Resolve(context.Background(), "u1", domain.FromRequest{
		Items: []domain.RequestedItem{{ProductID: a, Quantity: 3}},
	})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(21).Equal(snapshot.TotalAmount))
	assert.Equal(t, 2, stockOf(t, products, a))
}

func TestResolve_EmptyRequestFallsBackToCart(t *testing.T) {
	resolver, products, carts := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(1), Stock: 5})
	carts.put("u1", domain.CartItem{ProductID: a, Quantity: 1})

	snapshot, err := resolver.Resolve(context.Background(), "u1", domain.FromRequest{})
	require.NoError(t, err)
	require.Len(t, snapshot.Items, 1)
}

func TestResolve_NoItems(t *testing.T) {
	resolver, _, carts := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), "nobody", domain.FromCart{})
	assert.ErrorIs(t, err, ErrNoItemsProvided)

	carts.put("u1")
	_, err = resolver.Resolve(context.Background(), "u1", domain.FromCart{})
	assert.ErrorIs(t, err, ErrNoItemsProvided)
}

func TestResolve_InvalidRequestedItems(t *testing.T) {
	resolver, products, _ := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(1), Stock: 5})

	tests := []struct {
		name  string
		items []domain.RequestedItem
	}{
		{"zero quantity", []domain.RequestedItem{{ProductID: a, Quantity: 0}}},
		{"missing product id", []domain.RequestedItem{{Quantity: 1}}},
		{"duplicate product", []domain.RequestedItem{{ProductID: a, Quantity: 1}, {ProductID: a, Quantity: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.Resolve(context.Background(), "u1", domain.FromRequest{Items: tt.items})
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, 5, stockOf(t, products, a))
		})
	}
}

func TestResolve_MidLoopFailureReleasesEarlierReservations(t *testing.T) {
	resolver, products, _ := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(10), Stock: 5})
	b := products.AddProduct(domain.Product{Name: "B", Price: decimal.NewFromInt(10), Stock: 1})

	_, err := resolver.Resolve(context.Background(), "u1", domain.FromRequest{Items: []domain.RequestedItem{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 2},
	}})
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 5, stockOf(t, products, a))
	assert.Equal(t, 1, stockOf(t, products, b))
}

func TestResolve_UnavailableProduct(t *testing.T) {
	resolver, products, _ := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(10), Stock: 5})

	_, err := resolver.Resolve(context.Background(), "u1", domain.FromRequest{Items: []domain.RequestedItem{
		{ProductID: a, Quantity: 1},
		{ProductID: "gone", Quantity: 1},
	}})
	require.ErrorIs(t, err, ErrProductUnavailable)
	assert.Contains(t, err.Error(), "gone")
	assert.Equal(t, 5, stockOf(t, products, a))
}

func TestSnapshotRelease(t *testing.T) {
	resolver, products, _ := newTestResolver(t)
	a := products.AddProduct(domain.Product{Name: "A", Price: decimal.NewFromInt(10), Stock: 5})

	snapshot, err := resolver.Resolve(context.Background(), "u1", domain.FromRequest{
		Items: []domain.RequestedItem{{ProductID: a, Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stockOf(t, products, a))

	resolver.Release(context.Background(), snapshot)
	assert.Equal(t, 5, stockOf(t, products, a))

	resolver.Release(context.Background(), nil)
}
