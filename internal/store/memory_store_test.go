package store

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

func setupStore(t *testing.T, stock int) (*MemoryStore, string) {
	store := NewMemoryStore()
	id := store.AddProduct(domain.Product{Name: "Pizza", Price: decimal.NewFromInt(10), Stock: stock})
	return store, id
}

func TestMemoryStore_AddProduct_And_GetProduct(t *testing.T) {
	store, id := setupStore(t, 5)

	p, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Pizza", p.Name)
	assert.Equal(t, 5, p.Stock)
	assert.Equal(t, domain.ProductStateActive, p.State)

	_, err = store.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestMemoryStore_GetProduct_ReturnsCopy(t *testing.T) {
	store, id := setupStore(t, 5)

	p, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	p.Stock = 100

	again, err := store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 5, again.Stock)
}

func TestMemoryStore_DecrementStock(t *testing.T) {
	store, id := setupStore(t, 5)
	ctx := context.Background()

	p, err := store.DecrementStock(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	_, err = store.DecrementStock(ctx, id, 4)
	assert.ErrorIs(t, err, repository.ErrStockNotDecremented)

	_, err = store.DecrementStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, repository.ErrStockNotDecremented)

	require.NoError(t, store.Retire(id))
	_, err = store.DecrementStock(ctx, id, 1)
	assert.ErrorIs(t, err, repository.ErrStockNotDecremented)
}

func TestMemoryStore_IncrementStock(t *testing.T) {
	store, id := setupStore(t, 0)
	ctx := context.Background()

	require.NoError(t, store.IncrementStock(ctx, id, 4))
	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Stock)

	store.Delete(id)
	assert.ErrorIs(t, store.IncrementStock(ctx, id, 1), repository.ErrProductNotFound)
}

func TestMemoryStore_ConcurrentDecrement(t *testing.T) {
	store, id := setupStore(t, 50)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.DecrementStock(ctx, id, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, succeeded)
	p, err := store.GetProduct(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}
