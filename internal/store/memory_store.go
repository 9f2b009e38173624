package store

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

// MemoryStore implements repository.ProductRepository with in-memory storage
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*domain.Product // productID -> product
	nextID   int
}

var _ repository.ProductRepository = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory catalog
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*domain.Product),
	}
}

// GetProduct returns a copy of the stored product
func (s *MemoryStore) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.products[id]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

// DecrementStock checks and decrements under one lock
func (s *MemoryStore) DecrementStock(_ context.Context, id string, quantity int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists || !p.IsActive() || p.Stock < quantity {
		return nil, repository.ErrStockNotDecremented
	}

	p.Stock -= quantity
	p.UpdatedAt = time.Now()
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) IncrementStock(_ context.Context, id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return repository.ErrProductNotFound
	}

	p.Stock += quantity
	p.UpdatedAt = time.Now()
	return nil
}

// AddProduct stores p and returns its id; an empty ID is assigned.
func (s *MemoryStore) AddProduct(p domain.Product) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		s.nextID++
		p.ID = "product-" + strconv.Itoa(s.nextID)
	}
	if p.State == "" {
		p.State = domain.ProductStateActive
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products[p.ID] = &p
	return p.ID
}

// SetStock sets the stock level for a product (used for initialization)
func (s *MemoryStore) SetStock(id string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return repository.ErrProductNotFound
	}
	p.Stock = quantity
	return nil
}

// Retire marks a product as no longer orderable.
func (s *MemoryStore) Retire(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.products[id]
	if !exists {
		return repository.ErrProductNotFound
	}
	p.State = domain.ProductStateRetired
	return nil
}

// Delete removes a product entirely.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.products, id)
}
