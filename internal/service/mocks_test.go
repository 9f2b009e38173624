package service

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/cache"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

// mockCartRepository keeps carts by user id
type mockCartRepository struct {
	mu        sync.Mutex
	carts     map[string]*domain.Cart
	err       error
	deleteErr error
	deleted   []string
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{carts: make(map[string]*domain.Cart)}
}

func (m *mockCartRepository) put(userID string, items ...domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[userID] = &domain.Cart{UserID: userID, Items: items}
}

func (m *mockCartRepository) has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.carts[userID]
	return ok
}

func (m *mockCartRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepository) AddItem(_ context.Context, userID string, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *mockCartRepository) UpdateItemQuantity(_ context.Context, userID string, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrItemNotFound
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockCartRepository) RemoveItem(_ context.Context, userID string, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return repository.ErrItemNotFound
	}
	for i, item := range c.Items {
		if item.ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return repository.ErrItemNotFound
}

func (m *mockCartRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	m.deleted = append(m.deleted, userID)
	return nil
}

type mockCache struct {
	mu        sync.RWMutex
	carts     map[string]*domain.Cart
	versions  map[string]int64
	fillDelay time.Duration
	fills     atomic.Int32
	err       error
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart), versions: make(map[string]int64)}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return c, nil
}

func (m *mockCache) Version(_ context.Context, userID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[userID], m.err
}

func (m *mockCache) Fill(_ context.Context, userID string, version int64, cart *domain.Cart) error {
	defer m.fills.Add(1)
	time.Sleep(m.fillDelay)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.versions[userID] != version {
		return cache.ErrStaleVersion
	}
	m.carts[userID] = cart
	return nil
}

func (m *mockCache) Invalidate(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[userID]++
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) getCart(userID string) *domain.Cart {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.carts[userID]
}

// mockOrderRepository applies conditional updates the way the SQL store does
type mockOrderRepository struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
	getErr    error
	updateErr error
	lastList  domain.ListFilter
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*domain.Order)}
}

func (m *mockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *mockOrderRepository) stored(id string) *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[order.ID]; ok {
		return repository.ErrDuplicateOrder
	}
	cp := *order
	cp.Items = append([]domain.OrderItem(nil), order.Items...)
	m.orders[order.ID] = &cp
	return nil
}

func (m *mockOrderRepository) GetOrderByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *mockOrderRepository) ListOrdersByUserID(_ context.Context, userID string) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockOrderRepository) ListOrders(_ context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastList = filter
	var out []*domain.Order
	for _, o := range m.orders {
		if filter.Status == nil || o.Status == *filter.Status {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOrderRepository) UpdateStatus(_ context.Context, id string, expected, next repository.StatusPair, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != expected.Status || o.PaymentStatus != expected.PaymentStatus {
		return repository.ErrOrderStateChanged
	}
	o.Status = next.Status
	o.PaymentStatus = next.PaymentStatus
	o.UpdatedAt = at
	return nil
}

func (m *mockOrderRepository) CancelPending(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	o, ok := m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return repository.ErrOrderStateChanged
	}
	o.Status = domain.OrderStatusCancelled
	o.UpdatedAt = at
	return nil
}

type mockUserRepository struct {
	users map[string]*domain.Principal
	err   error
}

func (m *mockUserRepository) GetUser(_ context.Context, id string) (*domain.Principal, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserRepository) GetUserByEmail(_ context.Context, email string) (*domain.Principal, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockUserRepository) SetRole(_ context.Context, id string, role domain.Role) error {
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	return nil
}

type sentNotification struct {
	Recipient domain.Recipient
	Title     string
	Body      string
}

// mockNotifier captures Notify calls
type mockNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (m *mockNotifier) Notify(_ context.Context, recipient domain.Recipient, title, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentNotification{Recipient: recipient, Title: title, Body: body})
}

func (m *mockNotifier) titles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, n := range m.sent {
		out = append(out, n.Title)
	}
	return out
}

type mockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*domain.Notification
	events        []*repository.OutboxEvent
	createErr     error
	markErr       error
	lastLimit     int
}

func (m *mockNotificationRepository) CreateWithEvent(ctx context.Context, n *domain.Notification, event *repository.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.notifications = append(m.notifications, n)
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotificationRepository) ListByUserID(_ context.Context, userID string, limit int) ([]*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []*domain.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepository) MarkRead(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	for _, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotificationNotFound
}

// failingProductRepository wraps a real store and injects errors
type failingProductRepository struct {
	repository.ProductRepository
	decrementErr error
	incrementErr map[string]error
}

func (f *failingProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if f.decrementErr != nil {
		return nil, f.decrementErr
	}
	return f.ProductRepository.DecrementStock(ctx, id, quantity)
}

func (f *failingProductRepository) IncrementStock(ctx context.Context, id string, quantity int) error {
	if err, ok := f.incrementErr[id]; ok {
		return err
	}
	return f.ProductRepository.IncrementStock(ctx, id, quantity)
}
