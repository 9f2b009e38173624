package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/auth"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/service"
)

// --- Mocks ---

type mockOrderService struct {
	order   *domain.Order
	orders  []*domain.Order
	err     error
	creates int

	lastCreate service.CreateOrderRequest
	lastUpdate service.StatusUpdate
	lastFilter domain.ListFilter
	lastID     string
}

func (m *mockOrderService) Create(_ context.Context, _ *domain.Principal, req service.CreateOrderRequest) (*domain.Order, error) {
	m.creates++
	m.lastCreate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrderService) UpdateStatus(_ context.Context, _ *domain.Principal, orderID string, update service.StatusUpdate) (*domain.Order, error) {
	m.lastID = orderID
	m.lastUpdate = update
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrderService) Cancel(_ context.Context, _ *domain.Principal, orderID string) (*domain.Order, error) {
	m.lastID = orderID
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrderService) Get(_ context.Context, _ *domain.Principal, orderID string) (*domain.Order, error) {
	m.lastID = orderID
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrderService) ListForUser(context.Context, *domain.Principal) ([]*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

func (m *mockOrderService) ListAll(_ context.Context, _ *domain.Principal, filter domain.ListFilter) ([]*domain.Order, error) {
	m.lastFilter = filter
	if m.err != nil {
		return nil, m.err
	}
	return m.orders, nil
}

type mockCartService struct {
	cart *domain.Cart
	err  error

	added   map[string]int
	removed []string
	cleared bool
}

func (m *mockCartService) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.cart != nil {
		return m.cart, nil
	}
	return &domain.Cart{UserID: userID}, nil
}

func (m *mockCartService) AddItem(_ context.Context, _ string, productID string, quantity int) error {
	if m.err != nil {
		return m.err
	}
	if m.added == nil {
		m.added = map[string]int{}
	}
	m.added[productID] += quantity
	return nil
}

func (m *mockCartService) UpdateQuantity(_ context.Context, _ string, productID string, quantity int) error {
	if m.err != nil {
		return m.err
	}
	if m.added == nil {
		m.added = map[string]int{}
	}
	m.added[productID] = quantity
	return nil
}

func (m *mockCartService) RemoveItem(_ context.Context, _ string, productID string) error {
	if m.err != nil {
		return m.err
	}
	m.removed = append(m.removed, productID)
	return nil
}

func (m *mockCartService) ClearCart(context.Context, string) error {
	if m.err != nil {
		return m.err
	}
	m.cleared = true
	return nil
}

type mockNotificationService struct {
	notifications []*domain.Notification
	err           error
	lastLimit     int
	marked        string
}

func (m *mockNotificationService) List(_ context.Context, _ string, limit int) ([]*domain.Notification, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.notifications, nil
}

func (m *mockNotificationService) MarkRead(_ context.Context, _ string, id string) error {
	if m.err != nil {
		return m.err
	}
	m.marked = id
	return nil
}

// --- helpers ---

var (
	testUser  = &domain.Principal{ID: "u1", Role: domain.RoleUser}
	testAdmin = &domain.Principal{ID: "a1", Role: domain.RoleAdmin}
)

func withPrincipal(r *http.Request, p *domain.Principal) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}

func withUser(r *http.Request) *http.Request {
	return withPrincipal(r, testUser)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
