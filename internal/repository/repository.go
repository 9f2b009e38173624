package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrStockNotDecremented  = errors.New("stock not decremented")
	ErrCartNotFound         = errors.New("cart not found")
	ErrItemNotFound         = errors.New("item not found in cart")
	ErrUserNotFound         = errors.New("user not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderStateChanged    = errors.New("order state changed concurrently")
	ErrDuplicateOrder       = errors.New("order already exists")
	ErrNotificationNotFound = errors.New("notification not found")
)

// ProductRepository is the stock-bearing side of the catalog.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	// DecrementStock subtracts quantity only if the product is active and
	// holds at least quantity units, in a single conditional write.
	// Returns ErrStockNotDecremented when the condition does not hold.
	DecrementStock(ctx context.Context, id string, quantity int) (*domain.Product, error)
	// IncrementStock returns ErrProductNotFound when the product is gone.
	IncrementStock(ctx context.Context, id string, quantity int) error
}

type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, item domain.CartItem) error
	UpdateItemQuantity(ctx context.Context, userID string, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID string, productID string) error
	DeleteCart(ctx context.Context, userID string) error
}

type UserRepository interface {
	GetUser(ctx context.Context, id string) (*domain.Principal, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.Principal, error)
	SetRole(ctx context.Context, id string, role domain.Role) error
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	ListOrders(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error)
	// UpdateStatus writes both status fields only if the stored order still
	// has the expected ones. Returns ErrOrderStateChanged otherwise.
	UpdateStatus(ctx context.Context, id string, expected, next StatusPair, at time.Time) error
	// CancelPending moves a pending order to cancelled.
	// Returns ErrOrderStateChanged when the order is no longer pending.
	CancelPending(ctx context.Context, id string, at time.Time) error
}

type StatusPair struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
}

type NotificationRepository interface {
	// CreateWithEvent stores the notification and its outbox event atomically.
	CreateWithEvent(ctx context.Context, n *domain.Notification, event *OutboxEvent) error
	ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}
