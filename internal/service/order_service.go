package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

var tracer = otel.Tracer("github.com/Bassamalsaqqa/delivery-app-backend/internal/service")

// CartClearer drops the user's cart after checkout.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type CreateOrderRequest struct {
	Items         []domain.RequestedItem
	Address       AddressInput
	PaymentMethod domain.PaymentMethod
}

// StatusUpdate carries the fields an administrator wants to change; nil
// fields are left alone.
type StatusUpdate struct {
	Status        *domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
}

type OrderServiceConfig struct {
	// StrictTransitions enforces the status state machine; when false only
	// enum membership is checked.
	StrictTransitions bool
	CreateTimeout     time.Duration
}

// OrderService owns order creation and the order status lifecycle.
type OrderService struct {
	orders    repository.OrderRepository
	users     repository.UserRepository
	snapshots *SnapshotResolver
	ledger    *InventoryLedger
	carts     CartClearer
	notifier  Notifier
	logger    *zap.Logger
	cfg       OrderServiceConfig
	now       func() time.Time
}

func NewOrderService(
	orders repository.OrderRepository,
	users repository.UserRepository,
	snapshots *SnapshotResolver,
	ledger *InventoryLedger,
	carts CartClearer,
	notifier Notifier,
	logger *zap.Logger,
	cfg OrderServiceConfig,
) *OrderService {
	if cfg.CreateTimeout <= 0 {
		cfg.CreateTimeout = 15 * time.Second
	}
	return &OrderService{
		orders:    orders,
		users:     users,
		snapshots: snapshots,
		ledger:    ledger,
		carts:     carts,
		notifier:  notifier,
		logger:    logger.Named("orders"),
		cfg:       cfg,
		now:       time.Now,
	}
}

// Create reserves stock for the requested items, persists a pending order,
// deletes the user's cart and records an "Order placed" notification.
func (s *OrderService) Create(ctx context.Context, principal *domain.Principal, req CreateOrderRequest) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Create")
	defer func() { endSpan(span, err) }()

	if principal == nil {
		return nil, ErrUnauthenticated
	}

	method := req.PaymentMethod
	if method == "" {
		method = domain.PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, method)
	}

	address, err := ResolveShippingAddress(principal, req.Address)
	if err != nil {
		return nil, err
	}

	// once stock is reserved the workflow runs to completion even if the
	// client goes away
	workCtx, cancel := s.detached(ctx)
	defer cancel()

	snapshot, err := s.snapshots.Resolve(workCtx, principal.ID, domain.SourceOf(req.Items))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		UserID:          principal.ID,
		Items:           snapshot.Items,
		TotalAmount:     snapshot.TotalAmount,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		ShippingAddress: address,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.orders.CreateOrder(workCtx, order); err != nil {
		releaseCtx, releaseCancel := s.detached(ctx)
		defer releaseCancel()
		s.snapshots.Release(releaseCtx, snapshot)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", order.ID), attribute.Int("order.items", len(order.Items)))

	if err := s.carts.ClearCart(workCtx, principal.ID); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("failed to delete cart after checkout",
			zap.String("user_id", principal.ID),
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
	)

	s.notifier.Notify(workCtx, principal.Recipient(), domain.NotificationOrderPlaced,
		fmt.Sprintf("Your order %s has been placed.", order.ID))
	return order, nil
}

// UpdateStatus applies an administrative status and/or payment status change.
// A field equal to the stored value is ignored; if nothing changes the order
// is returned as is.
func (s *OrderService) UpdateStatus(ctx context.Context, actor *domain.Principal, orderID string, update StatusUpdate) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if update.Status == nil && update.PaymentStatus == nil {
		return nil, fmt.Errorf("%w: status or payment_status is required", ErrValidation)
	}
	if update.Status != nil && !update.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *update.Status)
	}
	if update.PaymentStatus != nil && !update.PaymentStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, *update.PaymentStatus)
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := repository.StatusPair{Status: order.Status, PaymentStatus: order.PaymentStatus}
	next := current
	if update.Status != nil && *update.Status != order.Status {
		if s.cfg.StrictTransitions && !order.Status.CanTransitionTo(*update.Status) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, order.Status, *update.Status)
		}
		next.Status = *update.Status
	}
	if update.PaymentStatus != nil && *update.PaymentStatus != order.PaymentStatus {
		if s.cfg.StrictTransitions {
			if order.Status == domain.OrderStatusCancelled {
				return nil, fmt.Errorf("%w: payment of a cancelled order cannot change", ErrInvalidTransition)
			}
			if !order.PaymentStatus.CanTransitionTo(*update.PaymentStatus) {
				return nil, fmt.Errorf("%w: payment %s to %s", ErrInvalidTransition, order.PaymentStatus, *update.PaymentStatus)
			}
		}
		next.PaymentStatus = *update.PaymentStatus
	}
	if next == current {
		return order, nil
	}

	now := s.now().UTC()
	err = s.orders.UpdateStatus(ctx, order.ID, current, next, now)
	if errors.Is(err, repository.ErrOrderStateChanged) {
		return nil, fmt.Errorf("%w: order %s changed concurrently", ErrInvalidTransition, order.ID)
	}
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	order.Status = next.Status
	order.PaymentStatus = next.PaymentStatus
	order.UpdatedAt = now

	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("status", order.Status.String()),
		zap.String("payment_status", order.PaymentStatus.String()),
		zap.String("actor_id", actor.ID),
	)

	s.notifier.Notify(ctx, s.recipientFor(ctx, order.UserID), domain.NotificationOrderUpdated,
		fmt.Sprintf("Your order %s status is now %s.", order.ID, order.Status))
	return order, nil
}

// Cancel moves a pending order to cancelled and returns every item to stock.
func (s *OrderService) Cancel(ctx context.Context, actor *domain.Principal, orderID string) (_ *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Cancel", trace.WithAttributes(attribute.String("order.id", orderID)))
	defer func() { endSpan(span, err) }()

	if actor == nil {
		return nil, ErrUnauthenticated
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if order.Status != domain.OrderStatusPending {
		return nil, fmt.Errorf("%w: only pending orders can be cancelled, order is %s", ErrInvalidTransition, order.Status)
	}

	workCtx, cancel := s.detached(ctx)
	defer cancel()

	now := s.now().UTC()
	err = s.orders.CancelPending(workCtx, order.ID, now)
	if errors.Is(err, repository.ErrOrderStateChanged) {
		return nil, fmt.Errorf("%w: order %s is no longer pending", ErrInvalidTransition, order.ID)
	}
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = now

	for _, item := range order.Items {
		if err := s.ledger.Release(workCtx, item.ProductID, item.Quantity); err != nil {
			s.logger.Error("failed to restock cancelled item",
				zap.String("order_id", order.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
			continue
		}
	}

	s.logger.Info("order cancelled", zap.String("order_id", order.ID), zap.String("actor_id", actor.ID))

	s.notifier.Notify(workCtx, s.recipientFor(workCtx, order.UserID), domain.NotificationOrderCancelled,
		fmt.Sprintf("Your order %s has been cancelled.", order.ID))
	return order, nil
}

// Get returns one order to its owner or an administrator.
func (s *OrderService) Get(ctx context.Context, actor *domain.Principal, orderID string) (*domain.Order, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.ID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return order, nil
}

// ListForUser returns the principal's own orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, principal *domain.Principal) ([]*domain.Order, error) {
	if principal == nil {
		return nil, ErrUnauthenticated
	}
	orders, err := s.orders.ListOrdersByUserID(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListAll returns every order, newest first. Administrators only.
func (s *OrderService) ListAll(ctx context.Context, actor *domain.Principal, filter domain.ListFilter) ([]*domain.Order, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrValidation)
	}

	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) getOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// recipientFor loads the owner's delivery addresses. Without them the
// notification is still recorded, it just has nowhere to be pushed.
func (s *OrderService) recipientFor(ctx context.Context, userID string) domain.Recipient {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load notification recipient", zap.String("user_id", userID), zap.Error(err))
		return domain.Recipient{UserID: userID}
	}
	return user.Recipient()
}

func (s *OrderService) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.CreateTimeout)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
