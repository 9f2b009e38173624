package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/auth"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/cache"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/service"
	"github.com/Bassamalsaqqa/delivery-app-backend/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

type OrderService interface {
	Create(ctx context.Context, principal *domain.Principal, req service.CreateOrderRequest) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor *domain.Principal, orderID string, update service.StatusUpdate) (*domain.Order, error)
	Cancel(ctx context.Context, actor *domain.Principal, orderID string) (*domain.Order, error)
	Get(ctx context.Context, actor *domain.Principal, orderID string) (*domain.Order, error)
	ListForUser(ctx context.Context, principal *domain.Principal) ([]*domain.Order, error)
	ListAll(ctx context.Context, actor *domain.Principal, filter domain.ListFilter) ([]*domain.Order, error)
}

// IdempotencyStore replays completed POST /orders responses.
type IdempotencyStore interface {
	Begin(ctx context.Context, userID, key string) (*cache.StoredResponse, error)
	Complete(ctx context.Context, userID, key string, resp cache.StoredResponse) error
	Abandon(ctx context.Context, userID, key string) error
}

type OrdersHandler struct {
	orders      OrderService
	idempotency IdempotencyStore
	timeout     time.Duration
}

// NewOrdersHandler builds the orders endpoints. idempotency may be nil, in
// which case the Idempotency-Key header is ignored.
func NewOrdersHandler(orders OrderService, idempotency IdempotencyStore, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:      orders,
		idempotency: idempotency,
		timeout:     timeout,
	}
}

type OrderItemDTO struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderResponseDTO struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"user_id"`
	Items           []OrderItemDTO         `json:"items"`
	TotalAmount     decimal.Decimal        `json:"total_amount"`
	PaymentMethod   string                 `json:"payment_method"`
	PaymentStatus   string                 `json:"payment_status"`
	Status          string                 `json:"status"`
	ShippingAddress domain.ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

type CreateOrderRequestDTO struct {
	Items           []domain.RequestedItem  `json:"items,omitempty"`
	AddressID       string                  `json:"address_id,omitempty"`
	ShippingAddress *domain.ShippingAddress `json:"shipping_address,omitempty"`
	PaymentMethod   string                  `json:"payment_method,omitempty"`
}

type UpdateStatusRequestDTO struct {
	Status        *string `json:"status,omitempty"`
	PaymentStatus *string `json:"payment_status,omitempty"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return OrderResponseDTO{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func convertOrders(orders []*domain.Order) []OrderResponseDTO {
	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	return dtos
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.idempotency != nil {
		stored, err := h.idempotency.Begin(ctx, principal.ID, key)
		switch {
		case errors.Is(err, cache.ErrRequestInProgress):
			respondServiceError(ctx, w, service.ErrIdempotencyConflict)
			return
		case err != nil:
			respondServiceError(ctx, w, err)
			return
		case stored != nil:
			w.Header().Set("X-Idempotent-Replay", "true")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	order, err := h.orders.Create(ctx, principal, service.CreateOrderRequest{
		Items: req.Items,
		Address: service.AddressInput{
			AddressID: req.AddressID,
			Inline:    req.ShippingAddress,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		if key != "" && h.idempotency != nil {
			h.abandon(ctx, principal.ID, key)
		}
		respondServiceError(ctx, w, err)
		return
	}

	dto := convertOrder(order)
	if key != "" && h.idempotency != nil {
		h.complete(ctx, principal.ID, key, dto)
	}
	respondJSON(ctx, w, http.StatusCreated, dto)
}

func (h *OrdersHandler) complete(ctx context.Context, userID, key string, dto OrderResponseDTO) {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(dto); err != nil {
		logger.FromContext(ctx).Error("failed to encode idempotent response", zap.Error(err))
		return
	}
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := h.idempotency.Complete(storeCtx, userID, key, cache.StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       body.Bytes(),
	}); err != nil {
		logger.FromContext(ctx).Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
	}
}

func (h *OrdersHandler) abandon(ctx context.Context, userID, key string) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := h.idempotency.Abandon(storeCtx, userID, key); err != nil {
		logger.FromContext(ctx).Warn("failed to release idempotency key", zap.String("key", key), zap.Error(err))
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orders, err := h.orders.ListForUser(ctx, principal)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, convertOrders(orders))
}

// GET /api/v1/admin/orders
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	query := r.URL.Query()
	var filter domain.ListFilter
	if s := query.Get("status"); s != "" {
		status := domain.OrderStatus(s)
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = queryInt(query.Get("limit")); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}
	if filter.Offset, err = queryInt(query.Get("offset")); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid_offset", "offset must be an integer")
		return
	}

	orders, err := h.orders.ListAll(ctx, principal, filter)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, convertOrders(orders))
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(ctx, w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.Get(ctx, principal, orderID)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, convertOrder(order))
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(ctx, w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	var update service.StatusUpdate
	if req.Status != nil {
		status := domain.OrderStatus(*req.Status)
		update.Status = &status
	}
	if req.PaymentStatus != nil {
		paymentStatus := domain.PaymentStatus(*req.PaymentStatus)
		update.PaymentStatus = &paymentStatus
	}

	order, err := h.orders.UpdateStatus(ctx, principal, orderID, update)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, convertOrder(order))
}

// DELETE /api/v1/orders/{order_id}
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(ctx, w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.orders.Cancel(ctx, principal, orderID)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	respondJSON(ctx, w, http.StatusOK, convertOrder(order))
}

func queryInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
