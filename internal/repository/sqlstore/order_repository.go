package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

const (
	orderColumns = `id, user_id, items, total_amount, payment_method, payment_status, status, shipping_address, created_at, updated_at`

	defaultListLimit = 50
	maxListLimit     = 200
)

type OrderRepository struct {
	*Store
}

var _ repository.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{Store: store}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders (` + orderColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, insertErr := r.db.ExecContext(ctx, r.rebind(query),
		order.ID,
		order.UserID,
		string(itemsJSON),
		order.TotalAmount.String(),
		string(order.PaymentMethod),
		string(order.PaymentStatus),
		string(order.Status),
		string(addressJSON),
		order.CreatedAt.UTC(),
		order.UpdatedAt.UTC())

	if insertErr != nil {
		if isUniqueViolation(insertErr) {
			return repository.ErrDuplicateOrder
		}
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

func (r *OrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = ?`

	order, err := scanOrder(r.db.QueryRowContext(ctx, r.rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	return order, nil
}

func (r *OrderRepository) ListOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user id: %w", err)
	}
	return collectOrders(rows)
}

func (r *OrderRepository) ListOrders(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return collectOrders(rows)
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, expected, next repository.StatusPair, at time.Time) error {
	query := `UPDATE orders SET status = ?, payment_status = ?, updated_at = ?
	          WHERE id = ? AND status = ? AND payment_status = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		string(next.Status), string(next.PaymentStatus), at.UTC(),
		id, string(expected.Status), string(expected.PaymentStatus))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	return r.checkTransitioned(ctx, res, id)
}

func (r *OrderRepository) CancelPending(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query),
		string(domain.OrderStatusCancelled), at.UTC(), id, string(domain.OrderStatusPending))
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return r.checkTransitioned(ctx, res, id)
}

// checkTransitioned tells a missing order apart from one whose state moved on.
func (r *OrderRepository) checkTransitioned(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.GetOrderByID(ctx, id); err != nil {
		return err
	}
	return repository.ErrOrderStateChanged
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order       domain.Order
		itemsJSON   []byte
		addressJSON []byte
		total       string
	)
	if err := row.Scan(
		&order.ID,
		&order.UserID,
		&itemsJSON,
		&total,
		&order.PaymentMethod,
		&order.PaymentStatus,
		&order.Status,
		&addressJSON,
		&order.CreatedAt,
		&order.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if err := order.TotalAmount.Scan(total); err != nil {
		return nil, fmt.Errorf("parse total amount: %w", err)
	}
	return &order, nil
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	defer rows.Close()

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
