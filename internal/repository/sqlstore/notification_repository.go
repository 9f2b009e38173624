package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

const maxNotificationsLimit = 100

type NotificationRepository struct {
	*Store
}

func NewNotificationRepository(store *Store) *NotificationRepository {
	return &NotificationRepository{Store: store}
}

func (r *NotificationRepository) CreateWithEvent(ctx context.Context, n *domain.Notification, event *repository.OutboxEvent) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insertNotification := `INSERT INTO notifications (id, user_id, title, body, read, created_at)
	                       VALUES (?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, r.rebind(insertNotification),
		n.ID, n.UserID, n.Title, n.Body, n.Read, n.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	insertEvent := `INSERT INTO notification_outbox (aggregate_id, event_type, payload, created_at)
	                VALUES (?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, r.rebind(insertEvent),
		event.AggregateID, event.EventType, string(event.Payload), event.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit notification: %w", err)
	}
	return nil
}

func (r *NotificationRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit <= 0 || limit > maxNotificationsLimit {
		limit = maxNotificationsLimit
	}
	query := `SELECT id, user_id, title, body, read, created_at
	          FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification row: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return notifications, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	query := `UPDATE notifications SET read = ? WHERE id = ? AND user_id = ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), true, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error) {
	query := `SELECT id, aggregate_id, event_type, payload, created_at
	          FROM notification_outbox WHERE processed_at IS NULL ORDER BY id LIMIT ?`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*repository.OutboxEvent
	for rows.Next() {
		var (
			e       repository.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		e.Payload = payload
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *NotificationRepository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	query := `UPDATE notification_outbox SET processed_at = ? WHERE id = ? AND processed_at IS NULL`

	if _, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark outbox event processed: %w", err)
	}
	return nil
}

func (r *NotificationRepository) DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM notification_outbox WHERE processed_at IS NOT NULL AND processed_at < ?`

	res, err := r.db.ExecContext(ctx, r.rebind(query), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete processed outbox events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

var (
	_ repository.NotificationRepository = (*NotificationRepository)(nil)
	_ repository.OutboxRepository       = (*NotificationRepository)(nil)
)
