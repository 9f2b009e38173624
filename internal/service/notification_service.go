package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 100
)

// Notifier records a notification for later delivery. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, recipient domain.Recipient, title, body string)
}

// NotificationSink stores notifications together with an outbox event;
// delivery happens later through the outbox poller and dispatcher.
type NotificationSink struct {
	repo    repository.NotificationRepository
	logger  *zap.Logger
	timeout time.Duration
}

func NewNotificationSink(repo repository.NotificationRepository, logger *zap.Logger, timeout time.Duration) *NotificationSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationSink{
		repo:    repo,
		logger:  logger.Named("notifications"),
		timeout: timeout,
	}
}

func (s *NotificationSink) Notify(ctx context.Context, recipient domain.Recipient, title, body string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	n := &domain.Notification{
		ID:        uuid.NewString(),
		UserID:    recipient.UserID,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(domain.NotificationEvent{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Body:           n.Body,
		PushTokens:     recipient.PushTokens,
		Email:          recipient.Email,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		s.logger.Error("failed to marshal notification event", zap.String("notification_id", n.ID), zap.Error(err))
		return
	}

	event := &repository.OutboxEvent{
		AggregateID: n.ID,
		EventType:   domain.EventTypeNotificationCreated,
		Payload:     payload,
		CreatedAt:   n.CreatedAt,
	}
	if err := s.repo.CreateWithEvent(ctx, n, event); err != nil {
		s.logger.Error("failed to record notification",
			zap.String("user_id", n.UserID),
			zap.String("title", title),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("notification recorded",
		zap.String("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.Int("push_tokens", len(recipient.PushTokens)),
	)
}

// List returns the user's notifications, newest first.
func (s *NotificationSink) List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error) {
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	if limit == 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	notifications, err := s.repo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationSink) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}

	err := s.repo.MarkRead(ctx, userID, id)
	if errors.Is(err, repository.ErrNotificationNotFound) {
		return fmt.Errorf("notification %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
