package domain

import "time"

const (
	NotificationOrderPlaced    = "Order placed"
	NotificationOrderUpdated   = "Order updated"
	NotificationOrderCancelled = "Order cancelled"

	EventTypeNotificationCreated = "NotificationCreated"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipient carries the delivery addresses known for a user at the time
// the notification is raised.
type Recipient struct {
	UserID     string
	Email      string
	PushTokens []string
}

// NotificationEvent is the outbox payload consumed by the dispatcher.
type NotificationEvent struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	PushTokens     []string  `json:"push_tokens,omitempty"`
	Email          string    `json:"email,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
