package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/auth"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

type NotificationService interface {
	List(ctx context.Context, userID string, limit int) ([]*domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
}

type NotificationsHandler struct {
	notifications NotificationService
	timeout       time.Duration
}

func NewNotificationsHandler(notifications NotificationService, timeout time.Duration) *NotificationsHandler {
	return &NotificationsHandler{
		notifications: notifications,
		timeout:       timeout,
	}
}

// GET /api/v1/notifications
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	limit, err := queryInt(r.URL.Query().Get("limit"))
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
		return
	}

	notifications, err := h.notifications.List(ctx, principal.ID, limit)
	if err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	if notifications == nil {
		notifications = []*domain.Notification{}
	}
	respondJSON(ctx, w, http.StatusOK, notifications)
}

// PATCH /api/v1/notifications/{notification_id}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	id := chi.URLParam(r, "notification_id")
	if id == "" {
		respondError(ctx, w, http.StatusBadRequest, "missing_notification_id", "notification_id is required")
		return
	}

	if err := h.notifications.MarkRead(ctx, principal.ID, id); err != nil {
		respondServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
