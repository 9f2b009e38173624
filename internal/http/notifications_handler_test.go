package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/service"
)

func TestListNotifications(t *testing.T) {
	mock := &mockNotificationService{notifications: []*domain.Notification{
		{ID: "n1", UserID: "u1", Title: domain.NotificationOrderPlaced},
	}}
	handler := NewNotificationsHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.List(recorder, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5", nil)))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 5, mock.lastLimit)

	var resp []domain.Notification
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "Order placed", resp[0].Title)
}

func TestListNotifications_Empty(t *testing.T) {
	handler := NewNotificationsHandler(&mockNotificationService{}, 5*time.Second)

	recorder := httptest.NewRecorder()
	handler.List(recorder, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)))

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "[]", strings.TrimSpace(recorder.Body.String()))
}

func TestMarkNotificationRead(t *testing.T) {
	mock := &mockNotificationService{}
	handler := NewNotificationsHandler(mock, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withURLParam(withUser(httptest.NewRequest(http.MethodPatch, "/", nil)), "notification_id", "n1")
	handler.MarkRead(recorder, request)

	assert.Equal(t, http.StatusNoContent, recorder.Code)
	assert.Equal(t, "n1", mock.marked)
}

func TestMarkNotificationRead_NotFound(t *testing.T) {
	handler := NewNotificationsHandler(&mockNotificationService{err: fmt.Errorf("notification %w", service.ErrNotFound)}, 5*time.Second)

	recorder := httptest.NewRecorder()
	request := withURLParam(withUser(httptest.NewRequest(http.MethodPatch, "/", nil)), "notification_id", "n1")
	handler.MarkRead(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHealth(t *testing.T) {
	healthy := NewHealthHandler(map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return nil },
	}, time.Second)

	recorder := httptest.NewRecorder()
	healthy.Health(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	degraded := NewHealthHandler(map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
		"sql":   func(context.Context) error { return errors.New("connection refused") },
	}, time.Second)

	recorder = httptest.NewRecorder()
	degraded.Health(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)

	var resp HealthResponseDTO
	require.NoError(t, json.NewDecoder(recorder.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "ok", resp.Checks["mongo"])
	assert.Equal(t, "connection refused", resp.Checks["sql"])
}
