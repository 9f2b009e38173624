package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

func TestNotify_RecordsNotificationAndEvent(t *testing.T) {
	repo := &mockNotificationRepository{}
	sink := NewNotificationSink(repo, zaptest.NewLogger(t), time.Second)

	sink.Notify(context.Background(), domain.Recipient{
		UserID:     "u1",
		Email:      "u1@example.com",
		PushTokens: []string{"tok-1"},
	}, domain.NotificationOrderPlaced, "Your order 1 has been placed.")

	require.Len(t, repo.notifications, 1)
	n := repo.notifications[0]
	assert.Equal(t, "u1", n.UserID)
	assert.Equal(t, "Order placed", n.Title)
	assert.False(t, n.Read)
	_, err := uuid.Parse(n.ID)
	assert.NoError(t, err)

	require.Len(t, repo.events, 1)
	event := repo.events[0]
	assert.Equal(t, n.ID, event.AggregateID)
	assert.Equal(t, domain.EventTypeNotificationCreated, event.EventType)

	var payload domain.NotificationEvent
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, n.ID, payload.NotificationID)
	assert.Equal(t, []string{"tok-1"}, payload.PushTokens)
	assert.Equal(t, "u1@example.com", payload.Email)
	assert.Equal(t, "Your order 1 has been placed.", payload.Body)
}

func TestNotify_ZeroTimeoutStillRecords(t *testing.T) {
	repo := &mockNotificationRepository{}
	sink := NewNotificationSink(repo, zaptest.NewLogger(t), 0)

	sink.Notify(context.Background(), domain.Recipient{UserID: "u1"},
		domain.NotificationOrderPlaced, "Your order 1 has been placed.")

	require.Len(t, repo.notifications, 1)
	assert.Len(t, repo.events, 1)
}

func TestNotify_StorageFailureIsSwallowed(t *testing.T) {
	repo := &mockNotificationRepository{createErr: errors.New("db down")}
	sink := NewNotificationSink(repo, zaptest.NewLogger(t), time.Second)

	assert.NotPanics(t, func() {
		sink.Notify(context.Background(), domain.Recipient{UserID: "u1"}, "t", "b")
	})
	assert.Empty(t, repo.notifications)
}

func TestNotify_SurvivesCancelledCaller(t *testing.T) {
	repo := &mockNotificationRepository{}
	sink := NewNotificationSink(repo, zaptest.NewLogger(t), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Notify(ctx, domain.Recipient{UserID: "u1"}, "t", "b")

	assert.Len(t, repo.notifications, 1)
}

func TestNotificationList_Limits(t *testing.T) {
	repo := &mockNotificationRepository{}
	sink := NewNotificationSink(repo, zaptest.NewLogger(t), time.Second)
	ctx := context.Background()

	_, err := sink.List(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultNotificationLimit, repo.lastLimit)

	_, err = sink.List(ctx, "u1", 1000)
	require.NoError(t, err)
	assert.Equal(t, maxNotificationLimit, repo.lastLimit)

	_, err = sink.List(ctx, "u1", -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNotificationMarkRead(t *testing.T) {
	repo := &mockNotificationRepository{}
	sink := NewNotificationSink(repo, zaptest.NewLogger(t), time.Second)
	ctx := context.Background()

	sink.Notify(ctx, domain.Recipient{UserID: "u1"}, "t", "b")
	id := repo.notifications[0].ID

	require.NoError(t, sink.MarkRead(ctx, "u1", id))
	assert.True(t, repo.notifications[0].Read)

	assert.ErrorIs(t, sink.MarkRead(ctx, "u2", id), ErrNotFound)
	assert.ErrorIs(t, sink.MarkRead(ctx, "u1", "not-a-uuid"), ErrNotFound)

	repo.markErr = errors.New("db down")
	err := sink.MarkRead(ctx, "u1", id)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, repository.ErrNotificationNotFound)
}
