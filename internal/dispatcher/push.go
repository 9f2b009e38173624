package dispatcher

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
)

// MulticastSender is the part of the FCM client the push channel needs.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// NewFirebaseMessaging builds an FCM client from a project id and an
// optional service account file.
func NewFirebaseMessaging(ctx context.Context, projectID, credentialsFile string) (*messaging.Client, error) {
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase messaging client: %w", err)
	}
	return client, nil
}

type PushChannel struct {
	client MulticastSender
	logger *zap.Logger
}

func NewPushChannel(client MulticastSender, logger *zap.Logger) *PushChannel {
	return &PushChannel{client: client, logger: logger.Named("push")}
}

func (p *PushChannel) Name() string { return "push" }

func (p *PushChannel) Accepts(event domain.NotificationEvent) bool {
	return len(event.PushTokens) > 0
}

// Send multicasts to every token of the recipient. It fails only when no
// token accepted the message.
func (p *PushChannel) Send(ctx context.Context, event domain.NotificationEvent) error {
	msg := &messaging.MulticastMessage{
		Tokens: event.PushTokens,
		Notification: &messaging.Notification{
			Title: event.Title,
			Body:  event.Body,
		},
		Data: map[string]string{
			"notification_id": event.NotificationID,
		},
	}

	resp, err := p.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm multicast failed: %w", err)
	}

	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		fields := []zap.Field{
			zap.String("notification_id", event.NotificationID),
			zap.Int("token_index", i),
			zap.Error(r.Error),
		}
		if messaging.IsUnregistered(r.Error) {
			p.logger.Info("push token is no longer registered", fields...)
			continue
		}
		p.logger.Warn("push to token failed", fields...)
	}

	if resp.SuccessCount == 0 {
		return fmt.Errorf("fcm multicast: all %d tokens failed", resp.FailureCount)
	}
	return nil
}
