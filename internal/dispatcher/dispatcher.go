package dispatcher

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/domain"
	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
	"github.com/Bassamalsaqqa/delivery-app-backend/pkg/circuitbreaker"
)

// Channel is one external delivery sink.
type Channel interface {
	Name() string
	// Accepts reports whether the event carries an address this channel can use.
	Accepts(event domain.NotificationEvent) bool
	Send(ctx context.Context, event domain.NotificationEvent) error
}

type guardedChannel struct {
	channel Channel
	breaker *circuitbreaker.Breaker
}

// Dispatcher delivers notification events to every configured channel.
// Delivery is best-effort: failures are logged and never returned.
type Dispatcher struct {
	channels []guardedChannel
	timeout  time.Duration
	logger   *zap.Logger
}

func New(timeout time.Duration, logger *zap.Logger, channels ...Channel) *Dispatcher {
	logger = logger.Named("dispatcher")
	d := &Dispatcher{timeout: timeout, logger: logger}
	for _, ch := range channels {
		if ch == nil {
			continue
		}
		d.channels = append(d.channels, guardedChannel{
			channel: ch,
			breaker: circuitbreaker.New(circuitbreaker.DefaultSettings(ch.Name()), logger),
		})
	}
	return d
}

// Handle decodes one outbox event and delivers it. It returns an error only
// when the caller should retry the event, which never happens for delivery
// failures.
func (d *Dispatcher) Handle(ctx context.Context, event *repository.OutboxEvent) error {
	if event.EventType != domain.EventTypeNotificationCreated {
		d.logger.Debug("ignoring event", zap.String("event_type", event.EventType))
		return nil
	}

	var n domain.NotificationEvent
	if err := json.Unmarshal(event.Payload, &n); err != nil {
		d.logger.Error("dropping malformed notification event",
			zap.String("aggregate_id", event.AggregateID),
			zap.Error(err),
		)
		return nil
	}

	d.Deliver(ctx, n)
	return nil
}

func (d *Dispatcher) Deliver(ctx context.Context, n domain.NotificationEvent) {
	for _, gc := range d.channels {
		if !gc.channel.Accepts(n) {
			continue
		}

		err := gc.breaker.Do(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()
			return gc.channel.Send(sendCtx, n)
		})
		if err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("channel", gc.channel.Name()),
				zap.String("notification_id", n.NotificationID),
				zap.String("user_id", n.UserID),
				zap.Error(err),
			)
			continue
		}

		d.logger.Debug("notification delivered",
			zap.String("channel", gc.channel.Name()),
			zap.String("notification_id", n.NotificationID),
		)
	}
}

// Channels lists the names of the configured channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.channels))
	for _, gc := range d.channels {
		names = append(names, gc.channel.Name())
	}
	return names
}

// DirectPublisher feeds outbox events straight into a Dispatcher; it is used
// when no broker is configured.
type DirectPublisher struct {
	dispatcher *Dispatcher
}

func NewDirectPublisher(d *Dispatcher) *DirectPublisher {
	return &DirectPublisher{dispatcher: d}
}

func (p *DirectPublisher) Publish(ctx context.Context, event *repository.OutboxEvent) error {
	return p.dispatcher.Handle(ctx, event)
}

func (p *DirectPublisher) Close() error { return nil }
