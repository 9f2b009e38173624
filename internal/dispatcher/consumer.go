package dispatcher

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

// Consumer reads notification events from Kafka and hands them to the Dispatcher.
type Consumer struct {
	reader     *kafka.Reader
	dispatcher *Dispatcher
	logger     *zap.Logger
}

func NewConsumer(dispatcher *Dispatcher, topic, groupID string, logger *zap.Logger, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, dispatcher: dispatcher, logger: logger.Named("consumer")}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("error closing kafka reader", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("error reading message", zap.Error(err))
		return
	}

	if err := c.dispatcher.Handle(ctx, eventFromMessage(m)); err != nil {
		c.logger.Error("error handling message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func eventFromMessage(m kafka.Message) *repository.OutboxEvent {
	event := &repository.OutboxEvent{
		AggregateID: string(m.Key),
		Payload:     m.Value,
		CreatedAt:   m.Time,
	}
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			event.EventType = string(h.Value)
		}
	}
	return event
}
