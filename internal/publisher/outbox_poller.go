package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Bassamalsaqqa/delivery-app-backend/internal/repository"
)

// Publisher hands an outbox event to the delivery side.
type Publisher interface {
	Publish(ctx context.Context, event *repository.OutboxEvent) error
	Close() error
}

type Config struct {
	PollInterval   time.Duration
	PurgeInterval  time.Duration
	PublishTimeout time.Duration
	Retention      time.Duration
	BatchSize      int
}

// OutboxPoller moves committed outbox rows to the publisher and purges
// rows that were published long enough ago.
type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	purgeTick time.Duration
	retention time.Duration
	batchSize int
	repo      repository.OutboxRepository
	publisher Publisher
	logger    *zap.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, publisher Publisher, cfg Config, logger *zap.Logger) *OutboxPoller {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &OutboxPoller{
		timeout:   cfg.PublishTimeout,
		eventTick: cfg.PollInterval,
		purgeTick: cfg.PurgeInterval,
		retention: cfg.Retention,
		batchSize: cfg.BatchSize,
		repo:      repo,
		publisher: publisher,
		logger:    logger.Named("outbox"),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	purgeTicker := time.NewTicker(p.purgeTick)
	defer eventTicker.Stop()
	defer purgeTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-purgeTicker.C:
			p.purgeProcessedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.logger.Error("failed to fetch events", zap.Error(err))
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			// stop here so later events are not published ahead of this one
			p.logger.Warn("failed to publish event", zap.Int64("event_id", event.ID), zap.Error(err))
			return
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark event as processed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.publisher.Publish(publishCtx, event)
}

func (p *OutboxPoller) purgeProcessedEvents(ctx context.Context) {
	before := time.Now().UTC().Add(-p.retention)
	deleted, err := p.repo.DeleteProcessedEvents(ctx, before)
	if err != nil {
		p.logger.Error("failed to purge processed events", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.logger.Info("purged processed events", zap.Int64("deleted", deleted))
	}
}

// KafkaPublisher writes outbox events to a topic, keyed by aggregate id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w}
}

func (k *KafkaPublisher) Publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload, // Already JSON from database
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
