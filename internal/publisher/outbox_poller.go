// Package publisher relays order-placed events from the ledger outbox to Kafka.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	eventTick time.Duration
	repo      repository.OutboxRepository
	writer    MessageWriter
	log       *slog.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, log *slog.Logger, topic string, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newOutboxPoller(repo, w, log, time.Second)
}

func newOutboxPoller(repo repository.OutboxRepository, writer MessageWriter, log *slog.Logger, tick time.Duration) *OutboxPoller {
	return &OutboxPoller{
		eventTick: tick,
		repo:      repo,
		writer:    writer,
		log:       log.With("component", "outbox_poller"),
	}
}

// Run publishes pending events every tick until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.eventTick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents publishes in id order. An event is marked only after Kafka
// accepted it, so a crash in between publishes it again.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch outbox events", "error", err)
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.ErrorContext(ctx, "failed to publish event", "event_id", event.ID, "error", err)
			// keep per-aggregate order: later events wait for the next tick
			return published
		}

		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark event as processed", "event_id", event.ID, "error", err)
			continue
		}
		published++
	}
	if published > 0 {
		p.log.DebugContext(ctx, "outbox events published", "count", published)
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
