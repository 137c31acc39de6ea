// Package poller consumes order-placed events and clears the ordering owner's cart.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/segmentio/kafka-go"
)

const (
	consumerGroup = "order-service-cart-clear"
	retryDelay    = time.Second
)

var errMalformedEvent = errors.New("malformed order placed event")

// MessageReader is the part of *kafka.Reader the poller uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type Poller struct {
	carts  CartClearer
	reader MessageReader
	log    *slog.Logger
}

func NewPoller(carts CartClearer, log *slog.Logger, topic string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  consumerGroup,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(carts, reader, log)
}

func newPoller(carts CartClearer, reader MessageReader, log *slog.Logger) *Poller {
	return &Poller{carts: carts, reader: reader, log: log.With("component", "cart_clear_poller")}
}

// Run handles messages until ctx is cancelled. A message is committed only after the
// cart is cleared, so a failed clear is retried from the same offset.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.handleNext(ctx); err != nil && ctx.Err() == nil {
			p.log.ErrorContext(ctx, "cart clear failed", "error", err)
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Poller) Close() error {
	return p.reader.Close()
}

func (p *Poller) handleNext(ctx context.Context) error {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}

	ownerID, err := ownerOf(m)
	if err != nil {
		// a bad payload never becomes valid; skip it
		p.log.WarnContext(ctx, "skipping message", "offset", m.Offset, "error", err)
		return p.commit(ctx, m)
	}

	if err := p.carts.ClearCart(ctx, ownerID); err != nil {
		return fmt.Errorf("clear cart of %s: %w", ownerID, err)
	}
	p.log.DebugContext(ctx, "cart cleared after order", "owner_id", ownerID, "offset", m.Offset)
	return p.commit(ctx, m)
}

func (p *Poller) commit(ctx context.Context, m kafka.Message) error {
	if err := p.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}

func ownerOf(m kafka.Message) (string, error) {
	for _, h := range m.Headers {
		if h.Key == "event_type" && string(h.Value) != repository.EventTypeOrderPlaced {
			return "", fmt.Errorf("%w: unexpected event type %q", errMalformedEvent, h.Value)
		}
	}

	var event repository.OrderPlaced
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return "", fmt.Errorf("%w: %w", errMalformedEvent, err)
	}
	if event.OwnerID == "" {
		return "", fmt.Errorf("%w: missing owner_id", errMalformedEvent)
	}
	return event.OwnerID, nil
}
