// Package repository is the order ledger: an append-only record of placed orders and the
// outbox of events announcing them.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = fmt.Errorf("order %w", domain.ErrNotFound)
	ErrDuplicateCheckout = fmt.Errorf("%w: an order already exists for this authorization", domain.ErrConflict)
)

const EventTypeOrderPlaced = "order.placed"

// OrderRepository has no update or delete: orders are immutable once appended.
type OrderRepository interface {
	// Append stores the order and its order-placed outbox event atomically.
	Append(ctx context.Context, order *domain.Order) error
	// ListByOwner returns the owner's orders, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByAuthorizationHandle(ctx context.Context, handle string) (*domain.Order, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type Ledger interface {
	OrderRepository
	OutboxRepository
	Close() error
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// OrderPlaced is the outbox payload published for every appended order.
type OrderPlaced struct {
	OrderID             uuid.UUID          `json:"order_id"`
	OwnerID             string             `json:"owner_id"`
	AuthorizationHandle string             `json:"authorization_handle"`
	Items               []domain.OrderLine `json:"items"`
	TotalAmount         domain.Money       `json:"total_amount"`
	PlacedAt            time.Time          `json:"placed_at"`
}

func orderPlacedPayload(order *domain.Order) ([]byte, error) {
	payload, err := json.Marshal(OrderPlaced{
		OrderID:             order.ID,
		OwnerID:             order.OwnerID,
		AuthorizationHandle: order.AuthorizationHandle,
		Items:               order.Lines,
		TotalAmount:         order.TotalAmount,
		PlacedAt:            order.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order placed event: %w", err)
	}
	return payload, nil
}
