package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/google/uuid"
)

type memoryLedger struct {
	mu       sync.RWMutex
	orders   []*domain.Order // append order
	byID     map[uuid.UUID]int
	byHandle map[string]int
	outbox   []*memoryEvent
}

type memoryEvent struct {
	OutboxEvent
	processed bool
}

func NewMemoryLedger() Ledger {
	return &memoryLedger{
		byID:     make(map[uuid.UUID]int),
		byHandle: make(map[string]int),
	}
}

func cloneOrder(o *domain.Order) *domain.Order {
	out := *o
	out.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &out
}

func (m *memoryLedger) Append(_ context.Context, order *domain.Order) error {
	payload, err := orderPlacedPayload(order)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byHandle[order.AuthorizationHandle]; ok {
		return ErrDuplicateCheckout
	}
	if _, ok := m.byID[order.ID]; ok {
		return ErrDuplicateCheckout
	}

	idx := len(m.orders)
	m.orders = append(m.orders, cloneOrder(order))
	m.byID[order.ID] = idx
	m.byHandle[order.AuthorizationHandle] = idx
	m.outbox = append(m.outbox, &memoryEvent{OutboxEvent: OutboxEvent{
		ID:          int64(len(m.outbox) + 1),
		AggregateID: order.ID.String(),
		EventType:   EventTypeOrderPlaced,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}})
	return nil
}

func (m *memoryLedger) ListByOwner(_ context.Context, ownerID string) ([]*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type indexed struct {
		seq   int
		order *domain.Order
	}
	var owned []indexed
	for i, o := range m.orders {
		if o.OwnerID == ownerID {
			owned = append(owned, indexed{i, o})
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.seq > b.seq
		}
		return a.order.CreatedAt.After(b.order.CreatedAt)
	})

	out := make([]*domain.Order, 0, len(owned))
	for _, o := range owned {
		out = append(out, cloneOrder(o.order))
	}
	return out, nil
}

func (m *memoryLedger) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byID[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(m.orders[idx]), nil
}

func (m *memoryLedger) GetByAuthorizationHandle(_ context.Context, handle string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.byHandle[handle]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(m.orders[idx]), nil
}

func (m *memoryLedger) GetUnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []*OutboxEvent
	for _, e := range m.outbox {
		if len(events) >= limit {
			break
		}
		if !e.processed {
			copied := e.OutboxEvent
			events = append(events, &copied)
		}
	}
	return events, nil
}

func (m *memoryLedger) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id >= 1 && int(id) <= len(m.outbox) {
		m.outbox[id-1].processed = true
	}
	return nil
}

func (m *memoryLedger) Close() error {
	return nil
}
