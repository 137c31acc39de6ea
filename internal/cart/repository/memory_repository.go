package repository

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/foodcart/internal/domain"
)

type memoryRepository struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
	now   func() time.Time
}

func NewMemoryRepository() CartRepository {
	return &memoryRepository{
		carts: make(map[string]*domain.Cart),
		now:   time.Now,
	}
}

func (m *memoryRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	return cart.Clone(), nil
}

func (m *memoryRepository) SaveCart(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stored int64
	if existing, ok := m.carts[cart.UserID]; ok {
		stored = existing.Version
	}
	if stored != cart.Version {
		return ErrVersionConflict
	}

	now := m.now().UTC()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now
	cart.Version++
	m.carts[cart.UserID] = cart.Clone()
	return nil
}

func (m *memoryRepository) DeleteCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.carts[userID]; !ok {
		return ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}
