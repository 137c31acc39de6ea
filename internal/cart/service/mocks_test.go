package service

import (
	"context"
	"sync"

	"github.com/fjod/foodcart/internal/cart/cache"
	"github.com/fjod/foodcart/internal/cart/repository"
	"github.com/fjod/foodcart/internal/domain"
)

// mockRepository wraps the in-memory repository and can inject failures.
type mockRepository struct {
	repository.CartRepository

	m         sync.Mutex
	getErr    error
	saveErr   error
	conflicts int // SaveCart returns ErrVersionConflict this many times
	saves     int
	afterGet  func() // runs once, after the next GetCart read
}

func newMockRepository() *mockRepository {
	return &mockRepository{CartRepository: repository.NewMemoryRepository()}
}

func (m *mockRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	m.m.Lock()
	err := m.getErr
	hook := m.afterGet
	m.afterGet = nil
	m.m.Unlock()
	if err != nil {
		return nil, err
	}
	cart, err := m.CartRepository.GetCart(ctx, userID)
	if hook != nil {
		hook()
	}
	return cart, err
}

func (m *mockRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	m.m.Lock()
	m.saves++
	if m.saveErr != nil {
		m.m.Unlock()
		return m.saveErr
	}
	if m.conflicts > 0 {
		m.conflicts--
		m.m.Unlock()
		return repository.ErrVersionConflict
	}
	m.m.Unlock()
	return m.CartRepository.SaveCart(ctx, cart)
}

func (m *mockRepository) saveCalls() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.saves
}

type mockCache struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	err     error
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{carts: make(map[string]*domain.Cart)}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart.Clone(), nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = cart.Clone()
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	m.deletes++
	return m.err
}

type mockCatalog struct {
	m     sync.Mutex
	items map[int64]*domain.Item
	calls int
}

func (m *mockCatalog) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls++
	item, ok := m.items[id]
	if !ok {
		return nil, &domain.ItemNotFoundError{ItemID: id}
	}
	copied := *item
	return &copied, nil
}

func (m *mockCatalog) setPrice(id int64, price domain.Money) {
	m.m.Lock()
	defer m.m.Unlock()
	m.items[id].Price = price
}

func (m *mockCatalog) remove(id int64) {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.items, id)
}
