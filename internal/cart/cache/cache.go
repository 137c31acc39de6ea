package cache

import (
	"context"
	"errors"

	"github.com/fjod/foodcart/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Set(ctx context.Context, userID string, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")

// NoopCache always misses. Used when no Redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*domain.Cart, error) { return nil, ErrCacheMiss }

func (NoopCache) Set(context.Context, string, *domain.Cart) error { return nil }

func (NoopCache) Delete(context.Context, string) error { return nil }
