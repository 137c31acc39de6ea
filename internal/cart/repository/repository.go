package repository

import (
	"context"
	"errors"

	"github.com/fjod/foodcart/internal/domain"
)

var (
	ErrCartNotFound    = errors.New("cart not found")
	ErrVersionConflict = errors.New("cart version conflict")
)

// CartRepository stores whole carts. SaveCart succeeds only if the stored version still
// equals cart.Version and bumps it on success; a Version of 0 means the cart is new.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}
