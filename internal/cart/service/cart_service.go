package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fjod/foodcart/internal/cart/cache"
	"github.com/fjod/foodcart/internal/cart/repository"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/currency"
)

const (
	maxAttempts     = 5
	displayCacheTTL = 10 * time.Second
	displayCacheLen = 1024
	writeStripes    = 64
)

// ItemLookup is the part of the catalog the cart needs.
type ItemLookup interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
}

// CartView is a cart joined with live catalog data. It is for display only and never
// used for pricing an order.
type CartView struct {
	UserID  string         `json:"user_id"`
	Lines   []CartViewLine `json:"lines"`
	Total   domain.Money   `json:"total"`
	Version int64          `json:"version"`
}

type CartViewLine struct {
	ItemID    int64         `json:"item_id"`
	Name      string        `json:"name,omitempty"`
	ImageURL  string        `json:"image_url,omitempty"`
	Quantity  int           `json:"quantity"`
	UnitPrice *domain.Money `json:"unit_price,omitempty"`
	Subtotal  *domain.Money `json:"subtotal,omitempty"`
	Available bool          `json:"available"`
}

type CartService struct {
	repo    repository.CartRepository
	cache   cache.CartCache
	catalog ItemLookup
	log     *slog.Logger
	sfg     singleflight.Group // collapses concurrent cache misses per user
	display *expirable.LRU[int64, *domain.Item]
	base    currency.Unit
	now     func() time.Time

	// writes counts cart writes per user stripe. A cache fill is dropped when a write
	// landed between its repo read and its cache set.
	writes [writeStripes]atomic.Uint64
}

func NewCartService(repo repository.CartRepository, c cache.CartCache, catalog ItemLookup, base currency.Unit, log *slog.Logger) *CartService {
	return &CartService{
		repo:    repo,
		cache:   c,
		catalog: catalog,
		log:     log,
		display: expirable.NewLRU[int64, *domain.Item](displayCacheLen, nil, displayCacheTTL),
		base:    base,
		now:     time.Now,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.WarnContext(ctx, "cache get failed", "user_id", userID, "error", err)
		}

		writes := s.writeCounter(userID)
		seen := writes.Load()

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return domain.NewCart(userID), nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}

		if writes.Load() != seen {
			s.log.DebugContext(ctx, "cart written during read, skipping cache fill", "user_id", userID)
			return cart, nil
		}

		setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := s.cache.Set(setCtx, userID, cart); err != nil {
			s.log.WarnContext(ctx, "cache set failed", "user_id", userID, "error", err)
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	// singleflight shares the value between callers
	return v.(*domain.Cart).Clone(), nil
}

// ReadCart returns the cart with catalog names and current prices. Lines whose item left
// the catalog are marked unavailable and excluded from the total.
func (s *CartService) ReadCart(ctx context.Context, userID string) (*CartView, error) {
	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &CartView{
		UserID:  userID,
		Lines:   make([]CartViewLine, 0, len(cart.Lines)),
		Total:   domain.Zero(s.base),
		Version: cart.Version,
	}
	for _, line := range cart.SortedLines() {
		vl := CartViewLine{ItemID: line.ItemID, Quantity: line.Quantity}

		item, err := s.displayItem(ctx, line.ItemID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// item left the catalog
		case err != nil:
			return nil, err
		default:
			price := item.Price
			subtotal := price.Mul(line.Quantity)
			total, err := view.Total.Add(subtotal)
			if err != nil {
				return nil, err
			}
			vl.Name = item.Name
			vl.ImageURL = item.ImageURL
			vl.UnitPrice = &price
			vl.Subtotal = &subtotal
			vl.Available = true
			view.Total = total
		}
		view.Lines = append(view.Lines, vl)
	}
	return view, nil
}

// ForgetItem drops the display copy of an item so the next read sees the catalog change.
func (s *CartService) ForgetItem(itemID int64) {
	s.display.Remove(itemID)
}

func (s *CartService) displayItem(ctx context.Context, itemID int64) (*domain.Item, error) {
	if item, ok := s.display.Get(itemID); ok {
		return item, nil
	}
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.display.Add(itemID, item)
	return item, nil
}

func (s *CartService) AddItem(ctx context.Context, userID string, itemID int64) (*domain.Cart, error) {
	if _, err := s.catalog.GetItem(ctx, itemID); err != nil {
		return nil, err
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		return cart.Add(itemID, s.now().UTC())
	})
}

func (s *CartService) SetQuantity(ctx context.Context, userID string, itemID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 || quantity > domain.MaxLineQuantity {
		return nil, domain.ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		return cart.SetQuantity(itemID, quantity)
	})
}

// RemoveItem is a no-op when the line is absent.
func (s *CartService) RemoveItem(ctx context.Context, userID string, itemID int64) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(cart *domain.Cart) error {
		if !cart.Remove(itemID) {
			return errUnchanged
		}
		return nil
	})
}

func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	s.writeCounter(userID).Add(1)
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.log.ErrorContext(ctx, "repo delete cart failed", "user_id", userID, "error", err)
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}

	s.invalidateCache(ctx, userID)
	return nil
}

var errUnchanged = errors.New("cart unchanged")

// mutate runs a read-modify-write of the whole cart and retries when another writer
// bumped the version in between.
func (s *CartService) mutate(ctx context.Context, userID string, apply func(*domain.Cart) error) (*domain.Cart, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		cart, err := s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			cart = domain.NewCart(userID)
		} else if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}

		if err := apply(cart); err != nil {
			if errors.Is(err, errUnchanged) {
				return cart, nil
			}
			return nil, err
		}

		s.writeCounter(userID).Add(1)
		err = s.repo.SaveCart(ctx, cart)
		if err == nil {
			s.invalidateCache(ctx, userID)
			return cart, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			s.log.ErrorContext(ctx, "repo save cart failed", "user_id", userID, "error", err)
			return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		s.log.DebugContext(ctx, "cart version conflict, retrying", "user_id", userID, "attempt", attempt)
	}

	return nil, domain.ErrConcurrentModification
}

func (s *CartService) writeCounter(userID string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.writes[h.Sum32()%writeStripes]
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	s.writeCounter(userID).Add(1)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.log.WarnContext(ctx, "cache invalidate failed", "user_id", userID, "error", err)
	}
}
