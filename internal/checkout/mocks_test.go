package checkout

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/fjod/foodcart/internal/payment/client"
)

type mockCatalog struct {
	m     sync.Mutex
	items map[int64]*domain.Item
	calls []int64
}

func (c *mockCatalog) GetItem(_ context.Context, id int64) (*domain.Item, error) {
	c.m.Lock()
	defer c.m.Unlock()
	c.calls = append(c.calls, id)
	item, ok := c.items[id]
	if !ok {
		return nil, &domain.ItemNotFoundError{ItemID: id}
	}
	copied := *item
	return &copied, nil
}

func (c *mockCatalog) setPrice(id int64, price domain.Money) {
	c.m.Lock()
	defer c.m.Unlock()
	c.items[id].Price = price
}

func (c *mockCatalog) delete(id int64) {
	c.m.Lock()
	defer c.m.Unlock()
	delete(c.items, id)
}

func (c *mockCatalog) lookups() []int64 {
	c.m.Lock()
	defer c.m.Unlock()
	return append([]int64(nil), c.calls...)
}

// mockAuthorizer captures the full order total unless told otherwise.
type mockAuthorizer struct {
	m            sync.Mutex
	capture      *client.Capture
	captureErr   error
	captureCalls int
	refunds      []string
	total        func() domain.Money
}

func (a *mockAuthorizer) ConfirmCapture(_ context.Context, _ string) (client.Capture, error) {
	a.m.Lock()
	defer a.m.Unlock()
	a.captureCalls++
	if a.captureErr != nil {
		return client.Capture{}, a.captureErr
	}
	if a.capture != nil {
		return *a.capture, nil
	}
	return client.Capture{Succeeded: true, CapturedAmount: a.total()}, nil
}

func (a *mockAuthorizer) Refund(_ context.Context, handle string) error {
	a.m.Lock()
	defer a.m.Unlock()
	a.refunds = append(a.refunds, handle)
	return nil
}

func (a *mockAuthorizer) calls() int {
	a.m.Lock()
	defer a.m.Unlock()
	return a.captureCalls
}

type failingLedger struct {
	repository.Ledger
	appendErr error
}

func (f *failingLedger) Append(ctx context.Context, order *domain.Order) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.Ledger.Append(ctx, order)
}

type recordingMetrics struct {
	m        sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) ObserveCheckout(outcome string) {
	r.m.Lock()
	defer r.m.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

type heldLocker struct{}

func (heldLocker) Acquire(context.Context, string) (func(), error) {
	return nil, domain.ErrCheckoutInProgress
}

var errDatabaseDown = errors.New("database down")
