// Package checkout turns a checkout request into a persisted, price-verified order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/fjod/foodcart/internal/payment/client"
	"github.com/fjod/foodcart/pkg/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
)

// Catalog resolves items at their current price.
type Catalog interface {
	GetItem(ctx context.Context, id int64) (*domain.Item, error)
}

type Authorizer interface {
	ConfirmCapture(ctx context.Context, handle string) (client.Capture, error)
	Refund(ctx context.Context, handle string) error
}

// OutcomeRecorder counts checkout results.
type OutcomeRecorder interface {
	ObserveCheckout(outcome string)
}

const (
	OutcomePlaced        = "placed"
	OutcomeReplayed      = "replayed"
	OutcomeRejected      = "rejected"
	OutcomePaymentFailed = "payment_failed"
	OutcomeConflict      = "conflict"
	OutcomeError         = "error"
)

var ErrIllegalTransition = errors.New("illegal transition of checkout status")

type Result struct {
	Order *domain.Order
	// Replayed is set when the authorization already produced this order earlier.
	Replayed bool
}

type Service struct {
	catalog  Catalog
	payments Authorizer
	ledger   repository.OrderRepository
	locker   Locker
	metrics  OutcomeRecorder
	log      *slog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(m OutcomeRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(catalog Catalog, payments Authorizer, ledger repository.OrderRepository, locker Locker, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:  catalog,
		payments: payments,
		ledger:   ledger,
		locker:   locker,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// attempt tracks one PlaceOrder call through the checkout states.
type attempt struct {
	status domain.CheckoutStatus
	log    *slog.Logger
}

func (a *attempt) advance(ctx context.Context, to domain.CheckoutStatus) error {
	if !domain.CanTransitionTo(a.status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, a.status, to)
	}
	a.log.DebugContext(ctx, "checkout transition", "from", a.status, "to", to)
	a.status = to
	return nil
}

// fail moves the attempt to a terminal failure state and returns cause.
func (a *attempt) fail(ctx context.Context, to domain.CheckoutStatus, cause error) error {
	if err := a.advance(ctx, to); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// PlaceOrder runs the checks in order and stops at the first failure: destination, line
// resolution, total recomputation and comparison, then payment capture. Only when all
// pass is the order appended to the ledger.
func (s *Service) PlaceOrder(ctx context.Context, ownerID string, req domain.CheckoutRequest, handle string) (res *Result, err error) {
	ctx, span := otel.AddSpan(ctx, "checkout.PlaceOrder", attribute.String("owner_id", ownerID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
		s.observe(res, err)
	}()

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: authorization handle is required", domain.ErrValidation)
	}
	log := s.log.With("owner_id", ownerID, "authorization_handle", handle)

	release, err := s.locker.Acquire(ctx, "checkout:"+ownerID)
	if err != nil {
		return nil, err
	}
	defer release()

	if res, err := s.replay(ctx, ownerID, handle); res != nil || err != nil {
		return res, err
	}

	a := &attempt{status: domain.CheckoutStatusComposing, log: log}

	if err := validateRequest(req); err != nil {
		return nil, a.fail(ctx, domain.CheckoutStatusRejected, err)
	}

	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, a.fail(ctx, domain.CheckoutStatusRejected, err)
	}

	total, err := domain.SumLines(lines, lines[0].Price.Currency)
	if err != nil {
		return nil, a.fail(ctx, domain.CheckoutStatusRejected, err)
	}

	if !total.Equal(req.ClaimedTotal) {
		log.InfoContext(ctx, "claimed total rejected", "expected", total.String(), "got", req.ClaimedTotal.String())
		return nil, a.fail(ctx, domain.CheckoutStatusRejected, &domain.TotalMismatchError{Expected: total, Got: req.ClaimedTotal})
	}
	if err := a.advance(ctx, domain.CheckoutStatusTotalVerified); err != nil {
		return nil, err
	}
	if err := a.advance(ctx, domain.CheckoutStatusAwaitingAuthorization); err != nil {
		return nil, err
	}

	if err := s.confirmPayment(ctx, log, handle, total); err != nil {
		return nil, a.fail(ctx, domain.CheckoutStatusPaymentFailed, err)
	}
	if err := a.advance(ctx, domain.CheckoutStatusAuthorizationConfirmed); err != nil {
		return nil, err
	}

	order, err := domain.NewOrder(ownerID, handle, lines, req.Destination, domain.PaymentStatusPaid, s.now())
	if err != nil {
		s.refund(ctx, log, handle)
		return nil, a.fail(ctx, domain.CheckoutStatusRejected, err)
	}

	if err := s.ledger.Append(ctx, order); err != nil {
		if errors.Is(err, repository.ErrDuplicateCheckout) {
			// another instance appended an order for this authorization first
			if res, rerr := s.replay(ctx, ownerID, handle); res != nil || rerr != nil {
				return res, rerr
			}
		}
		log.ErrorContext(ctx, "failed to append order", "order_id", order.ID, "error", err)
		s.refund(ctx, log, handle)
		return nil, a.fail(ctx, domain.CheckoutStatusRejected, fmt.Errorf("%w: %w", domain.ErrPersistence, err))
	}
	if err := a.advance(ctx, domain.CheckoutStatusPersisted); err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "order placed", "order_id", order.ID, "total", order.TotalAmount.String())
	return &Result{Order: order}, nil
}

// replay returns the order an authorization already produced. It returns nil, nil when the
// handle is unused.
func (s *Service) replay(ctx context.Context, ownerID, handle string) (*Result, error) {
	existing, err := s.ledger.GetByAuthorizationHandle(ctx, handle)
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: check authorization: %w", domain.ErrPersistence, err)
	case existing.OwnerID != ownerID:
		return nil, domain.ErrAuthorizationInUse
	}
	s.log.InfoContext(ctx, "duplicate checkout detected", "owner_id", ownerID, "order_id", existing.ID)
	return &Result{Order: existing, Replayed: true}, nil
}

func validateRequest(req domain.CheckoutRequest) error {
	if err := req.Destination.Validate(); err != nil {
		return err
	}
	if len(req.Lines) == 0 {
		return domain.ErrEmptyCheckout
	}
	for _, line := range req.Lines {
		if line.Quantity < 1 || line.Quantity > domain.MaxLineQuantity {
			return fmt.Errorf("item %d: %w", line.ItemID, domain.ErrInvalidQuantity)
		}
	}
	return nil
}

// resolveLines looks items up one by one in request order, so the first unknown item
// is the one reported. Repeated items are merged into the first line.
func (s *Service) resolveLines(ctx context.Context, requested []domain.CheckoutLine) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(requested))
	index := make(map[int64]int, len(requested))

	for _, req := range requested {
		if i, ok := index[req.ItemID]; ok {
			lines[i].Quantity += req.Quantity
			if lines[i].Quantity > domain.MaxLineQuantity {
				return nil, fmt.Errorf("item %d: %w", req.ItemID, domain.ErrInvalidQuantity)
			}
			continue
		}

		item, err := s.catalog.GetItem(ctx, req.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: resolve item %d: %w", domain.ErrPersistence, req.ItemID, err)
		}

		index[req.ItemID] = len(lines)
		lines = append(lines, domain.OrderLine{
			ItemID:   item.ID,
			Name:     item.Name,
			Quantity: req.Quantity,
			Price:    item.Price,
		})
	}
	return lines, nil
}

// confirmPayment fails closed: a gateway error, a declined capture or a captured amount
// other than the order total all count as a failed payment.
func (s *Service) confirmPayment(ctx context.Context, log *slog.Logger, handle string, total domain.Money) error {
	ctx, span := otel.AddSpan(ctx, "checkout.ConfirmCapture")
	defer span.End()

	capture, err := s.payments.ConfirmCapture(ctx, handle)
	if err != nil {
		log.WarnContext(ctx, "capture not confirmed", "error", err)
		return &domain.PaymentFailedError{Reason: "payment could not be confirmed", Err: err}
	}
	if !capture.Succeeded {
		log.InfoContext(ctx, "capture declined", "reason", capture.Reason)
		return &domain.PaymentFailedError{Reason: capture.Reason}
	}
	if !capture.CapturedAmount.Equal(total) {
		log.WarnContext(ctx, "captured amount differs from order total", "captured", capture.CapturedAmount.String(), "total", total.String())
		s.refund(ctx, log, handle)
		return &domain.PaymentFailedError{
			Reason: fmt.Sprintf("captured %s but order total is %s", capture.CapturedAmount, total),
		}
	}
	return nil
}

// refund voids a capture that will not back an order. Failures are logged for manual
// reconciliation.
func (s *Service) refund(ctx context.Context, log *slog.Logger, handle string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.payments.Refund(ctx, handle); err != nil {
		log.ErrorContext(ctx, "refund failed, manual reconciliation required", "error", err)
		return
	}
	log.InfoContext(ctx, "capture refunded")
}

func (s *Service) observe(res *Result, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveCheckout(outcome(res, err))
}

func outcome(res *Result, err error) string {
	switch {
	case err == nil && res.Replayed:
		return OutcomeReplayed
	case err == nil:
		return OutcomePlaced
	case errors.Is(err, domain.ErrPayment):
		return OutcomePaymentFailed
	case errors.Is(err, domain.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrIntegrity):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
