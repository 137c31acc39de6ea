package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderPlacer interface {
	PlaceOrder(ctx context.Context, ownerID string, req domain.CheckoutRequest, handle string) (*checkout.Result, error)
}

type OrderReader interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type OrdersHandler struct {
	checkout OrderPlacer
	orders   OrderReader
	carts    CartClearer
	base     currency.Unit
	timeout  time.Duration
	log      *slog.Logger
}

func NewOrdersHandler(placer OrderPlacer, orders OrderReader, carts CartClearer, base currency.Unit, timeout time.Duration, log *slog.Logger) *OrdersHandler {
	return &OrdersHandler{
		checkout: placer,
		orders:   orders,
		carts:    carts,
		base:     base,
		timeout:  timeout,
		log:      log,
	}
}

type OrderLineRequestDTO struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type PlaceOrderRequestDTO struct {
	Lines               []OrderLineRequestDTO `json:"lines"`
	ClaimedTotal        decimal.Decimal       `json:"claimed_total"`
	Currency            string                `json:"currency,omitempty"`
	Destination         domain.Address        `json:"destination"`
	AuthorizationHandle string                `json:"authorization_handle,omitempty"`
}

type OrderResponseDTO struct {
	ID                  string             `json:"id"`
	OwnerID             string             `json:"owner_id"`
	AuthorizationHandle string             `json:"authorization_handle"`
	Lines               []domain.OrderLine `json:"lines"`
	TotalAmount         domain.Money       `json:"total_amount"`
	PaymentStatus       string             `json:"payment_status"`
	Destination         domain.Address     `json:"destination"`
	CreatedAt           string             `json:"created_at"`
}

type orderEnvelope struct {
	Order OrderResponseDTO `json:"order"`
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	lines := o.Lines
	if lines == nil {
		lines = make([]domain.OrderLine, 0)
	}
	return OrderResponseDTO{
		ID:                  o.ID.String(),
		OwnerID:             o.OwnerID,
		AuthorizationHandle: o.AuthorizationHandle,
		Lines:               lines,
		TotalAmount:         o.TotalAmount,
		PaymentStatus:       string(o.PaymentStatus),
		Destination:         o.Destination,
		CreatedAt:           o.CreatedAt.Format(time.RFC3339Nano),
	}
}

// POST /api/v1/orders
//
// The authorization handle doubles as the idempotency key: a retry with the same handle
// returns the existing order with 200 instead of 201.
func (h *OrdersHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	handle := strings.TrimSpace(req.AuthorizationHandle)
	if header := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader)); header != "" {
		if handle != "" && handle != header {
			respondError(w, http.StatusBadRequest, "invalid_request", "authorization_handle and Idempotency-Key differ")
			return
		}
		handle = header
	}

	cur, err := parseCurrency(req.Currency, h.base)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_currency", err.Error())
		return
	}

	lines := make([]domain.CheckoutLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, domain.CheckoutLine{ItemID: l.ItemID, Quantity: l.Quantity})
	}

	userID := getUserIDFromContext(r.Context())
	res, err := h.checkout.PlaceOrder(ctx, userID, domain.CheckoutRequest{
		Lines:        lines,
		ClaimedTotal: domain.NewMoney(req.ClaimedTotal, cur),
		Destination:  req.Destination,
	}, handle)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	if res.Replayed {
		respondJSON(w, http.StatusOK, orderEnvelope{Order: convertOrder(res.Order)})
		return
	}

	// the order stands even if the cart cannot be cleared now; the order-placed
	// consumer clears it later
	if err := h.carts.ClearCart(context.WithoutCancel(ctx), userID); err != nil {
		h.log.WarnContext(ctx, "failed to clear cart after order", "user_id", userID, "order_id", res.Order.ID, "error", err)
	}
	respondJSON(w, http.StatusCreated, orderEnvelope{Order: convertOrder(res.Order)})
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orders, err := h.orders.ListByOwner(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, map[string][]OrderResponseDTO{"orders": dtos})
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return
	}

	order, err := h.orders.GetByID(ctx, id)
	if err == nil && order.OwnerID != getUserIDFromContext(r.Context()) {
		// other owners' orders are indistinguishable from missing ones
		err = repository.ErrOrderNotFound
	}
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orderEnvelope{Order: convertOrder(order)})
}
