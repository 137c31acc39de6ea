package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/payment/client"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type PaymentAuthorizer interface {
	CreateAuthorization(ctx context.Context, amount domain.Money) (client.Authorization, error)
}

type PaymentHandler struct {
	payments PaymentAuthorizer
	base     currency.Unit
	timeout  time.Duration
	log      *slog.Logger
}

func NewPaymentHandler(payments PaymentAuthorizer, base currency.Unit, timeout time.Duration, log *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, base: base, timeout: timeout, log: log}
}

type CreateAuthorizationRequestDTO struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
}

type AuthorizationResponseDTO struct {
	AuthorizationHandle string       `json:"authorization_handle"`
	Amount              domain.Money `json:"amount"`
}

// POST /api/v1/payments/authorizations
func (h *PaymentHandler) CreateAuthorization(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateAuthorizationRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	cur, err := parseCurrency(req.Currency, h.base)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_currency", err.Error())
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount must be positive")
		return
	}

	auth, err := h.payments.CreateAuthorization(ctx, domain.NewMoney(req.Amount, cur))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	h.log.InfoContext(ctx, "payment authorized",
		"user_id", getUserIDFromContext(r.Context()), "authorization_handle", auth.Handle, "amount", auth.Amount.String())
	respondJSON(w, http.StatusCreated, AuthorizationResponseDTO{
		AuthorizationHandle: auth.Handle,
		Amount:              auth.Amount,
	})
}

func parseCurrency(code string, fallback currency.Unit) (currency.Unit, error) {
	if strings.TrimSpace(code) == "" {
		return fallback, nil
	}
	return currency.ParseISO(strings.TrimSpace(code))
}
