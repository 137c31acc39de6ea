// Package http is the JSON API of the order service.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/foodcart/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type totalMismatchDetails struct {
	Expected domain.Money `json:"expected"`
	Got      domain.Money `json:"got"`
}

type paymentFailedDetails struct {
	Reason string `json:"reason"`
}

type incompleteAddressDetails struct {
	Missing []string `json:"missing"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// handleError maps domain error categories to HTTP statuses. Unclassified errors are
// logged and reported without their message.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		mismatch   *domain.TotalMismatchError
		payment    *domain.PaymentFailedError
		incomplete *domain.IncompleteAddressError
		notFound   *domain.ItemNotFoundError
	)

	switch {
	case errors.As(err, &mismatch):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Code:    "total_mismatch",
			Details: totalMismatchDetails{Expected: mismatch.Expected, Got: mismatch.Got},
		})
	case errors.As(err, &incomplete):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   err.Error(),
			Code:    "incomplete_address",
			Details: incompleteAddressDetails{Missing: incomplete.Missing},
		})
	case errors.As(err, &payment):
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:   err.Error(),
			Code:    "payment_failed",
			Details: paymentFailedDetails{Reason: payment.Reason},
		})
	case errors.Is(err, domain.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, domain.ErrEmptyCheckout):
		respondError(w, http.StatusBadRequest, "empty_checkout", err.Error())
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &notFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrCheckoutInProgress):
		respondError(w, http.StatusConflict, "checkout_in_progress", err.Error())
	case errors.Is(err, domain.ErrAuthorizationInUse):
		respondError(w, http.StatusConflict, "authorization_in_use", err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, domain.ErrPayment):
		log.ErrorContext(r.Context(), "payment gateway error", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "payment_gateway_error", "payment gateway unavailable")
	default:
		log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errInvalidBody
	}
	return nil
}

var (
	errInvalidBody  = errors.New("invalid JSON body")
	errBodyTooLarge = errors.New("request body too large")
)

func respondDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error())
		return
	}
	respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
