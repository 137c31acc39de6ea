package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Concrete errors match one of them with errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrNotFound    = errors.New("not found")
	ErrIntegrity   = errors.New("integrity error")
	ErrPayment     = errors.New("payment error")
	ErrPersistence = errors.New("persistence error")
	ErrConflict    = errors.New("conflict")
)

var (
	ErrInvalidQuantity        = fmt.Errorf("%w: quantity must be between 1 and %d", ErrValidation, MaxLineQuantity)
	ErrLineNotFound           = fmt.Errorf("%w: item not found in cart", ErrNotFound)
	ErrEmptyCheckout          = fmt.Errorf("%w: checkout has no lines", ErrValidation)
	ErrConcurrentModification = fmt.Errorf("%w: cart was modified concurrently", ErrConflict)
	ErrAuthorizationInUse     = fmt.Errorf("%w: authorization handle already used", ErrConflict)
	ErrCheckoutInProgress     = fmt.Errorf("%w: another checkout is in progress", ErrConflict)
)

type IncompleteAddressError struct {
	Missing []string
}

func (e *IncompleteAddressError) Error() string {
	return "incomplete address: missing " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteAddressError) Is(target error) bool {
	return target == ErrValidation
}

type ItemNotFoundError struct {
	ItemID int64
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d not found", e.ItemID)
}

func (e *ItemNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TotalMismatchError reports a claimed total that disagrees with current catalog prices.
type TotalMismatchError struct {
	Expected Money
	Got      Money
}

func (e *TotalMismatchError) Error() string {
	return fmt.Sprintf("total mismatch: expected %s, got %s", e.Expected, e.Got)
}

func (e *TotalMismatchError) Is(target error) bool {
	return target == ErrIntegrity
}

type PaymentFailedError struct {
	Reason string
	Err    error
}

func (e *PaymentFailedError) Error() string {
	if e.Reason == "" {
		return "payment failed"
	}
	return "payment failed: " + e.Reason
}

func (e *PaymentFailedError) Unwrap() error {
	return e.Err
}

func (e *PaymentFailedError) Is(target error) bool {
	return target == ErrPayment
}

// GatewayError is returned when the payment gateway cannot be reached or refuses a request.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrPayment
}
