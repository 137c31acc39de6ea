package gateway

import (
	"time"

	"github.com/fjod/foodcart/internal/domain"
)

type AuthorizationState string

const (
	StateAuthorized AuthorizationState = "authorized"
	StateCaptured   AuthorizationState = "captured"
	StateDeclined   AuthorizationState = "declined"
	StateRefunded   AuthorizationState = "refunded"
	StateExpired    AuthorizationState = "expired"
)

// Authorization is a hold on funds that can be captured once.
type Authorization struct {
	Handle        string
	Amount        domain.Money
	State         AuthorizationState
	TransactionID string
	Refusal       string
	Reason        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

func (a *Authorization) IsExpired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
