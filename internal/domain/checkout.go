package domain

// CheckoutStatus is a step of the order assembly state machine.
type CheckoutStatus string

const (
	CheckoutStatusComposing              CheckoutStatus = "COMPOSING"
	CheckoutStatusAwaitingAuthorization  CheckoutStatus = "AWAITING_AUTHORIZATION"
	CheckoutStatusAuthorizationConfirmed CheckoutStatus = "AUTHORIZATION_CONFIRMED"
	CheckoutStatusTotalVerified          CheckoutStatus = "TOTAL_VERIFIED"
	CheckoutStatusPersisted              CheckoutStatus = "PERSISTED"
	CheckoutStatusRejected               CheckoutStatus = "REJECTED"
	CheckoutStatusPaymentFailed          CheckoutStatus = "PAYMENT_FAILED"
)

// Checks run address, lines, total, then payment, so the total is verified before the
// capture is confirmed.
var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusComposing:              {CheckoutStatusTotalVerified, CheckoutStatusRejected},
	CheckoutStatusTotalVerified:          {CheckoutStatusAwaitingAuthorization},
	CheckoutStatusAwaitingAuthorization:  {CheckoutStatusAuthorizationConfirmed, CheckoutStatusPaymentFailed},
	CheckoutStatusAuthorizationConfirmed: {CheckoutStatusPersisted, CheckoutStatusRejected},
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusPersisted || s == CheckoutStatusRejected || s == CheckoutStatusPaymentFailed
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type CheckoutLine struct {
	ItemID   int64
	Quantity int
}

// CheckoutRequest is the client's claim; nothing in it is trusted for pricing.
type CheckoutRequest struct {
	Lines        []CheckoutLine
	ClaimedTotal Money
	Destination  Address
}
