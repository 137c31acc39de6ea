package paymentrpc

type CaptureStatus string

const (
	CaptureStatusSuccess CaptureStatus = "CAPTURE_STATUS_SUCCESS"
	CaptureStatusFailed  CaptureStatus = "CAPTURE_STATUS_FAILED"
)

type PaymentRefusal string

const (
	RefusalUnknown           PaymentRefusal = "UNKNOWN"
	RefusalInsufficientFunds PaymentRefusal = "INSUFFICIENT_FUNDS"
	RefusalCardDeclined      PaymentRefusal = "CARD_DECLINED"
	RefusalCardExpired       PaymentRefusal = "CARD_EXPIRED"
	RefusalFraudSuspected    PaymentRefusal = "FRAUD_SUSPECTED"
	RefusalLimitExceeded     PaymentRefusal = "LIMIT_EXCEEDED"
)

// Amounts travel as decimal strings.
type AuthorizeRequest struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

type AuthorizeResponse struct {
	Handle    string `json:"handle"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	ExpiresAt string `json:"expires_at"`
}

type CaptureRequest struct {
	Handle string `json:"handle"`
}

type CaptureResponse struct {
	Status        CaptureStatus  `json:"status"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Amount        string         `json:"amount,omitempty"`
	Currency      string         `json:"currency,omitempty"`
	Refusal       PaymentRefusal `json:"refusal,omitempty"`
	Reason        string         `json:"reason,omitempty"`
}

type RefundRequest struct {
	Handle string `json:"handle"`
}

type RefundResponse struct{}
