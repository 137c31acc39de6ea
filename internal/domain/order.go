package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "PENDING"
	PaymentStatusPaid    PaymentStatus = "PAID"
	PaymentStatusFailed  PaymentStatus = "FAILED"
)

// OrderLine is a snapshot of the catalog entry at order time.
type OrderLine struct {
	ItemID   int64  `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    Money  `json:"price"`
}

func (l OrderLine) Subtotal() Money {
	return l.Price.Mul(l.Quantity)
}

// Order is immutable once appended to the ledger.
type Order struct {
	ID                  uuid.UUID
	OwnerID             string
	AuthorizationHandle string
	Lines               []OrderLine
	TotalAmount         Money
	PaymentStatus       PaymentStatus
	Destination         Address
	CreatedAt           time.Time
}

// NewOrder computes TotalAmount from the lines; callers cannot set it.
func NewOrder(ownerID, handle string, lines []OrderLine, destination Address, status PaymentStatus, now time.Time) (*Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCheckout
	}
	total, err := SumLines(lines, lines[0].Price.Currency)
	if err != nil {
		return nil, err
	}

	snapshot := make([]OrderLine, len(lines))
	copy(snapshot, lines)

	return &Order{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		AuthorizationHandle: handle,
		Lines:               snapshot,
		TotalAmount:         total,
		PaymentStatus:       status,
		Destination:         destination,
		CreatedAt:           now.UTC(),
	}, nil
}

func SumLines(lines []OrderLine, cur currency.Unit) (Money, error) {
	total := Zero(cur)
	for _, line := range lines {
		next, err := total.Add(line.Subtotal())
		if err != nil {
			return Money{}, fmt.Errorf("line %d: %w", line.ItemID, err)
		}
		total = next
	}
	return total, nil
}
