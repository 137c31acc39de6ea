package domain

import "time"

// Item is a purchasable catalog entry. Its price may change over time.
type Item struct {
	ID        int64
	Name      string
	Category  string
	Price     Money
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
