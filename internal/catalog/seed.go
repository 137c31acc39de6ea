package catalog

import (
	"context"
	"fmt"

	"github.com/fjod/foodcart/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type seedItem struct {
	name, category, price, image string
}

var defaultMenu = []seedItem{
	{"Margherita Pizza", "pizza", "12.50", "/images/margherita.jpg"},
	{"Pepperoni Pizza", "pizza", "14.00", "/images/pepperoni.jpg"},
	{"Chicken Pad Thai", "noodles", "11.75", "/images/pad-thai.jpg"},
	{"Beef Ramen", "noodles", "13.20", "/images/ramen.jpg"},
	{"Caesar Salad", "salads", "8.90", "/images/caesar.jpg"},
	{"Spring Rolls", "sides", "4.50", "/images/spring-rolls.jpg"},
	{"Lemonade", "drinks", "2.80", "/images/lemonade.jpg"},
}

// Seed inserts the default menu when the catalog is empty.
func Seed(ctx context.Context, repo RepoInterface, cur currency.Unit) (int, error) {
	existing, err := repo.ListItems(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for _, s := range defaultMenu {
		item := &domain.Item{
			Name:     s.name,
			Category: s.category,
			Price:    domain.NewMoney(decimal.RequireFromString(s.price), cur),
			ImageURL: s.image,
		}
		if _, err := repo.CreateItem(ctx, item); err != nil {
			return 0, fmt.Errorf("seed %q: %w", s.name, err)
		}
	}
	return len(defaultMenu), nil
}
