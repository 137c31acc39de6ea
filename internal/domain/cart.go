package domain

import (
	"sort"
	"time"
)

const MaxLineQuantity = 99

// Cart is keyed by item id, so an item appears at most once.
// Version is bumped on every persisted write and used as an optimistic lock.
type Cart struct {
	UserID    string             `json:"user_id"`
	Lines     map[int64]CartLine `json:"lines"`
	Version   int64              `json:"version"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type CartLine struct {
	ItemID   int64     `json:"item_id"`
	Quantity int       `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

func NewCart(userID string) *Cart {
	return &Cart{
		UserID: userID,
		Lines:  make(map[int64]CartLine),
	}
}

// Add inserts the item with quantity 1 or increments an existing line. A line already
// at MaxLineQuantity is left as is and ErrInvalidQuantity returned.
func (c *Cart) Add(itemID int64, now time.Time) error {
	if c.Lines == nil {
		c.Lines = make(map[int64]CartLine)
	}
	line, ok := c.Lines[itemID]
	if ok {
		if line.Quantity >= MaxLineQuantity {
			return ErrInvalidQuantity
		}
		line.Quantity++
	} else {
		line = CartLine{ItemID: itemID, Quantity: 1, AddedAt: now}
	}
	c.Lines[itemID] = line
	return nil
}

func (c *Cart) SetQuantity(itemID int64, quantity int) error {
	if quantity < 1 || quantity > MaxLineQuantity {
		return ErrInvalidQuantity
	}
	line, ok := c.Lines[itemID]
	if !ok {
		return ErrLineNotFound
	}
	line.Quantity = quantity
	c.Lines[itemID] = line
	return nil
}

// Remove reports whether a line was present.
func (c *Cart) Remove(itemID int64) bool {
	if _, ok := c.Lines[itemID]; !ok {
		return false
	}
	delete(c.Lines, itemID)
	return true
}

func (c *Cart) Clear() {
	c.Lines = make(map[int64]CartLine)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// SortedLines returns lines in insertion order, ties broken by item id.
func (c *Cart) SortedLines() []CartLine {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].AddedAt.Equal(lines[j].AddedAt) {
			return lines[i].ItemID < lines[j].ItemID
		}
		return lines[i].AddedAt.Before(lines[j].AddedAt)
	})
	return lines
}

func (c *Cart) Clone() *Cart {
	out := *c
	out.Lines = make(map[int64]CartLine, len(c.Lines))
	for id, line := range c.Lines {
		out.Lines[id] = line
	}
	return &out
}
