package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_AddSameItemTwice(t *testing.T) {
	cart := NewCart("user-1")
	now := time.Now()

	cart.Add(7, now)
	cart.Add(7, now.Add(time.Second))

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[7].Quantity)
	assert.Equal(t, now, cart.Lines[7].AddedAt)
}

func TestCart_AddStopsAtLimit(t *testing.T) {
	cart := NewCart("user-1")
	require.NoError(t, cart.Add(1, time.Now()))
	require.NoError(t, cart.SetQuantity(1, MaxLineQuantity-1))

	require.NoError(t, cart.Add(1, time.Now()))
	assert.Equal(t, MaxLineQuantity, cart.Lines[1].Quantity)

	assert.ErrorIs(t, cart.Add(1, time.Now()), ErrInvalidQuantity)
	assert.Equal(t, MaxLineQuantity, cart.Lines[1].Quantity)
}

func TestCart_SetQuantity(t *testing.T) {
	tests := []struct {
		name     string
		itemID   int64
		quantity int
		wantErr  error
	}{
		{name: "ok", itemID: 1, quantity: 5},
		{name: "zero quantity", itemID: 1, quantity: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", itemID: 1, quantity: -3, wantErr: ErrInvalidQuantity},
		{name: "above limit", itemID: 1, quantity: MaxLineQuantity + 1, wantErr: ErrInvalidQuantity},
		{name: "missing line", itemID: 2, quantity: 3, wantErr: ErrLineNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cart := NewCart("user-1")
			cart.Add(1, time.Now())

			err := cart.SetQuantity(tt.itemID, tt.quantity)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 1, cart.Lines[1].Quantity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.quantity, cart.Lines[tt.itemID].Quantity)
		})
	}
}

func TestCart_RemoveAbsentLineIsNoop(t *testing.T) {
	cart := NewCart("user-1")
	cart.Add(1, time.Now())

	assert.False(t, cart.Remove(42))
	assert.Len(t, cart.Lines, 1)
	assert.True(t, cart.Remove(1))
	assert.True(t, cart.IsEmpty())
}

func TestCart_SortedLines(t *testing.T) {
	cart := NewCart("user-1")
	base := time.Now()
	cart.Add(3, base.Add(2*time.Second))
	cart.Add(1, base)
	cart.Add(2, base)

	lines := cart.SortedLines()
	require.Len(t, lines, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{lines[0].ItemID, lines[1].ItemID, lines[2].ItemID})
}

func TestCart_ClearEmpty(t *testing.T) {
	cart := NewCart("user-1")
	cart.Clear()
	assert.True(t, cart.IsEmpty())
	assert.NotNil(t, cart.Lines)
}
