package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/foodcart/internal/cart/service"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	ReadCart(ctx context.Context, userID string) (*service.CartView, error)
	AddItem(ctx context.Context, userID string, itemID int64) (*domain.Cart, error)
	SetQuantity(ctx context.Context, userID string, itemID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID int64) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts CartService, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout, log: log}
}

type AddItemRequestDTO struct {
	ItemID int64 `json:"item_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartLineDTO struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

type CartResponseDTO struct {
	UserID  string        `json:"user_id"`
	Lines   []CartLineDTO `json:"lines"`
	Version int64         `json:"version"`
}

func convertCart(userID string, cart *domain.Cart) CartResponseDTO {
	dto := CartResponseDTO{UserID: userID, Lines: make([]CartLineDTO, 0)}
	if cart == nil {
		return dto
	}
	dto.Version = cart.Version
	for _, line := range cart.SortedLines() {
		dto.Lines = append(dto.Lines, CartLineDTO{ItemID: line.ItemID, Quantity: line.Quantity})
	}
	return dto
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	view, err := h.carts.ReadCart(ctx, userID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}
	if req.ItemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be positive")
		return
	}

	userID := getUserIDFromContext(r.Context())
	cart, err := h.carts.AddItem(ctx, userID, req.ItemID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(userID, cart))
}

// PUT /api/v1/cart/items/{item_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	userID := getUserIDFromContext(r.Context())
	cart, err := h.carts.SetQuantity(ctx, userID, itemID, req.Quantity)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(userID, cart))
}

// DELETE /api/v1/cart/items/{item_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	itemID, ok := itemIDParam(w, r)
	if !ok {
		return
	}

	userID := getUserIDFromContext(r.Context())
	cart, err := h.carts.RemoveItem(ctx, userID, itemID)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(userID, cart))
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if err := h.carts.ClearCart(ctx, userID); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, convertCart(userID, nil))
}

func itemIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	itemID, err := strconv.ParseInt(chi.URLParam(r, "item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item_id must be a positive integer")
		return 0, false
	}
	return itemID, true
}
