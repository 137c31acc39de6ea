package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/foodcart/internal/domain"
)

type ItemLister interface {
	ListItems(ctx context.Context) ([]*domain.Item, error)
}

type CatalogHandler struct {
	items   ItemLister
	timeout time.Duration
	log     *slog.Logger
}

func NewCatalogHandler(items ItemLister, timeout time.Duration, log *slog.Logger) *CatalogHandler {
	return &CatalogHandler{items: items, timeout: timeout, log: log}
}

type ItemDTO struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Category string       `json:"category,omitempty"`
	Price    domain.Money `json:"price"`
	ImageURL string       `json:"image_url,omitempty"`
}

// GET /api/v1/catalog/items
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	items, err := h.items.ListItems(ctx)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	dtos := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, ItemDTO{
			ID:       item.ID,
			Name:     item.Name,
			Category: item.Category,
			Price:    item.Price,
			ImageURL: item.ImageURL,
		})
	}
	respondJSON(w, http.StatusOK, map[string][]ItemDTO{"items": dtos})
}
