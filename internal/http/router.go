package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/foodcart/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	ServiceName        string
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Cart     *CartHandler
	Payments *PaymentHandler
	Orders   *OrdersHandler
	Catalog  *CatalogHandler
}

func NewRouter(cfg RouterConfig, hs Handlers, m *metrics.ServerMetrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))

		r.Get("/catalog/items", hs.Catalog.ListItems)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", hs.Cart.GetCart)
				r.Delete("/", hs.Cart.ClearCart)
				r.Post("/items", hs.Cart.AddItem)
				r.Put("/items/{item_id}", hs.Cart.UpdateQuantity)
				r.Delete("/items/{item_id}", hs.Cart.RemoveItem)
			})

			r.Post("/payments/authorizations", hs.Payments.CreateAuthorization)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", hs.Orders.ListOrders)
				r.Post("/", hs.Orders.PlaceOrder)
				r.Get("/{order_id}", hs.Orders.GetOrder)
			})
		})
	})

	return otelhttp.NewHandler(r, cfg.ServiceName)
}
