package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	m := NewServerMetrics("test")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{order_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/{order_id}", "404")))
}

func TestObserveCheckout_Exposed(t *testing.T) {
	m := NewServerMetrics("test")
	m.ObserveCheckout("placed")
	m.ObserveCheckout("total_mismatch")
	m.ObserveCheckout("placed")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("placed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "foodcart_test_checkouts_total"))
}

func TestNewServerMetrics_Twice(t *testing.T) {
	assert.NotPanics(t, func() {
		NewServerMetrics("a")
		NewServerMetrics("a")
	})
}
