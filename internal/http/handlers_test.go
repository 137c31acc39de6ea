package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fjod/foodcart/internal/cart/service"
	"github.com/fjod/foodcart/internal/checkout"
	"github.com/fjod/foodcart/internal/domain"
	"github.com/fjod/foodcart/internal/orders/repository"
	"github.com/fjod/foodcart/internal/payment/client"
	"github.com/fjod/foodcart/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

func usd(v string) domain.Money {
	return domain.NewMoney(decimal.RequireFromString(v), currency.USD)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"total mismatch", &domain.TotalMismatchError{Expected: usd("240"), Got: usd("235")}, http.StatusBadRequest, "total_mismatch"},
		{"incomplete address", &domain.IncompleteAddressError{Missing: []string{"city"}}, http.StatusBadRequest, "incomplete_address"},
		{"invalid quantity", fmt.Errorf("item 1: %w", domain.ErrInvalidQuantity), http.StatusBadRequest, "invalid_quantity"},
		{"empty checkout", domain.ErrEmptyCheckout, http.StatusBadRequest, "empty_checkout"},
		{"validation", fmt.Errorf("%w: bad", domain.ErrValidation), http.StatusBadRequest, "invalid_request"},
		{"item not found", &domain.ItemNotFoundError{ItemID: 7}, http.StatusNotFound, "item_not_found"},
		{"line not found", domain.ErrLineNotFound, http.StatusNotFound, "not_found"},
		{"payment failed", &domain.PaymentFailedError{Reason: "CARD_DECLINED"}, http.StatusPaymentRequired, "payment_failed"},
		{"checkout in progress", domain.ErrCheckoutInProgress, http.StatusConflict, "checkout_in_progress"},
		{"authorization in use", domain.ErrAuthorizationInUse, http.StatusConflict, "authorization_in_use"},
		{"concurrent modification", domain.ErrConcurrentModification, http.StatusConflict, "conflict"},
		{"gateway down", &domain.GatewayError{Op: "authorize", Err: errors.New("unavailable")}, http.StatusInternalServerError, "payment_gateway_error"},
		{"timeout", fmt.Errorf("read cart: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"persistence", fmt.Errorf("%w: disk full", domain.ErrPersistence), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger.Discard(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

func TestHandleError_Details(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), logger.Discard(),
		&domain.TotalMismatchError{Expected: usd("240"), Got: usd("235")})

	var resp struct {
		Details totalMismatchDetails `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Details.Expected.Equal(usd("240")))
	assert.True(t, resp.Details.Got.Equal(usd("235")))

	rec = httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodPost, "/", nil), logger.Discard(),
		&domain.PaymentFailedError{Reason: "INSUFFICIENT_FUNDS"})
	assert.JSONEq(t, `{"error":"payment failed: INSUFFICIENT_FUNDS","code":"payment_failed","details":{"reason":"INSUFFICIENT_FUNDS"}}`, rec.Body.String())
}

func TestHandleError_HidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	handleError(rec, httptest.NewRequest(http.MethodGet, "/", nil), logger.Discard(),
		errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestAuthMiddleware(t *testing.T) {
	var seen string
	h := AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = getUserIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(UserIDHeader, " user-42 ")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", seen)
}

type mockCartService struct {
	cart    *domain.Cart
	err     error
	cleared []string
}

func (m *mockCartService) ReadCart(_ context.Context, userID string) (*service.CartView, error) {
	return &service.CartView{UserID: userID, Lines: []service.CartViewLine{}, Total: domain.Zero(currency.USD)}, m.err
}

func (m *mockCartService) AddItem(context.Context, string, int64) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) SetQuantity(context.Context, string, int64, int) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) RemoveItem(context.Context, string, int64) (*domain.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartService) ClearCart(_ context.Context, userID string) error {
	m.cleared = append(m.cleared, userID)
	return m.err
}

func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(withUserID(r.Context(), userID))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestCartHandler_AddItem(t *testing.T) {
	cart := domain.NewCart("user-1")
	cart.Add(3, time.Now())
	cart.Version = 1
	h := NewCartHandler(&mockCartService{cart: cart}, time.Second, logger.Discard())

	rec := httptest.NewRecorder()
	h.AddItem(rec, withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":3}`)), "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"user-1","lines":[{"item_id":3,"quantity":1}],"version":1}`, rec.Body.String())
}

func TestCartHandler_BadInput(t *testing.T) {
	h := NewCartHandler(&mockCartService{}, time.Second, logger.Discard())

	rec := httptest.NewRecorder()
	h.AddItem(rec, withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)), "user-1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.AddItem(rec, withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"item_id":0}`)), "user-1"))
	assert.Equal(t, "invalid_item_id", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	req := withURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"quantity":2}`)), "item_id", "abc")
	h.UpdateQuantity(rec, withUser(req, "user-1"))
	assert.Equal(t, "invalid_item_id", decodeError(t, rec).Code)
}

func TestCartHandler_UpdateQuantityErrors(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrLineNotFound, http.StatusNotFound},
		{domain.ErrConcurrentModification, http.StatusConflict},
	}
	for _, tt := range tests {
		h := NewCartHandler(&mockCartService{err: tt.err}, time.Second, logger.Discard())
		rec := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"quantity":100}`)), "item_id", "3")
		h.UpdateQuantity(rec, withUser(req, "user-1"))
		assert.Equal(t, tt.wantStatus, rec.Code, tt.err.Error())
	}
}

func TestCartHandler_ClearCart(t *testing.T) {
	carts := &mockCartService{}
	h := NewCartHandler(carts, time.Second, logger.Discard())

	rec := httptest.NewRecorder()
	h.ClearCart(rec, withUser(httptest.NewRequest(http.MethodDelete, "/", nil), "user-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"user-1","lines":[],"version":0}`, rec.Body.String())
	assert.Equal(t, []string{"user-1"}, carts.cleared)
}

type mockAuthorizer struct {
	got domain.Money
	err error
}

func (m *mockAuthorizer) CreateAuthorization(_ context.Context, amount domain.Money) (client.Authorization, error) {
	m.got = amount
	if m.err != nil {
		return client.Authorization{}, m.err
	}
	return client.Authorization{Handle: "auth_1", Amount: amount}, nil
}

func TestPaymentHandler_CreateAuthorization(t *testing.T) {
	payments := &mockAuthorizer{}
	h := NewPaymentHandler(payments, currency.EUR, time.Second, logger.Discard())

	rec := httptest.NewRecorder()
	h.CreateAuthorization(rec, withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":"24.50"}`)), "user-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, payments.got.Equal(domain.NewMoney(decimal.RequireFromString("24.5"), currency.EUR)), "base currency by default")

	var resp AuthorizationResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "auth_1", resp.AuthorizationHandle)
}

func TestPaymentHandler_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"zero amount", `{"amount":0}`, nil, http.StatusBadRequest, "invalid_amount"},
		{"negative amount", `{"amount":"-5"}`, nil, http.StatusBadRequest, "invalid_amount"},
		{"bad currency", `{"amount":5,"currency":"DOLLARS"}`, nil, http.StatusBadRequest, "invalid_currency"},
		{"gateway down", `{"amount":5}`, &domain.GatewayError{Op: "authorize", Err: errors.New("unavailable")}, http.StatusInternalServerError, "payment_gateway_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewPaymentHandler(&mockAuthorizer{err: tt.err}, currency.USD, time.Second, logger.Discard())
			rec := httptest.NewRecorder()
			h.CreateAuthorization(rec, withUser(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), "user-1"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
		})
	}
}

type mockPlacer struct {
	handle string
	req    domain.CheckoutRequest
	res    *checkout.Result
	err    error
}

func (m *mockPlacer) PlaceOrder(_ context.Context, _ string, req domain.CheckoutRequest, handle string) (*checkout.Result, error) {
	m.handle = handle
	m.req = req
	return m.res, m.err
}

type mockOrders struct {
	orders map[uuid.UUID]*domain.Order
}

func (m *mockOrders) ListByOwner(_ context.Context, ownerID string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, o := range m.orders {
		if o.OwnerID == ownerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockOrders) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	if o, ok := m.orders[id]; ok {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func sampleOrder(t *testing.T, owner string) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder(owner, "auth_1", []domain.OrderLine{{ItemID: 1, Name: "Pho", Quantity: 2, Price: usd("120")}},
		domain.Address{City: "Hanoi"}, domain.PaymentStatusPaid, time.Now())
	require.NoError(t, err)
	return order
}

func placeOrderBody(handle string) *bytes.Buffer {
	body, _ := json.Marshal(PlaceOrderRequestDTO{
		Lines:               []OrderLineRequestDTO{{ItemID: 1, Quantity: 2}},
		ClaimedTotal:        decimal.RequireFromString("240"),
		Destination:         domain.Address{City: "Hanoi"},
		AuthorizationHandle: handle,
	})
	return bytes.NewBuffer(body)
}

func TestOrdersHandler_PlaceOrder(t *testing.T) {
	order := sampleOrder(t, "user-1")
	placer := &mockPlacer{res: &checkout.Result{Order: order}}
	carts := &mockCartService{}
	h := NewOrdersHandler(placer, &mockOrders{}, carts, currency.USD, time.Second, logger.Discard())

	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, withUser(httptest.NewRequest(http.MethodPost, "/", placeOrderBody("auth_1")), "user-1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "auth_1", placer.handle)
	assert.True(t, placer.req.ClaimedTotal.Equal(usd("240")))
	assert.Equal(t, []domain.CheckoutLine{{ItemID: 1, Quantity: 2}}, placer.req.Lines)
	assert.Equal(t, []string{"user-1"}, carts.cleared, "cart is cleared after a new order")

	var resp map[string]OrderResponseDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp, "order")
	assert.Equal(t, order.ID.String(), resp["order"].ID)
	assert.Equal(t, "PAID", resp["order"].PaymentStatus)
}

func TestOrdersHandler_Replay(t *testing.T) {
	placer := &mockPlacer{res: &checkout.Result{Order: sampleOrder(t, "user-1"), Replayed: true}}
	carts := &mockCartService{}
	h := NewOrdersHandler(placer, &mockOrders{}, carts, currency.USD, time.Second, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/", placeOrderBody(""))
	req.Header.Set(IdempotencyKeyHeader, "auth_1")
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, withUser(req, "user-1"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "auth_1", placer.handle, "handle taken from Idempotency-Key")
	assert.Empty(t, carts.cleared)
}

func TestOrdersHandler_HandleDisagreesWithHeader(t *testing.T) {
	placer := &mockPlacer{}
	h := NewOrdersHandler(placer, &mockOrders{}, &mockCartService{}, currency.USD, time.Second, logger.Discard())

	req := httptest.NewRequest(http.MethodPost, "/", placeOrderBody("auth_1"))
	req.Header.Set(IdempotencyKeyHeader, "auth_2")
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, withUser(req, "user-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, placer.handle)
}

func TestOrdersHandler_CartClearFailureKeepsOrder(t *testing.T) {
	placer := &mockPlacer{res: &checkout.Result{Order: sampleOrder(t, "user-1")}}
	carts := &mockCartService{err: errors.New("mongo down")}
	h := NewOrdersHandler(placer, &mockOrders{}, carts, currency.USD, time.Second, logger.Discard())

	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, withUser(httptest.NewRequest(http.MethodPost, "/", placeOrderBody("auth_1")), "user-1"))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestOrdersHandler_GetOrder(t *testing.T) {
	mine := sampleOrder(t, "user-1")
	theirs := sampleOrder(t, "user-2")
	orders := &mockOrders{orders: map[uuid.UUID]*domain.Order{mine.ID: mine, theirs.ID: theirs}}
	h := NewOrdersHandler(&mockPlacer{}, orders, &mockCartService{}, currency.USD, time.Second, logger.Discard())

	get := func(id string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "order_id", id)
		h.GetOrder(rec, withUser(req, "user-1"))
		return rec
	}

	assert.Equal(t, http.StatusOK, get(mine.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get(theirs.ID.String()).Code)
	assert.Equal(t, http.StatusNotFound, get(uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, get("not-a-uuid").Code)
}
