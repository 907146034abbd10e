package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/jennys-storefront/internal/analytics"
	"github.com/example/jennys-storefront/internal/api/middleware"
	"github.com/example/jennys-storefront/internal/auth"
	"github.com/example/jennys-storefront/internal/checkout"
	"github.com/example/jennys-storefront/internal/domain/cart"
	"github.com/example/jennys-storefront/internal/domain/order"
	"github.com/example/jennys-storefront/internal/domain/product"
	"github.com/example/jennys-storefront/internal/domain/shipping"
	"github.com/example/jennys-storefront/internal/infrastructure/kv"
	"github.com/example/jennys-storefront/internal/infrastructure/store"
	"github.com/example/jennys-storefront/internal/notify"
	"github.com/example/jennys-storefront/internal/payment"
	"github.com/example/jennys-storefront/internal/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret-key-for-testing-purposes"

type fakeCapturer struct {
	mu       sync.Mutex
	requests []payment.CaptureRequest
	decline  bool
}

func (f *fakeCapturer) Capture(_ context.Context, req payment.CaptureRequest) (*payment.CaptureResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.decline {
		return &payment.CaptureResult{ID: "pay_declined", Approved: false, Status: "FAILED"}, nil
	}
	return &payment.CaptureResult{ID: "pay_ok", Approved: true, Status: "COMPLETED"}, nil
}

type testServer struct {
	handler   http.Handler
	handlers  *Handlers
	readStore *store.ReadStore
	products  *product.Service
	capturer  *fakeCapturer
	verifier  *auth.Verifier
	notifier  *notify.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	readStore := store.NewReadStore()
	readStore.MarkReady()
	eventStore := store.NewEventStore(projection.NewProjector(readStore, logger), logger)

	products := product.NewService(eventStore)
	orders := order.NewService(eventStore, logger)
	carts := cart.NewService(kv.NewMemory(), logger)
	notifier := notify.NewHub(time.Minute, logger)
	capturer := &fakeCapturer{}
	co := checkout.NewService(carts, capturer, orders, notifier,
		func(token string) payment.Widget { return payment.NewClientTokenWidget(token) },
		checkout.Config{Currency: "GBP", Shipping: shipping.DefaultPolicy},
		logger)
	verifier := auth.NewVerifier(testSecret, "")

	handlers := NewHandlers(HandlersConfig{
		Products:      products,
		Orders:        orders,
		Carts:         carts,
		Checkout:      co,
		Analytics:     analytics.NewService(readStore, logger),
		Notifications: notifier,
		ReadStore:     readStore,
		Shipping:      shipping.DefaultPolicy,
		Logger:        logger,
	})

	return &testServer{
		handler:   NewRouter(RouterConfig{Handlers: handlers, Verifier: verifier, Logger: logger}),
		handlers:  handlers,
		readStore: readStore,
		products:  products,
		capturer:  capturer,
		verifier:  verifier,
		notifier:  notifier,
	}
}

type requestOption func(r *http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withSession(id string) requestOption {
	return func(r *http.Request) { r.Header.Set(middleware.SessionHeader, id) }
}

func (s *testServer) do(t *testing.T, method, path string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) token(t *testing.T, userID, email, role string) string {
	t.Helper()
	token, err := s.verifier.Issue(userID, email, role, time.Hour)
	require.NoError(t, err)
	return token
}

func (s *testServer) seedProduct(t *testing.T, name, price, category string) string {
	t.Helper()
	p, err := s.products.Create(context.Background(), product.Details{
		Name:     name,
		Price:    decimalFrom(t, price),
		Category: category,
	}, "")
	require.NoError(t, err)
	return p.ID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func checkoutBody(country string) map[string]any {
	return map[string]any{
		"address": map[string]string{
			"full_name":    "Ada Obi",
			"line1":        "1 High Street",
			"city":         "London",
			"postal_code":  "E1 6AN",
			"country_code": country,
			"phone":        "07700900000",
			"email":        "ada@example.com",
		},
		"payment_method": "card",
		"source_id":      "cnon:card-nonce-ok",
	}
}

// ============================================
// Health and Catalog Tests
// ============================================

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","ready":true}`, rec.Body.String())
}

func TestListProducts_LoadingVersusEmpty(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/products", nil)
	assert.JSONEq(t, `{"loading":false,"products":[]}`, rec.Body.String())

	loading := store.NewReadStore()
	h := NewHandlers(HandlersConfig{ReadStore: loading, Logger: zap.NewNop()})
	rec = httptest.NewRecorder()
	h.ListProducts(rec, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	assert.JSONEq(t, `{"loading":true,"products":[]}`, rec.Body.String())
}

func TestAdminProducts_RequireAdmin(t *testing.T) {
	s := newTestServer(t)
	body := map[string]any{"name": "Bob Wig", "price": "40.00", "category": "Wigs"}

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/admin/products", body).Code)
	customer := s.token(t, "user-1", "ada@example.com", auth.RoleCustomer)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodPost, "/api/admin/products", body, withToken(customer)).Code)

	admin := s.token(t, "admin-1", "jenny@example.com", auth.RoleAdmin)
	rec := s.do(t, http.MethodPost, "/api/admin/products", body, withToken(admin))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	list := decode[productListResponse](t, s.do(t, http.MethodGet, "/api/products?category=Wigs", nil))
	require.Len(t, list.Products, 1)
	assert.Equal(t, "Bob Wig", list.Products[0].Name)
}

func TestAdminProducts_UpdateAndDelete(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", "jenny@example.com", auth.RoleAdmin)
	id := s.seedProduct(t, "Bob Wig", "40", "Wigs")

	rec := s.do(t, http.MethodPut, "/api/admin/products/"+id, map[string]any{"name": "Bob Wig Deluxe", "price": "55", "category": "Wigs"}, withToken(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[map[string]any](t, s.do(t, http.MethodGet, "/api/products/"+id, nil))
	assert.Equal(t, "Bob Wig Deluxe", got["name"])

	rec = s.do(t, http.MethodPut, "/api/admin/products/"+id, map[string]any{"name": "", "price": "55"}, withToken(admin))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/admin/products/"+id, nil, withToken(admin)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/products/"+id, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/admin/products/"+id, nil, withToken(admin)).Code)
}

// ============================================
// Cart Tests
// ============================================

func TestCart_Lifecycle(t *testing.T) {
	s := newTestServer(t)
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	glue := s.seedProduct(t, "Lace Glue", "12.50", "")
	session := withSession("sess-1")

	rec := s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig, "quantity": 1}, session)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": glue}, session)
	s.do(t, http.MethodPost, "/api/cart/items/"+glue+"/increase", nil, session)

	c := decode[cartResponse](t, s.do(t, http.MethodGet, "/api/cart", nil, session))
	assert.Equal(t, "sess-1", c.SessionID)
	assert.Equal(t, 3, c.TotalItems)
	assert.Equal(t, "65.00", c.TotalAmount.StringFixed(2))

	s.do(t, http.MethodPost, "/api/cart/items/"+glue+"/decrease", nil, session)
	rec = s.do(t, http.MethodDelete, "/api/cart/items/"+wig, nil, session)
	c = decode[cartResponse](t, rec)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Lace Glue", c.Items[0].Name)

	rec = s.do(t, http.MethodDelete, "/api/cart", nil, session)
	assert.Empty(t, decode[cartResponse](t, rec).Items)

	other := decode[cartResponse](t, s.do(t, http.MethodGet, "/api/cart", nil, withSession("sess-2")))
	assert.Empty(t, other.Items)
}

func TestCart_Errors(t *testing.T) {
	s := newTestServer(t)
	session := withSession("sess-1")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": "nope"}, session).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/cart/items/nope/increase", nil, session).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"bogus": true}, session).Code)

	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig, "quantity": -1}, session).Code)
}

func TestCart_IssuesSessionCookie(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.SessionHeader))
	assert.NotEmpty(t, rec.Result().Cookies())
}

// ============================================
// Shipping and Checkout Tests
// ============================================

func TestShippingQuote(t *testing.T) {
	s := newTestServer(t)

	gb := decode[shipping.Quote](t, s.do(t, http.MethodGet, "/api/shipping/quote?country=gb", nil))
	us := decode[shipping.Quote](t, s.do(t, http.MethodGet, "/api/shipping/quote?country=US", nil))

	assert.Equal(t, "5", gb.Fee.String())
	assert.Equal(t, "35", us.Fee.String())
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/shipping/quote", nil).Code)
}

func TestCheckout_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	session := withSession("sess-1")
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig, "quantity": 1}, session)

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("GB"), session)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[checkoutResponse](t, rec)
	assert.Equal(t, "45.00", resp.TotalPrice.StringFixed(2))
	assert.Equal(t, order.StatusPending, resp.Status)
	require.Len(t, s.capturer.requests, 1)
	assert.Equal(t, int64(4500), s.capturer.requests[0].AmountMinor)
	assert.Equal(t, "GBP", s.capturer.requests[0].Currency)

	assert.Empty(t, decode[cartResponse](t, s.do(t, http.MethodGet, "/api/cart", nil, session)).Items)

	n := decode[notify.Notification](t, s.do(t, http.MethodGet, "/api/notifications/current", nil, session))
	assert.Equal(t, checkout.MessageOrderPlaced, n.Message)

	customer := s.token(t, "user-1", "ADA@example.com", auth.RoleCustomer)
	mine := decode[orderListResponse](t, s.do(t, http.MethodGet, "/api/orders", nil, withToken(customer)))
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, resp.OrderID, mine.Orders[0].ID)

	stranger := s.token(t, "user-2", "bo@example.com", auth.RoleCustomer)
	assert.Empty(t, decode[orderListResponse](t, s.do(t, http.MethodGet, "/api/orders", nil, withToken(stranger))).Orders)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/orders", nil).Code)
}

func TestCheckout_International(t *testing.T) {
	s := newTestServer(t)
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	session := withSession("sess-1")
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig}, session)

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("NG"), session)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(7500), s.capturer.requests[0].AmountMinor)
}

func TestCheckout_ValidationError(t *testing.T) {
	s := newTestServer(t)
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	session := withSession("sess-1")
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig}, session)
	body := checkoutBody("GB")
	body["address"].(map[string]string)["city"] = ""

	rec := s.do(t, http.MethodPost, "/api/checkout", body, session)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[checkoutErrorResponse](t, rec)
	assert.Equal(t, []string{"city"}, resp.Missing)
	assert.Empty(t, s.capturer.requests)
}

func TestCheckout_InvalidMethod(t *testing.T) {
	s := newTestServer(t)
	body := checkoutBody("GB")
	body["payment_method"] = "cheque"

	rec := s.do(t, http.MethodPost, "/api/checkout", body, withSession("sess-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("GB"), withSession("sess-1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.capturer.requests)
}

func TestCheckout_Declined(t *testing.T) {
	s := newTestServer(t)
	s.capturer.decline = true
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	session := withSession("sess-1")
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig}, session)

	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("GB"), session)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	resp := decode[checkoutErrorResponse](t, rec)
	assert.Equal(t, checkout.MessageDeclined, resp.Error)
	require.NotNil(t, resp.State)
	assert.Equal(t, checkout.StateErrored, *resp.State)
	assert.Len(t, decode[cartResponse](t, s.do(t, http.MethodGet, "/api/cart", nil, session)).Items, 1)

	status := decode[map[string]any](t, s.do(t, http.MethodGet, "/api/checkout/status", nil, session))
	assert.Equal(t, "errored", status["state"])
	assert.Equal(t, true, status["can_submit"])
}

func TestCheckoutStatus_NoSession(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/checkout/status", nil, withSession("none")).Code)
}

// ============================================
// Admin Order and Analytics Tests
// ============================================

func placeTestOrder(t *testing.T, s *testServer, session string) string {
	t.Helper()
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig}, withSession(session))
	rec := s.do(t, http.MethodPost, "/api/checkout", checkoutBody("GB"), withSession(session))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[checkoutResponse](t, rec).OrderID
}

func TestAdminOrders_StatusTransitions(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", "jenny@example.com", auth.RoleAdmin)
	orderID := placeTestOrder(t, s, "sess-1")
	path := "/api/admin/orders/" + orderID + "/status"

	rec := s.do(t, http.MethodPatch, path, map[string]string{"status": "completed"}, withToken(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusConflict, s.do(t, http.MethodPatch, path, map[string]string{"status": "cancelled"}, withToken(admin)).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPatch, path, map[string]string{"status": "shipped"}, withToken(admin)).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPatch, "/api/admin/orders/missing/status", map[string]string{"status": "completed"}, withToken(admin)).Code)

	list := decode[orderListResponse](t, s.do(t, http.MethodGet, "/api/admin/orders?status=completed", nil, withToken(admin)))
	require.Len(t, list.Orders, 1)
	assert.Equal(t, orderID, list.Orders[0].ID)
}

func TestAdminDashboardAndCustomers(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin-1", "jenny@example.com", auth.RoleAdmin)
	orderID := placeTestOrder(t, s, "sess-1")
	s.do(t, http.MethodPatch, "/api/admin/orders/"+orderID+"/status", map[string]string{"status": "completed"}, withToken(admin))

	rec := s.do(t, http.MethodGet, "/api/admin/dashboard", nil, withToken(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[analytics.Dashboard](t, rec)
	assert.False(t, d.Loading)
	assert.Equal(t, 1, d.Counts.Completed)
	assert.Equal(t, "45.00", d.TotalRevenue.StringFixed(2))
	require.Len(t, d.TopProducts, 1)
	assert.Equal(t, "Bob Wig", d.TopProducts[0].Name)

	customers := decode[customersResponse](t, s.do(t, http.MethodGet, "/api/admin/customers", nil, withToken(admin)))
	require.Len(t, customers.Customers, 1)
	assert.Equal(t, analytics.CustomerActive, customers.Customers[0].Status)
}

func TestNotifications_NoneActive(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodGet, "/api/notifications/current", nil, withSession("sess-1")).Code)
}

func TestNotifications_ScopedToSession(t *testing.T) {
	s := newTestServer(t)
	wig := s.seedProduct(t, "Bob Wig", "40", "Wigs")
	alice := withSession("alice")
	s.do(t, http.MethodPost, "/api/cart/items", map[string]any{"product_id": wig, "quantity": 1}, alice)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/api/checkout", checkoutBody("GB"), alice).Code)

	rec := s.do(t, http.MethodGet, "/api/notifications/current", nil, withSession("mallory"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, rec.Body.String(), "order_id")

	rec = s.do(t, http.MethodGet, "/api/notifications/current", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, "a fresh session has nothing to see")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/notifications/current", nil, alice).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/notifications/current", nil, alice).Code)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodGet, "/api/notifications/current", nil, alice).Code)
}

func TestCheckoutError_StatusCodes(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &checkout.ValidationError{Missing: []string{"city"}}, http.StatusBadRequest},
		{"empty cart", checkout.ErrEmptyCart, http.StatusBadRequest},
		{"declined", &payment.DeclinedError{PaymentID: "pay_1"}, http.StatusPaymentRequired},
		{"in flight", checkout.ErrSubmitInFlight, http.StatusConflict},
		{"captured without order", &checkout.CapturedWithoutOrderError{PaymentID: "pay_1", Err: errors.New("db down")}, http.StatusInternalServerError},
		{"processor unavailable", errors.New("capture failed: 503"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil)

			s.handlers.checkoutError(rec, req, "no-such-session", tt.err)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
