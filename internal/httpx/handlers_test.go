package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ariefcatur/go-eshop-orders/internal/apperr"
	"github.com/ariefcatur/go-eshop-orders/internal/inventory"
	"github.com/ariefcatur/go-eshop-orders/internal/orders"
	"github.com/ariefcatur/go-eshop-orders/internal/paging"
	"github.com/ariefcatur/go-eshop-orders/internal/redisx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOrders struct {
	mu        sync.Mutex
	created   []orders.CreateOrderInput
	createErr error
	cancelErr error
	getErr    error
	lastQuery orders.ListQuery
	page      orders.Page
	order     orders.Order
}

func (f *fakeOrders) CreateOrderTx(_ context.Context, in orders.CreateOrderInput) (orders.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return orders.Order{}, f.createErr
	}
	f.created = append(f.created, in)
	o := f.order
	o.Email = in.Email
	return o, nil
}

func (f *fakeOrders) CancelOrderTx(_ context.Context, id uuid.UUID) (orders.Order, error) {
	if f.cancelErr != nil {
		return orders.Order{}, f.cancelErr
	}
	o := f.order
	o.ID = id
	o.Status = orders.StatusCancelled
	return o, nil
}

func (f *fakeOrders) GetOrder(_ context.Context, id uuid.UUID) (orders.Order, error) {
	if f.getErr != nil {
		return orders.Order{}, f.getErr
	}
	o := f.order
	o.ID = id
	return o, nil
}

func (f *fakeOrders) ListOrders(_ context.Context, q orders.ListQuery) (orders.Page, error) {
	f.lastQuery = q
	p := f.page
	p.Paging = q.Paging
	return p, nil
}

type fakeProducts struct {
	lastQuery inventory.ListQuery
	page      inventory.Page
	err       error
}

func (f *fakeProducts) ListProducts(_ context.Context, q inventory.ListQuery) (inventory.Page, error) {
	f.lastQuery = q
	if f.err != nil {
		return inventory.Page{}, f.err
	}
	p := f.page
	p.Paging = q.Paging
	return p, nil
}

type fakePublisher struct {
	keys    [][]byte
	values  [][]byte
	headers [][]kafkago.Header
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	f.keys = append(f.keys, key)
	f.values = append(f.values, value)
	f.headers = append(f.headers, headers)
}

type fakeIdem struct {
	values   map[string]string
	claimErr error
	released []string
}

func (f *fakeIdem) Claim(_ context.Context, key string) (bool, error) {
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = redisx.PendingValue
	return true, nil
}

func (f *fakeIdem) Lookup(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeIdem) Complete(_ context.Context, key, orderID string) error {
	f.values[key] = orderID
	return nil
}

func (f *fakeIdem) Release(_ context.Context, key string) error {
	delete(f.values, key)
	f.released = append(f.released, key)
	return nil
}

type harness struct {
	router    *chi.Mux
	orders    *fakeOrders
	products  *fakeProducts
	created   *fakePublisher
	cancelled *fakePublisher
	idem      *fakeIdem
	hook      *test.Hook
}

func sampleOrder() orders.Order {
	return orders.Order{
		ID:     uuid.MustParse("6f1c2a52-1d7e-4f0e-8a44-3c1b2d9e7f10"),
		Email:  "jan@example.sk",
		Status: orders.StatusUnpaid,
		Items: []orders.LineItem{{
			ProductID: uuid.MustParse("0b7e3c5e-6a7e-4c57-9f0e-5b1d3a4d2c11"),
			Name:      "Nohavice",
			Price:     decimal.RequireFromString("22.51"),
			Quantity:  2,
		}},
		TotalPrice: decimal.RequireFromString("45.02"),
		CreatedAt:  time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC),
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger, hook := test.NewNullLogger()
	h := &harness{
		orders:    &fakeOrders{order: sampleOrder()},
		products:  &fakeProducts{},
		created:   &fakePublisher{},
		cancelled: &fakePublisher{},
		idem:      &fakeIdem{values: map[string]string{}},
		hook:      hook,
	}

	h.router = NewRouter(logger, time.Second, nil)
	(&OrdersHandler{
		Orders:    h.orders,
		Created:   h.created,
		Cancelled: h.cancelled,
		Idem:      h.idem,
		Service:   "eshop-api",
		Log:       logger,
	}).Register(h.router)
	(&ProductsHandler{Catalog: h.products, Log: logger}).Register(h.router)

	h.router.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	return h
}

func (h *harness) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

const validOrderBody = `{"email":"jan@example.sk","products":[{"id":"0b7e3c5e-6a7e-4c57-9f0e-5b1d3a4d2c11","quantity":2}]}`

func TestCreateOrder(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/orders", validOrderBody)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, rec.Body.String())
	require.Len(t, h.orders.created, 1)
	assert.Equal(t, 2, h.orders.created[0].Items[0].Quantity)

	require.Len(t, h.created.values, 1)
	var ev orders.Envelope
	require.NoError(t, json.Unmarshal(h.created.values[0], &ev))
	assert.Equal(t, orders.EventOrderCreated, ev.EventType)
	assert.Equal(t, "eshop-api", ev.Producer)
	assert.Equal(t, []byte(sampleOrder().ID.String()), h.created.keys[0])
	assert.Equal(t, kafkago.Header{Key: "x-event-version", Value: []byte("1")}, h.created.headers[0][1])
}

func TestCreateOrderErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		storeErr   error
		wantStatus int
		wantError  string
	}{
		{
			name:       "invalid body",
			body:       `{"email":"jan@example.sk"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Missing required field - products",
		},
		{
			name:       "missing product",
			body:       validOrderBody,
			storeErr:   inventory.ErrProductNotFound,
			wantStatus: http.StatusBadRequest,
			wantError:  "product with given id does not exist",
		},
		{
			name:       "out of stock",
			body:       validOrderBody,
			storeErr:   inventory.ErrInsufficientStock,
			wantStatus: http.StatusBadRequest,
			wantError:  "required number of products is currently not in stock",
		},
		{
			name:       "store constraint",
			body:       validOrderBody,
			storeErr:   apperr.ConstraintViolation("Wrong email format.", errors.New("orders_email_check")),
			wantStatus: http.StatusBadRequest,
			wantError:  "Wrong email format.",
		},
		{
			name:       "internal error is not leaked",
			body:       validOrderBody,
			storeErr:   errors.New("tx.Commit: connection reset"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "Internal Server Error.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.orders.createErr = tt.storeErr

			rec := h.do(http.MethodPost, "/orders", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, errorOf(t, rec))
			assert.Empty(t, h.created.values, "no event for a failed order")
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestCreateOrderIdempotencyKey(t *testing.T) {
	h := newHarness(t)

	first := h.do(http.MethodPost, "/orders", validOrderBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replay"))

	second := h.do(http.MethodPost, "/orders", validOrderBody, "Idempotency-Key", "abc")
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))

	assert.Len(t, h.orders.created, 1)
	assert.Len(t, h.created.values, 1)
	assert.Equal(t, sampleOrder().ID.String(), h.idem.values["abc"])
}

func TestCreateOrderIdempotencyInFlight(t *testing.T) {
	h := newHarness(t)
	h.idem.values["abc"] = redisx.PendingValue

	rec := h.do(http.MethodPost, "/orders", validOrderBody, "Idempotency-Key", "abc")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, h.orders.created)
}

func TestCreateOrderIdempotencyReleasedOnFailure(t *testing.T) {
	h := newHarness(t)
	h.orders.createErr = inventory.ErrInsufficientStock

	rec := h.do(http.MethodPost, "/orders", validOrderBody, "Idempotency-Key", "abc")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"abc"}, h.idem.released)
	assert.NotContains(t, h.idem.values, "abc")
}

func TestCreateOrderIdempotencyStoreDown(t *testing.T) {
	h := newHarness(t)
	h.idem.claimErr = errors.New("dial tcp: connection refused")

	rec := h.do(http.MethodPost, "/orders", validOrderBody, "Idempotency-Key", "abc")

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, h.orders.created, 1)
}

func TestListOrders(t *testing.T) {
	h := newHarness(t)
	h.orders.page = orders.Page{Total: 21, Orders: []orders.Order{sampleOrder()}}

	rec := h.do(http.MethodGet, "/orders?page=2&limit=10&filter_email=jan@example.sk&filter_status=unpaid", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, orders.ListQuery{
		Paging: paging.Params{Page: 2, Limit: 10},
		Email:  "jan@example.sk",
		Status: orders.StatusUnpaid,
	}, h.orders.lastQuery)

	assert.JSONEq(t, `{"data":{
		"page":2,"limit":10,"total_orders":21,"total_pages":3,
		"orders":[{
			"_id":"6f1c2a52-1d7e-4f0e-8a44-3c1b2d9e7f10",
			"email":"jan@example.sk",
			"status":"unpaid",
			"products":[{"_id":"0b7e3c5e-6a7e-4c57-9f0e-5b1d3a4d2c11","name":"Nohavice","price":22.51,"quantity":2}],
			"total_price":45.02,
			"created_at":"2024-03-01T12:30:00Z"
		}]
	}}`, rec.Body.String())
}

func TestListOrdersBadQuery(t *testing.T) {
	tests := []struct {
		query     string
		wantError string
	}{
		{query: "?limit=100", wantError: "limit can not be greater than 50"},
		{query: "?page=0", wantError: "page number can not be negative"},
		{query: "?page=x", wantError: "page must be an integer"},
		{query: "?page=1152921504606846977&limit=16", wantError: "page number is too large"},
		{query: "?filter_status=paid", wantError: "unknown filter for status"},
	}

	for _, tt := range tests {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/orders"+tt.query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.query)
		assert.Equal(t, tt.wantError, errorOf(t, rec), tt.query)
	}
}

func TestCancelOrder(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	rec := h.do(http.MethodDelete, "/orders/"+id.String(), "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	require.Len(t, h.cancelled.values, 1)
	assert.Equal(t, []byte(id.String()), h.cancelled.keys[0])
}

func TestCancelOrderErrors(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		storeErr   error
		wantStatus int
		wantError  string
	}{
		{name: "not a uuid", id: "123", wantStatus: http.StatusBadRequest, wantError: "Invalid order ID"},
		{name: "not found", id: uuid.NewString(), storeErr: orders.ErrOrderNotFound, wantStatus: http.StatusNotFound, wantError: "Order with given id not found"},
		{name: "already cancelled", id: uuid.NewString(), storeErr: orders.ErrAlreadyCancelled, wantStatus: http.StatusBadRequest, wantError: "Order is already cancelled."},
		{name: "wrong state", id: uuid.NewString(), storeErr: orders.ErrCannotCancel, wantStatus: http.StatusBadRequest, wantError: "Can not cancel order in this state."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.orders.cancelErr = tt.storeErr

			rec := h.do(http.MethodDelete, "/orders/"+tt.id, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, errorOf(t, rec))
			assert.Empty(t, h.cancelled.values)
		})
	}
}

func TestGetOrder(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/orders/6f1c2a52-1d7e-4f0e-8a44-3c1b2d9e7f10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data orderResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "45.02", body.Data.TotalPrice.String())

	h.orders.getErr = orders.ErrOrderNotFound
	rec = h.do(http.MethodGet, "/orders/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProducts(t *testing.T) {
	h := newHarness(t)
	h.products.page = inventory.Page{
		Total: 1,
		Products: []inventory.Product{{
			ID:        uuid.MustParse("0b7e3c5e-6a7e-4c57-9f0e-5b1d3a4d2c11"),
			Name:      "Čiapka",
			Price:     decimal.RequireFromString("5.02"),
			Stock:     5,
			UnitsSold: 1,
		}},
	}

	rec := h.do(http.MethodGet, "/products?name_query=%20ciap%20&order_by=_id&order=desc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, inventory.ListQuery{
		Paging:    paging.Params{Page: 1, Limit: 20},
		NameQuery: "ciap",
		OrderBy:   inventory.SortByID,
		Order:     inventory.Desc,
	}, h.products.lastQuery)

	assert.JSONEq(t, `{"data":{
		"page":1,"limit":20,"total_products":1,"total_pages":1,
		"products":[{"_id":"0b7e3c5e-6a7e-4c57-9f0e-5b1d3a4d2c11","name":"Čiapka","price":5.02,"stock":5}]
	}}`, rec.Body.String())
}

func TestListProductsBadQuery(t *testing.T) {
	tests := []struct {
		query     string
		wantError string
	}{
		{query: "?limit=100", wantError: "limit can not be greater than 50"},
		{query: "?limit=-3", wantError: "limit can not be negative"},
		{query: "?order_by=colour", wantError: "unknown order_by"},
		{query: "?order=up", wantError: "unknown order"},
	}

	for _, tt := range tests {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/products"+tt.query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.query)
		assert.Equal(t, tt.wantError, errorOf(t, rec), tt.query)
	}
}

func TestGenericRoutes(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":"Welcome in Bart Eshop API!"}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Page not found", errorOf(t, rec))

	rec = h.do(http.MethodPut, "/orders", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Method not allowed", errorOf(t, rec))

	rec = h.do(http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", errorOf(t, rec))

	rec = h.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("no db") }

func TestHealthzReportsDatabase(t *testing.T) {
	logger, _ := test.NewNullLogger()
	router := NewRouter(logger, time.Second, failingPinger{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	h := newHarness(t)

	h.do(http.MethodGet, "/products?order=up", "")

	entry := h.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, http.StatusBadRequest, entry.Data["status"])
	assert.Equal(t, "/products", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}
