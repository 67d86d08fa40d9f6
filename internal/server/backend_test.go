package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/logging"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/service"
)

const webhookSecret = "sk_test_secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOrderService struct {
	service.OrderService
	orders   map[string]*domain.Order
	events   []payment.Event
	applyErr error
	custom   []domain.CustomOrder
}

func newFakeOrderService() *fakeOrderService {
	return &fakeOrderService{orders: map[string]*domain.Order{}}
}

func (f *fakeOrderService) CreateOrder(_ context.Context, req domain.OrderRequest) (*domain.Order, bool, error) {
	if o, ok := f.orders[req.PaymentReference]; ok {
		return o, false, nil
	}
	if len(req.Items) == 0 {
		verr := domain.NewValidationError()
		verr.Add("items", "must not be empty")
		return nil, false, verr
	}
	o := &domain.Order{ID: uuid.New(), OrderCode: "AP-1", PaymentReference: req.PaymentReference, Status: domain.OrderPaid}
	f.orders[req.PaymentReference] = o
	return o, true, nil
}

func (f *fakeOrderService) ApplyWebhookEvent(_ context.Context, ev payment.Event) error {
	f.events = append(f.events, ev)
	return f.applyErr
}

func (f *fakeOrderService) CreateCustomOrder(_ context.Context, o *domain.CustomOrder) error {
	o.ID = uuid.New()
	f.custom = append(f.custom, *o)
	return nil
}

func newBackend(orders service.OrderService, tokens ...string) http.Handler {
	b := NewBackend(orders, nil, BackendConfig{WebhookSecret: webhookSecret, APITokens: tokens},
		metrics.NewBackend(prometheus.NewRegistry()), logging.Discard())
	return b.RegisterRoutes()
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	orders := newFakeOrderService()
	h := newBackend(orders)
	body := `{"event":"charge.success","data":{"reference":"chk_1","amount":100}}`

	w := do(t, h, http.MethodPost, "/webhooks/paystack", body, map[string]string{
		payment.SignatureHeader: payment.Sign("some-other-secret", []byte(body)),
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Invalid signature"}`, w.Body.String())
	assert.Empty(t, orders.events)
}

func TestWebhookRejectsMissingSignature(t *testing.T) {
	w := do(t, newBackend(newFakeOrderService()), http.MethodPost, "/webhooks/paystack", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookAcceptsSignedEvent(t *testing.T) {
	orders := newFakeOrderService()
	h := newBackend(orders)
	body := `{"event":"charge.success","data":{"reference":"chk_1","amount":4250000}}`

	w := do(t, h, http.MethodPost, "/webhooks/paystack", body, map[string]string{
		payment.SignatureHeader: payment.Sign(webhookSecret, []byte(body)),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	require.Len(t, orders.events, 1)
	assert.Equal(t, payment.EventChargeSuccess, orders.events[0].Type())
}

func TestWebhookProcessingFailure(t *testing.T) {
	orders := newFakeOrderService()
	orders.applyErr = errors.New("database unavailable")
	h := newBackend(orders)
	body := `{"event":"transfer.success","data":{"transfer_code":"TRF_1"}}`

	w := do(t, h, http.MethodPost, "/webhooks/paystack", body, map[string]string{
		payment.SignatureHeader: payment.Sign(webhookSecret, []byte(body)),
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"database unavailable"}`, w.Body.String())
}

func orderBody(ref string) string {
	b, _ := json.Marshal(domain.OrderRequest{
		CheckoutID:       "c-1",
		PaymentReference: ref,
		Total:            42500,
		FullName:         "Ada Obi",
		Email:            "ada@example.com",
		Items:            []domain.OrderItem{{ProductID: "p-1", Quantity: 1, Price: 40000}},
	})
	return string(b)
}

func TestCreateOrderReplay(t *testing.T) {
	h := newBackend(newFakeOrderService())
	headers := map[string]string{"Authorization": "Bearer tok", "Idempotency-Key": "chk_1"}

	first := do(t, h, http.MethodPost, "/order/create", orderBody("chk_1"), headers)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, "true", first.Header().Get("X-Idempotency-Write"))

	second := do(t, h, http.MethodPost, "/order/create", orderBody("chk_1"), headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "false", second.Header().Get("X-Idempotency-Write"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var resp domain.OrderResponse
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
	assert.Equal(t, "AP-1", resp.OrderCode)
	assert.Equal(t, domain.OrderPaid, resp.Status)
}

func TestCreateOrderRequestChecks(t *testing.T) {
	h := newBackend(newFakeOrderService(), "svc-token")

	tests := []struct {
		name    string
		headers map[string]string
		body    string
		status  int
	}{
		{"no bearer", map[string]string{"Idempotency-Key": "chk_1"}, orderBody("chk_1"), http.StatusUnauthorized},
		{"unknown bearer", map[string]string{"Authorization": "Bearer nope", "Idempotency-Key": "chk_1"}, orderBody("chk_1"), http.StatusUnauthorized},
		{"no idempotency key", map[string]string{"Authorization": "Bearer svc-token"}, orderBody("chk_1"), http.StatusBadRequest},
		{"key differs from reference", map[string]string{"Authorization": "Bearer svc-token", "Idempotency-Key": "chk_2"}, orderBody("chk_1"), http.StatusUnprocessableEntity},
		{"bad json", map[string]string{"Authorization": "Bearer svc-token", "Idempotency-Key": "chk_1"}, "{", http.StatusBadRequest},
		{"invalid order", map[string]string{"Authorization": "Bearer svc-token", "Idempotency-Key": "chk_3"}, `{"payment_reference":"chk_3"}`, http.StatusUnprocessableEntity},
		{"ok", map[string]string{"Authorization": "Bearer svc-token", "Idempotency-Key": "chk_1"}, orderBody("chk_1"), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/order/create", tt.body, tt.headers)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestCustomOrderMissingFields(t *testing.T) {
	orders := newFakeOrderService()
	w := do(t, newBackend(orders), http.MethodPost, "/custom-orders", `{"name":"Ada","email":"ada@example.com"}`, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing required fields","fields":["phone","product_name","description"]}`, w.Body.String())
	assert.Empty(t, orders.custom)
}

func TestCustomOrderCreated(t *testing.T) {
	orders := newFakeOrderService()
	body := `{"name":"Ada","email":"ada@example.com","phone":"0803","address":"12 Allen Ave","product_name":"Side mirror","description":"1998 Corolla, left"}`

	w := do(t, newBackend(orders), http.MethodPost, "/custom-orders", body, nil)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Message string             `json:"message"`
		Order   domain.CustomOrder `json:"order"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Custom order received", resp.Message)
	assert.Equal(t, "Side mirror", resp.Order.ProductName)
	assert.NotEqual(t, uuid.Nil, resp.Order.ID)
	assert.Len(t, orders.custom, 1)
}

func TestBackendHealthWithoutDatabase(t *testing.T) {
	w := do(t, newBackend(newFakeOrderService()), http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
