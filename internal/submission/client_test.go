package submission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
)

func TestSubmitSendsIdempotencyKey(t *testing.T) {
	var got domain.OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/order/create", r.URL.Path)
		assert.Equal(t, "chk_ref", r.Header.Get(IdempotencyHeader))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"o-1","order_code":"ORD-1","status":"PAID"}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, srv.Client()).Submit(context.Background(), "tok", domain.OrderRequest{
		CheckoutID:       "c-1",
		PaymentReference: "chk_ref",
		Total:            42500,
	})

	require.NoError(t, err)
	assert.Equal(t, &domain.OrderResponse{ID: "o-1", OrderCode: "ORD-1", Status: domain.OrderPaid}, resp)
	assert.Equal(t, "c-1", got.CheckoutID)
	assert.Equal(t, 42500.0, got.Total)
}

func TestSubmitRequiresReference(t *testing.T) {
	_, err := NewClient("http://unused", nil).Submit(context.Background(), "", domain.OrderRequest{})
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestSubmitSurfacesUpstreamError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"database unavailable"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.Client()).Submit(context.Background(), "", domain.OrderRequest{PaymentReference: "r"})

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
	assert.Contains(t, te.Error(), "database unavailable")
	assert.Equal(t, int32(1), calls.Load(), "client must not retry")
}

func TestConcurrentSubmitsShareOneRequest(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		w.Write([]byte(`{"id":"o-1","order_code":"ORD-1","status":"PENDING"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	var wg sync.WaitGroup
	results := make([]*domain.OrderResponse, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Submit(context.Background(), "", domain.OrderRequest{PaymentReference: "same"})
			assert.NoError(t, err)
			results[i] = resp
		}(i)
	}

	// let every goroutine join the in-flight call before answering
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "o-1", r.ID)
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	for range 5 {
		_, err := c.Submit(context.Background(), "", domain.OrderRequest{PaymentReference: "r"})
		require.Error(t, err)
	}

	_, err := c.Submit(context.Background(), "", domain.OrderRequest{PaymentReference: "r"})
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(5), calls.Load())
}

func TestRejectedOrdersDoNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"Validation failed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	for range 7 {
		_, err := c.Submit(context.Background(), "", domain.OrderRequest{PaymentReference: "r"})
		var te *domain.TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, http.StatusUnprocessableEntity, te.Status)
	}
	assert.Equal(t, int32(7), calls.Load())
}

func TestCallerCancelDoesNotFailSharedSubmit(t *testing.T) {
	var calls atomic.Int32
	arrived := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		close(arrived)
		<-release
		w.Write([]byte(`{"id":"o-1","order_code":"ORD-1","status":"PENDING"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.Submit(ctx, "", domain.OrderRequest{PaymentReference: "same"})
		first <- err
	}()
	<-arrived

	second := make(chan *domain.OrderResponse, 1)
	go func() {
		resp, err := c.Submit(context.Background(), "", domain.OrderRequest{PaymentReference: "same"})
		assert.NoError(t, err)
		second <- resp
	}()
	// let the second caller join the in-flight call
	time.Sleep(100 * time.Millisecond)

	cancel()
	err := <-first
	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	resp := <-second
	require.NotNil(t, resp)
	assert.Equal(t, "o-1", resp.ID)
	assert.Equal(t, int32(1), calls.Load())
}
