package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
)

func TestPaystackInitialize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://pay/abc","access_code":"abc","reference":"chk_1"}}`))
	}))
	defer srv.Close()

	gw := NewPaystackClient(srv.URL, "sk_test", srv.Client())
	resp, err := gw.Initialize(context.Background(), InitializeRequest{
		Reference: "chk_1",
		Email:     "ada@example.com",
		Amount:    42500.5,
	})

	require.NoError(t, err)
	assert.Equal(t, "chk_1", resp.Reference)
	assert.Equal(t, "https://pay/abc", resp.AuthorizationURL)
	assert.Equal(t, 42500.5, resp.Amount)
	assert.Equal(t, float64(4250050), got["amount"])
	assert.Equal(t, "ada@example.com", got["email"])
}

func TestPaystackVerify(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		wantStatus domain.PaymentStatus
	}{
		{"success", "success", domain.PaymentSuccess},
		{"failed", "failed", domain.PaymentFailed},
		{"abandoned", "abandoned", domain.PaymentFailed},
		{"ongoing", "ongoing", domain.PaymentPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/transaction/verify/chk_9", r.URL.Path)
				json.NewEncoder(w).Encode(map[string]any{
					"status": true,
					"data": map[string]any{
						"id": 7788, "reference": "chk_9", "status": tt.status, "amount": 4250000, "channel": "card",
					},
				})
			}))
			defer srv.Close()

			v, err := NewPaystackClient(srv.URL, "sk", srv.Client()).Verify(context.Background(), "chk_9")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, v.Status)
			assert.Equal(t, 42500.0, v.Amount)
			assert.Equal(t, "7788", v.TransactionID)
			assert.Equal(t, "card", v.Channel)
		})
	}
}

func TestPaystackUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPaystackClient(srv.URL, "sk", srv.Client()).Verify(context.Background(), "x")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadGateway, te.Status)
}

func TestPaystackRejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Duplicate Transaction Reference"}`))
	}))
	defer srv.Close()

	_, err := NewPaystackClient(srv.URL, "sk", srv.Client()).Initialize(context.Background(), InitializeRequest{Reference: "dup"})

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "Duplicate Transaction Reference")
}
