package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
)

func TestHTTPCartSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Write([]byte(`{"cart_items":[{"product_id":"p1","quantity":2,"price":"25000"},{"product_id":"p2","quantity":1,"price":15000}]}`))
	}))
	defer srv.Close()

	items, err := NewHTTPCartSource(srv.URL+"/", srv.Client()).Items(context.Background(), "tok")

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, domain.Price("25000"), items[0].Price)
	assert.Equal(t, domain.Price("15000"), items[1].Price)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestHTTPCartSourceMissingCart(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	items, err := NewHTTPCartSource(srv.URL, srv.Client()).Items(context.Background(), "")

	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestHTTPCartSourceUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPCartSource(srv.URL, srv.Client()).Items(context.Background(), "tok")

	var te *domain.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.Status)
}
