package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"autoparts-checkout/internal/domain"
)

// CartSource reads the current cart. The checkout never writes to it.
type CartSource interface {
	Items(ctx context.Context, token string) ([]domain.CartLineItem, error)
}

type httpCartSource struct {
	baseURL string
	http    *http.Client
}

// NewHTTPCartSource reads GET {baseURL}/cart with the caller's bearer token.
func NewHTTPCartSource(baseURL string, httpClient *http.Client) CartSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &httpCartSource{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type cartResponse struct {
	CartItems []domain.CartLineItem `json:"cart_items"`
}

func (s *httpCartSource) Items(ctx context.Context, token string) ([]domain.CartLineItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/cart", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "get cart", Err: err}
	}
	defer resp.Body.Close()

	// no cart yet
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &domain.TransportError{Op: "get cart", Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(msg)))}
	}

	var out cartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.TransportError{Op: "get cart", Err: fmt.Errorf("decode cart: %w", err)}
	}
	return out.CartItems, nil
}

// StaticCart serves a fixed cart per token. Used by the simulator and tests.
type StaticCart struct {
	mu    sync.RWMutex
	carts map[string][]domain.CartLineItem
}

func NewStaticCart() *StaticCart {
	return &StaticCart{carts: make(map[string][]domain.CartLineItem)}
}

func (s *StaticCart) Put(token string, items []domain.CartLineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[token] = items
}

func (s *StaticCart) Items(_ context.Context, token string) ([]domain.CartLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[token], nil
}
