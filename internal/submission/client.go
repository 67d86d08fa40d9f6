// Package submission sends the final order to the order API. Each checkout
// attempt is keyed by its payment reference, which travels as the
// Idempotency-Key header; the order API answers a repeated key with the
// order it already created.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"autoparts-checkout/internal/domain"
)

const IdempotencyHeader = "Idempotency-Key"

// submitTimeout bounds a shared request once it no longer follows the
// context of the caller that started it.
const submitTimeout = 20 * time.Second

var ErrMissingReference = errors.New("order request has no payment reference")

type OrderSubmitter interface {
	Submit(ctx context.Context, token string, req domain.OrderRequest) (*domain.OrderResponse, error)
}

type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[*domain.OrderResponse]
	group   singleflight.Group
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[*domain.OrderResponse](gobreaker.Settings{
		Name:    "order-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// a rejected order is the caller's problem, not the API's
		IsSuccessful: func(err error) bool {
			var te *domain.TransportError
			if errors.As(err, &te) && te.Status >= 400 && te.Status < 500 {
				return true
			}
			return err == nil
		},
	})
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, cb: cb}
}

// Submit posts the order once. It does not retry: an ambiguous failure is
// returned to the caller, and resubmitting is safe because of the
// idempotency key. Concurrent calls for the same reference share one request;
// a caller that gives up does not cancel it for the others.
func (c *Client) Submit(ctx context.Context, token string, req domain.OrderRequest) (*domain.OrderResponse, error) {
	if req.PaymentReference == "" {
		return nil, ErrMissingReference
	}

	ch := c.group.DoChan(req.PaymentReference, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
		defer cancel()
		return c.cb.Execute(func() (*domain.OrderResponse, error) {
			return c.post(callCtx, token, req)
		})
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, &domain.TransportError{Op: "create order", Err: ctx.Err()}
	case res = <-ch:
	}
	v, err := res.Val, res.Err
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &domain.TransportError{Op: "create order", Err: err}
	}
	return v.(*domain.OrderResponse), nil
}

func (c *Client) post(ctx context.Context, token string, order domain.OrderRequest) (*domain.OrderResponse, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/order/create", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(IdempotencyHeader, order.PaymentReference)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: "create order", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &domain.TransportError{Op: "create order", Err: err}
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.TransportError{Op: "create order", Status: resp.StatusCode, Err: errors.New(upstreamMessage(data))}
	}

	var out domain.OrderResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &domain.TransportError{Op: "create order", Err: fmt.Errorf("decode response: %w", err)}
	}
	return &out, nil
}

func upstreamMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
