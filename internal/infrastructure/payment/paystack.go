package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"autoparts-checkout/internal/domain"
)

type paystackClient struct {
	baseURL string
	secret  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewPaystackClient talks to a Paystack-compatible API at baseURL.
func NewPaystackClient(baseURL, secret string, httpClient *http.Client) PaymentGateway {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "paystack",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
	return &paystackClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    httpClient,
		cb:      cb,
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Channel   string `json:"channel"`
}

func (p *paystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    toMinor(req.Amount),
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}

	env, err := p.call(ctx, "initialize", http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &domain.TransportError{Op: "paystack initialize", Err: err}
	}
	var raw map[string]any
	_ = json.Unmarshal(env.Data, &raw)

	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &InitializeResponse{
		Reference:        ref,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Amount:           req.Amount,
		Raw:              raw,
	}, nil
}

func (p *paystackClient) Verify(ctx context.Context, reference string) (*Verification, error) {
	env, err := p.call(ctx, "verify", http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var tx paystackTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, &domain.TransportError{Op: "paystack verify", Err: err}
	}
	var raw map[string]any
	_ = json.Unmarshal(env.Data, &raw)

	v := &Verification{
		Reference: tx.Reference,
		Status:    statusFromGateway(tx.Status),
		Amount:    fromMinor(tx.Amount),
		Channel:   tx.Channel,
		Raw:       raw,
	}
	if tx.ID != 0 {
		v.TransactionID = strconv.FormatInt(tx.ID, 10)
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	return v, nil
}

func (p *paystackClient) call(ctx context.Context, op, method, path string, body any) (*paystackEnvelope, error) {
	raw, err := p.cb.Execute(func() ([]byte, error) {
		return p.do(ctx, method, path, body)
	})
	if err != nil {
		var te *domain.TransportError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, &domain.TransportError{Op: "paystack " + op, Err: err}
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &domain.TransportError{Op: "paystack " + op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if !env.Status {
		return nil, &domain.TransportError{Op: "paystack " + op, Err: errors.New(env.Message)}
	}
	return &env, nil
}

func (p *paystackClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &domain.TransportError{
			Op:     "paystack " + strings.TrimPrefix(path, "/"),
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(data))),
		}
	}
	return data, nil
}
