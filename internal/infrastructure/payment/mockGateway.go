package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"autoparts-checkout/internal/domain"
)

// Outcome decides how the mock gateway settles a reference.
type Outcome func(reference string) domain.PaymentStatus

func AlwaysSucceed(string) domain.PaymentStatus { return domain.PaymentSuccess }

// RandomOutcome settles 70% of payments, declines 20% and leaves 10%
// pending, the case where the charge went through but the response was
// lost and only the webhook or reconciliation learns about it.
func RandomOutcome(string) domain.PaymentStatus {
	chance := rand.IntN(100)
	switch {
	case chance < 70:
		return domain.PaymentSuccess
	case chance < 90:
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

type mockCharge struct {
	amount float64
	status domain.PaymentStatus
	txn    string
}

type MockGateway struct {
	mu      sync.RWMutex
	charges map[string]*mockCharge
	outcome Outcome
	seq     int
}

func NewMockGateway(outcome Outcome) *MockGateway {
	if outcome == nil {
		outcome = AlwaysSucceed
	}
	return &MockGateway{charges: make(map[string]*mockCharge), outcome: outcome}
}

func (g *MockGateway) Initialize(_ context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if req.Reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	// same reference, same charge
	if _, exists := g.charges[req.Reference]; !exists {
		g.seq++
		g.charges[req.Reference] = &mockCharge{
			amount: req.Amount,
			status: g.outcome(req.Reference),
			txn:    fmt.Sprintf("%d", 100000+g.seq),
		}
	}

	return &InitializeResponse{
		Reference:        req.Reference,
		AuthorizationURL: "https://checkout.mock/pay/" + req.Reference,
		AccessCode:       "mock_" + req.Reference,
		Amount:           req.Amount,
		Raw:              map[string]any{"reference": req.Reference},
	}, nil
}

func (g *MockGateway) Verify(_ context.Context, reference string) (*Verification, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	c, ok := g.charges[reference]
	if !ok {
		return nil, fmt.Errorf("reference %s: %w", reference, domain.ErrNotFound)
	}
	v := &Verification{
		Reference: reference,
		Status:    c.status,
		Amount:    c.amount,
		Channel:   "card",
		Raw:       map[string]any{"reference": reference, "status": string(c.status)},
	}
	if c.status == domain.PaymentSuccess {
		v.TransactionID = c.txn
	}
	return v, nil
}

// Settle moves a reference to a final status, the way a late webhook would.
func (g *MockGateway) Settle(reference string, status domain.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.charges[reference]; ok {
		c.status = status
	}
}
