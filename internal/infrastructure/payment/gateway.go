package payment

import (
	"context"

	"autoparts-checkout/internal/domain"
)

type InitializeRequest struct {
	Reference   string
	Email       string
	Amount      float64 // major units
	CallbackURL string
	Metadata    map[string]any
}

type InitializeResponse struct {
	Reference        string         `json:"reference"`
	AuthorizationURL string         `json:"authorization_url"`
	AccessCode       string         `json:"access_code,omitempty"`
	Amount           float64        `json:"amount"`
	Raw              map[string]any `json:"-"`
}

type Verification struct {
	Reference     string
	Status        domain.PaymentStatus
	Amount        float64 // major units
	TransactionID string
	Channel       string
	Raw           map[string]any
}

type PaymentGateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// toMinor converts a major-unit amount to the gateway's minor unit.
func toMinor(amount float64) int64 {
	if amount < 0 {
		return 0
	}
	return int64(amount*100 + 0.5)
}

func fromMinor(amount int64) float64 {
	return float64(amount) / 100
}

// statusFromGateway folds the gateway's transaction states into ours.
func statusFromGateway(s string) domain.PaymentStatus {
	switch s {
	case "success":
		return domain.PaymentSuccess
	case "failed", "abandoned", "reversed":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}
