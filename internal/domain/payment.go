package domain

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type PaymentDetails struct {
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// Normalize fills in a missing status. A record without a status is a
// payment the gateway has not settled yet, not a corrupt record.
func (p *PaymentDetails) Normalize() {
	if p.Status == "" {
		p.Status = PaymentPending
	}
}

// CheckoutData is what the payment stage hands to order creation. Gateway
// carries the raw gateway response through untouched.
type CheckoutData struct {
	CheckoutID  string         `json:"checkout_id"`
	Reference   string         `json:"reference"`
	Amount      float64        `json:"amount"`
	Subtotal    float64        `json:"subtotal"`
	DeliveryFee float64        `json:"delivery_fee"`
	Discount    float64        `json:"discount"`
	CouponCode  string         `json:"coupon_code,omitempty"`
	Payment     PaymentDetails `json:"payment"`
	Gateway     map[string]any `json:"gateway,omitempty"`
}

// Payment is a charge the backend learned about from the gateway, either
// through the webhook or through reconciliation.
type Payment struct {
	ID            uuid.UUID
	OrderID       *uuid.UUID
	Reference     string
	Amount        float64
	TransactionID string
	Channel       string
	Status        PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type TransferStatus string

const (
	TransferSuccess TransferStatus = "success"
	TransferFailed  TransferStatus = "failed"
)

// Transfer is a payout reported by the gateway.
type Transfer struct {
	Code      string
	Reference string
	Status    TransferStatus
	Amount    float64
	Reason    string
	UpdatedAt time.Time
}
