// Package stagestore holds the per-session key/value records of an
// in-progress checkout. Values are opaque strings (JSON in practice); the
// checkout package decides what goes in them.
package stagestore

import (
	"context"
	"errors"
)

// Well-known keys. Every session uses the same fixed set.
const (
	KeyShippingDetails = "shippingDetails"
	KeyPaymentDetails  = "paymentDetails"
	KeyAppliedCoupon   = "appliedCoupon"
	KeyCheckoutData    = "checkoutData"
	KeyOrderConfirmed  = "orderConfirmed"
	KeyLastOrder       = "lastOrder"
	KeyPaymentIntent   = "paymentIntent"
)

var ErrNotFound = errors.New("stage record not found")

type Store interface {
	// Get returns ErrNotFound when the key was never set or was deleted.
	Get(ctx context.Context, session, key string) (string, error)
	Set(ctx context.Context, session, key, value string) error
	// Delete is a no-op for missing keys.
	Delete(ctx context.Context, session, key string) error
	Close() error
}
