package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
)

func newTestResolver(t *testing.T, now time.Time) *Resolver {
	t.Helper()
	cat, err := ParseCatalog("AUTO10:percent:10, FLAT5K:fixed:5000:20000, OLD:percent:50:0:2026-01-01T00:00:00Z")
	require.NoError(t, err)
	r := NewResolver(cat)
	r.now = func() time.Time { return now }
	return r
}

func TestResolve(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	summary := domain.CartSummary{Subtotal: 40000, Total: 40000}

	tests := []struct {
		name    string
		code    string
		summary domain.CartSummary
		want    domain.Coupon
		wantErr error
	}{
		{
			name:    "percent",
			code:    "auto10",
			summary: summary,
			want:    domain.Coupon{Code: "AUTO10", Kind: domain.CouponPercent, Value: 10, Discount: 4000},
		},
		{
			name:    "fixed",
			code:    " FLAT5K ",
			summary: summary,
			want:    domain.Coupon{Code: "FLAT5K", Kind: domain.CouponFixed, Value: 5000, Discount: 5000},
		},
		{name: "unknown", code: "NOPE", summary: summary, wantErr: ErrInvalidCode},
		{name: "blank", code: "  ", summary: summary, wantErr: ErrInvalidCode},
		{name: "expired", code: "OLD", summary: summary, wantErr: ErrExpired},
		{
			name:    "below minimum",
			code:    "FLAT5K",
			summary: domain.CartSummary{Subtotal: 10000, Total: 10000},
			wantErr: ErrBelowMinimum,
		},
	}

	r := newTestResolver(t, now)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), tt.code, tt.summary)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrRejected)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveIsIdempotent(t *testing.T) {
	r := newTestResolver(t, time.Now())
	summary := domain.CartSummary{Subtotal: 25000, Total: 25000}

	first, err := r.Resolve(context.Background(), "AUTO10", summary)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), "AUTO10", summary)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDiscountCappedAtSubtotal(t *testing.T) {
	cat := StaticCatalog{"BIG": {Code: "BIG", Kind: domain.CouponFixed, Value: 99999}}
	r := NewResolver(cat)

	got, err := r.Resolve(context.Background(), "big", domain.CartSummary{Subtotal: 1500, Total: 1500})
	require.NoError(t, err)
	assert.Equal(t, 1500.0, got.Discount)
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	for _, entry := range []string{"X", "X:bogus:1", "X:fixed:abc", "X:fixed:1:zz", "X:fixed:1:0:yesterday"} {
		_, err := ParseCatalog(entry)
		assert.Error(t, err, entry)
	}

	cat, err := ParseCatalog("")
	require.NoError(t, err)
	assert.Empty(t, cat)
}
