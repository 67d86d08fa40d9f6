package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
)

func TestMockGatewaySameReferenceSameCharge(t *testing.T) {
	calls := 0
	gw := NewMockGateway(func(string) domain.PaymentStatus {
		calls++
		return domain.PaymentSuccess
	})
	ctx := context.Background()

	_, err := gw.Initialize(ctx, InitializeRequest{Reference: "r1", Amount: 100})
	require.NoError(t, err)
	_, err = gw.Initialize(ctx, InitializeRequest{Reference: "r1", Amount: 100})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	v, err := gw.Verify(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSuccess, v.Status)
	assert.NotEmpty(t, v.TransactionID)
}

func TestMockGatewaySettle(t *testing.T) {
	gw := NewMockGateway(func(string) domain.PaymentStatus { return domain.PaymentPending })
	ctx := context.Background()
	_, err := gw.Initialize(ctx, InitializeRequest{Reference: "r2", Amount: 10})
	require.NoError(t, err)

	v, _ := gw.Verify(ctx, "r2")
	assert.Equal(t, domain.PaymentPending, v.Status)

	gw.Settle("r2", domain.PaymentSuccess)
	v, _ = gw.Verify(ctx, "r2")
	assert.Equal(t, domain.PaymentSuccess, v.Status)
}

func TestMockGatewayUnknownReference(t *testing.T) {
	_, err := NewMockGateway(nil).Verify(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
