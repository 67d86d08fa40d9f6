package pricing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/domain"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		items []domain.CartLineItem
		want  domain.CartSummary
	}{
		{name: "nil cart", items: nil, want: domain.CartSummary{}},
		{name: "empty cart", items: []domain.CartLineItem{}, want: domain.CartSummary{}},
		{
			name:  "string prices",
			items: []domain.CartLineItem{{Price: "25000"}, {Price: "15000"}},
			want:  domain.CartSummary{Subtotal: 40000, Total: 40000},
		},
		{
			name:  "non numeric price counts as zero",
			items: []domain.CartLineItem{{Price: "abc"}, {Price: "1200.50"}, {Price: ""}},
			want:  domain.CartSummary{Subtotal: 1200.5, Total: 1200.5},
		},
		{
			name:  "display formatted price",
			items: []domain.CartLineItem{{Price: " 12,500 "}},
			want:  domain.CartSummary{Subtotal: 12500, Total: 12500},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.items)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Subtotal, got.Total)
			assert.GreaterOrEqual(t, got.Total, 0.0)
		})
	}
}

func TestInspectReportsCoercions(t *testing.T) {
	items := []domain.CartLineItem{
		{ProductID: "brake-pad", Price: "9000"},
		{ProductID: "oil-filter", Price: "N/A"},
	}

	summary, coerced := Inspect(items)

	assert.Equal(t, 9000.0, summary.Total)
	require.Len(t, coerced, 1)
	assert.Equal(t, 1, coerced[0].Index)
	assert.Equal(t, "oil-filter", coerced[0].ProductID)
	assert.Equal(t, domain.Price("N/A"), coerced[0].Raw)
}

func TestSummarizeIsDeterministic(t *testing.T) {
	items := []domain.CartLineItem{{Price: "0.1"}, {Price: "0.2"}, {Price: "x"}}
	assert.Equal(t, Summarize(items), Summarize(items))
	assert.Equal(t, 0.3, Summarize(items).Total)
}

func TestPriceUnmarshalAcceptsStringsAndNumbers(t *testing.T) {
	var items []domain.CartLineItem
	body := `[{"product_id":"a","price":"25000"},{"product_id":"b","price":15000},{"product_id":"c","price":null}]`
	require.NoError(t, json.Unmarshal([]byte(body), &items))

	assert.Equal(t, domain.Price("25000"), items[0].Price)
	assert.Equal(t, domain.Price("15000"), items[1].Price)
	assert.Equal(t, domain.Price(""), items[2].Price)
	assert.Equal(t, 40000.0, Summarize(items).Total)
}

func TestChargeAmount(t *testing.T) {
	s := domain.CartSummary{Subtotal: 40000, Total: 40000}
	assert.Equal(t, 42500.0, ChargeAmount(s, 0, 2500))
	assert.Equal(t, 38500.0, ChargeAmount(s, 4000, 2500))
	assert.Equal(t, 0.0, ChargeAmount(s, 50000, 0))
}

func TestFeeTable(t *testing.T) {
	fees := DefaultFees()

	fee, err := fees.Fee(domain.DeliveryExpress)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, fee)

	_, err = fees.Fee("drone")
	assert.Error(t, err)
}
