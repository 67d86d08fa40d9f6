package domain

import (
	"bytes"
	"encoding/json"
)

// Price keeps the price exactly as the cart source sent it. The catalog API
// mixes JSON strings and numbers, so parsing is left to pricing.NormalizePrice.
type Price string

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Price(s)
		return nil
	}
	*p = Price(data)
	return nil
}

type CartLineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     Price  `json:"price"`
}

type CartSummary struct {
	Subtotal float64 `json:"subtotal"`
	Total    float64 `json:"total"`
}
