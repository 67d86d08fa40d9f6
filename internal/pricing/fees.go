package pricing

import (
	"fmt"

	"autoparts-checkout/internal/domain"
)

// FeeTable maps a delivery type to its flat fee.
type FeeTable map[domain.DeliveryType]float64

func DefaultFees() FeeTable {
	return FeeTable{
		domain.DeliveryStandard: 2500,
		domain.DeliveryExpress:  5000,
		domain.DeliveryPickup:   0,
	}
}

func (t FeeTable) Fee(dt domain.DeliveryType) (float64, error) {
	fee, ok := t[dt]
	if !ok {
		return 0, fmt.Errorf("unknown delivery type %q", dt)
	}
	return fee, nil
}
