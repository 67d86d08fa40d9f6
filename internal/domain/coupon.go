package domain

type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFixed   CouponKind = "fixed"
)

// Coupon is an applied discount. Discount is the amount taken off the
// subtotal it was resolved against.
type Coupon struct {
	Code     string     `json:"code"`
	Kind     CouponKind `json:"kind"`
	Value    float64    `json:"value"`
	Discount float64    `json:"discount"`
}
