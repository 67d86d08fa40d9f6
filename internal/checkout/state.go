package checkout

import (
	"fmt"

	"autoparts-checkout/internal/domain"
)

// Stage is where a checkout attempt stands. It is computed from the stored
// records on every request, never stored itself.
type Stage int

const (
	StageEmpty Stage = iota
	StageShippingPending
	StagePaymentPending
	StageConfirmationPending
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageEmpty:
		return "empty"
	case StageShippingPending:
		return "shipping_pending"
	case StagePaymentPending:
		return "payment_pending"
	case StageConfirmationPending:
		return "confirmation_pending"
	case StageCompleted:
		return "completed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// View is a page of the checkout flow.
type View string

const (
	ViewCart         View = "cart"
	ViewShipping     View = "shipping"
	ViewPayment      View = "payment"
	ViewConfirmation View = "confirmation"
	ViewSuccess      View = "success"
)

func ParseView(s string) (View, bool) {
	switch v := View(s); v {
	case ViewCart, ViewShipping, ViewPayment, ViewConfirmation, ViewSuccess:
		return v, true
	}
	return "", false
}

// State is the typed view of one session's checkout. Which payload fields
// are set depends on Stage:
//
//	StageEmpty, StageShippingPending  nothing
//	StagePaymentPending               Shipping
//	StageConfirmationPending          Shipping, Payment, Data
//	StageCompleted                    Shipping, Payment, Data, Order
//
// Coupon is independent of the stage.
type State struct {
	Stage     Stage                   `json:"stage"`
	CartEmpty bool                    `json:"cart_empty"`
	Items     []domain.CartLineItem   `json:"items"`
	Summary   domain.CartSummary      `json:"summary"`
	Shipping  *domain.ShippingDetails `json:"shipping,omitempty"`
	Coupon    *domain.Coupon          `json:"coupon,omitempty"`
	Payment   *domain.PaymentDetails  `json:"payment,omitempty"`
	Data      *domain.CheckoutData    `json:"checkout_data,omitempty"`
	Order     *domain.OrderResponse   `json:"order,omitempty"`
}

func deriveState(items []domain.CartLineItem, summary domain.CartSummary, r records) State {
	st := State{
		CartEmpty: len(items) == 0,
		Items:     items,
		Summary:   summary,
		Coupon:    r.coupon,
	}

	switch {
	case r.confirmed && r.shipping != nil && r.payment != nil && r.data != nil:
		st.Stage = StageCompleted
		st.Shipping, st.Payment, st.Data, st.Order = r.shipping, r.payment, r.data, r.order
	case st.CartEmpty:
		st.Stage = StageEmpty
	case r.shipping == nil:
		// payment records without shipping are leftovers and are ignored
		st.Stage = StageShippingPending
	case r.payment == nil || r.data == nil:
		st.Stage = StagePaymentPending
		st.Shipping = r.shipping
	default:
		st.Stage = StageConfirmationPending
		st.Shipping, st.Payment, st.Data = r.shipping, r.payment, r.data
	}
	return st
}

// Admit applies the entry guard for v. When entry is refused it returns
// the view to send the user to instead.
func (s State) Admit(v View) (View, bool) {
	switch v {
	case ViewCart:
		return "", true
	case ViewShipping:
		if s.CartEmpty {
			return ViewCart, false
		}
		return "", true
	case ViewPayment:
		if s.CartEmpty {
			return ViewCart, false
		}
		switch s.Stage {
		case StageEmpty, StageShippingPending:
			return ViewShipping, false
		case StagePaymentPending, StageConfirmationPending, StageCompleted:
			return "", true
		}
	case ViewConfirmation:
		if s.CartEmpty {
			return ViewCart, false
		}
		switch s.Stage {
		case StageEmpty, StageShippingPending:
			return ViewShipping, false
		case StagePaymentPending:
			return ViewPayment, false
		case StageConfirmationPending, StageCompleted:
			return "", true
		}
	case ViewSuccess:
		switch s.Stage {
		case StageCompleted:
			return "", true
		case StageEmpty, StageShippingPending, StagePaymentPending, StageConfirmationPending:
			return ViewCart, false
		}
	}
	return ViewCart, false
}

// GuardViolation is returned by a transition attempted from a view the
// user may not be on. It is a redirect, not a failure.
type GuardViolation struct {
	View     View
	Redirect View
}

func (e *GuardViolation) Error() string {
	return fmt.Sprintf("cannot enter %s: redirect to %s", e.View, e.Redirect)
}
