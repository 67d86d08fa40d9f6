package checkout

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/coupon"
	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/infrastructure/catalog"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/pricing"
	"autoparts-checkout/internal/stagestore"
	"autoparts-checkout/internal/submission"
)

const referencePrefix = "chk_"

// Session identifies the browser the checkout belongs to. Token is the
// customer's bearer credential, forwarded to the cart and order APIs.
type Session struct {
	ID    string
	Token string
}

type Deps struct {
	Store       stagestore.Store
	Cart        catalog.CartSource
	Coupons     *coupon.Resolver
	Fees        pricing.FeeTable
	Gateway     payment.PaymentGateway
	Orders      submission.OrderSubmitter
	Metrics     *metrics.Checkout
	Log         logrus.FieldLogger
	CallbackURL string
}

// Coordinator sequences the checkout stages. It owns every stage record of
// a session; nothing else writes them.
type Coordinator struct {
	records     recordStore
	cart        catalog.CartSource
	coupons     *coupon.Resolver
	fees        pricing.FeeTable
	gateway     payment.PaymentGateway
	orders      submission.OrderSubmitter
	metrics     *metrics.Checkout
	log         logrus.FieldLogger
	callbackURL string
	newID       func() uuid.UUID
}

func NewCoordinator(d Deps) *Coordinator {
	return &Coordinator{
		records:     recordStore{store: d.Store, log: d.Log},
		cart:        d.Cart,
		coupons:     d.Coupons,
		fees:        d.Fees,
		gateway:     d.Gateway,
		orders:      d.Orders,
		metrics:     d.Metrics,
		log:         d.Log,
		callbackURL: d.CallbackURL,
		newID:       uuid.New,
	}
}

// Decision is the outcome of entering a view.
type Decision struct {
	View     View
	Redirect View
	State    State
}

func (d Decision) Allowed() bool { return d.Redirect == "" }

// Quote is the money side of the current attempt.
type Quote struct {
	Summary     domain.CartSummary `json:"summary"`
	Coupon      *domain.Coupon     `json:"coupon,omitempty"`
	DeliveryFee float64            `json:"delivery_fee"`
	Discount    float64            `json:"discount"`
	Amount      float64            `json:"amount"`
}

type PaymentIntent struct {
	CheckoutID       string  `json:"checkout_id"`
	Reference        string  `json:"reference"`
	Method           string  `json:"method"`
	AuthorizationURL string  `json:"authorization_url"`
	AccessCode       string  `json:"access_code,omitempty"`
	Amount           float64 `json:"amount"`
	Quote            Quote   `json:"quote"`
}

// State loads the session's checkout as it stands.
func (c *Coordinator) State(ctx context.Context, s Session) (State, error) {
	items, err := c.cart.Items(ctx, s.Token)
	if err != nil {
		return State{}, fmt.Errorf("load cart: %w", err)
	}

	summary, coerced := pricing.Inspect(items)
	for _, co := range coerced {
		c.metrics.PriceCoercions.Inc()
		c.log.WithFields(logrus.Fields{
			"session":    s.ID,
			"product_id": co.ProductID,
			"line":       co.Index,
			"raw_price":  string(co.Raw),
		}).Warn("non-numeric cart price counted as zero")
	}

	rec, err := c.records.load(ctx, s.ID)
	if err != nil {
		return State{}, err
	}
	return deriveState(items, summary, rec), nil
}

// Enter runs the entry guard for v. A refused entry changes nothing.
func (c *Coordinator) Enter(ctx context.Context, s Session, v View) (Decision, error) {
	st, err := c.State(ctx, s)
	if err != nil {
		return Decision{}, err
	}
	if to, ok := st.Admit(v); !ok {
		c.redirected(s, v, to, st)
		return Decision{View: v, Redirect: to, State: st}, nil
	}
	return Decision{View: v, State: st}, nil
}

func (c *Coordinator) guard(ctx context.Context, s Session, v View) (State, error) {
	st, err := c.State(ctx, s)
	if err != nil {
		return State{}, err
	}
	if to, ok := st.Admit(v); !ok {
		c.redirected(s, v, to, st)
		return State{}, &GuardViolation{View: v, Redirect: to}
	}
	return st, nil
}

func (c *Coordinator) redirected(s Session, from, to View, st State) {
	c.metrics.GuardRedirects.WithLabelValues(string(from), string(to)).Inc()
	c.log.WithFields(logrus.Fields{
		"session": s.ID,
		"view":    from,
		"target":  to,
		"stage":   st.Stage.String(),
	}).Debug("stage entry redirected")
}

// SubmitShipping validates and stores the shipping form. It starts a new
// attempt: payment and confirmation records from an earlier attempt are
// removed, and the coupon record is replaced or removed.
func (c *Coordinator) SubmitShipping(ctx context.Context, s Session, form ShippingForm) (View, error) {
	st, err := c.guard(ctx, s, ViewShipping)
	if err != nil {
		return "", err
	}

	details, verr := form.details(c.fees)
	var applied *domain.Coupon
	if code := strings.TrimSpace(form.CouponCode); code != "" {
		cp, err := c.coupons.Resolve(ctx, code, st.Summary)
		switch {
		case errors.Is(err, coupon.ErrRejected):
			verr.Add("coupon_code", rejectionMessage(err))
		case err != nil:
			return "", err
		default:
			applied = &cp
		}
	}
	if err := verr.OrNil(); err != nil {
		return "", err
	}

	if err := c.records.put(ctx, s.ID, stagestore.KeyShippingDetails, details); err != nil {
		return "", err
	}
	if applied != nil {
		err = c.records.put(ctx, s.ID, stagestore.KeyAppliedCoupon, applied)
	} else {
		err = c.records.drop(ctx, s.ID, stagestore.KeyAppliedCoupon)
	}
	if err != nil {
		return "", err
	}
	if err := c.records.drop(ctx, s.ID,
		stagestore.KeyPaymentDetails,
		stagestore.KeyCheckoutData,
		stagestore.KeyOrderConfirmed,
		stagestore.KeyLastOrder,
		stagestore.KeyPaymentIntent,
	); err != nil {
		return "", err
	}

	c.metrics.Transitions.WithLabelValues(string(ViewPayment)).Inc()
	c.log.WithFields(logrus.Fields{"session": s.ID, "delivery_type": details.DeliveryType, "coupon": applied != nil}).
		Info("shipping details saved")
	return ViewPayment, nil
}

// PreviewCoupon prices a code against the current cart without applying it.
func (c *Coordinator) PreviewCoupon(ctx context.Context, s Session, code string) (domain.Coupon, error) {
	st, err := c.guard(ctx, s, ViewShipping)
	if err != nil {
		return domain.Coupon{}, err
	}
	cp, err := c.coupons.Resolve(ctx, code, st.Summary)
	if errors.Is(err, coupon.ErrRejected) {
		verr := domain.NewValidationError()
		verr.Add("coupon_code", rejectionMessage(err))
		return domain.Coupon{}, verr
	}
	return cp, err
}

// ClearCoupon removes the applied coupon. No marker is left behind. Once a
// payment is recorded the coupon is part of what was charged and stays.
func (c *Coordinator) ClearCoupon(ctx context.Context, s Session) error {
	st, err := c.guard(ctx, s, ViewShipping)
	if err != nil {
		return err
	}
	switch st.Stage {
	case StageConfirmationPending, StageCompleted:
		verr := domain.NewValidationError()
		verr.Add("coupon_code", "cannot be changed after payment")
		return verr
	case StageEmpty, StageShippingPending, StagePaymentPending:
	}
	return c.records.drop(ctx, s.ID, stagestore.KeyAppliedCoupon)
}

// Quote prices the current attempt. Before shipping is known the delivery
// fee is zero.
func (c *Coordinator) Quote(ctx context.Context, s Session) (Quote, error) {
	st, err := c.State(ctx, s)
	if err != nil {
		return Quote{}, err
	}
	return c.quote(ctx, st)
}

func (c *Coordinator) quote(ctx context.Context, st State) (Quote, error) {
	q := Quote{Summary: st.Summary}

	if st.Shipping != nil {
		fee, err := c.fees.Fee(st.Shipping.DeliveryType)
		if err != nil {
			verr := domain.NewValidationError()
			verr.Add("delivery_type", "is not offered")
			return Quote{}, verr
		}
		q.DeliveryFee = fee
	}

	// the cart may have changed since the coupon was applied
	if st.Coupon != nil {
		cp, err := c.coupons.Resolve(ctx, st.Coupon.Code, st.Summary)
		if errors.Is(err, coupon.ErrRejected) {
			verr := domain.NewValidationError()
			verr.Add("coupon_code", rejectionMessage(err))
			return Quote{}, verr
		}
		if err != nil {
			return Quote{}, err
		}
		q.Coupon = &cp
		q.Discount = cp.Discount
	}

	q.Amount = pricing.ChargeAmount(st.Summary, q.Discount, q.DeliveryFee)
	return q, nil
}

// InitiatePayment opens a payment with the gateway for the current total and
// remembers its reference; only that reference can complete the payment.
func (c *Coordinator) InitiatePayment(ctx context.Context, s Session, method string) (*PaymentIntent, error) {
	st, err := c.guard(ctx, s, ViewPayment)
	if err != nil {
		return nil, err
	}
	q, err := c.quote(ctx, st)
	if err != nil {
		return nil, err
	}
	if method == "" {
		method = "card"
	}

	checkoutID := c.newID().String()
	ref := referencePrefix + checkoutID
	meta := map[string]any{
		"checkout_id":   checkoutID,
		"delivery_type": string(st.Shipping.DeliveryType),
		"method":        method,
	}
	if q.Coupon != nil {
		meta["coupon_code"] = q.Coupon.Code
	}

	resp, err := c.gateway.Initialize(ctx, payment.InitializeRequest{
		Reference:   ref,
		Email:       st.Shipping.Email,
		Amount:      q.Amount,
		CallbackURL: c.callbackURL,
		Metadata:    meta,
	})
	if err != nil {
		c.metrics.GatewayRequests.WithLabelValues("initialize", "error").Inc()
		return nil, fmt.Errorf("initialize payment: %w", err)
	}
	c.metrics.GatewayRequests.WithLabelValues("initialize", "ok").Inc()

	issued := issuedPayment{CheckoutID: checkoutID, Reference: resp.Reference, Amount: q.Amount}
	if err := c.records.put(ctx, s.ID, stagestore.KeyPaymentIntent, issued); err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"session": s.ID, "reference": resp.Reference, "amount": q.Amount}).Info("payment initialized")
	return &PaymentIntent{
		CheckoutID:       checkoutID,
		Reference:        resp.Reference,
		Method:           method,
		AuthorizationURL: resp.AuthorizationURL,
		AccessCode:       resp.AccessCode,
		Amount:           q.Amount,
		Quote:            q,
	}, nil
}

// CompletePayment verifies reference with the gateway and stores the
// payment. A pending payment is accepted; the webhook settles it later.
func (c *Coordinator) CompletePayment(ctx context.Context, s Session, reference, method string) (View, error) {
	st, err := c.guard(ctx, s, ViewPayment)
	if err != nil {
		return "", err
	}
	reference = strings.TrimSpace(reference)
	checkoutID, ok := strings.CutPrefix(reference, referencePrefix)
	if !ok || checkoutID == "" {
		verr := domain.NewValidationError()
		verr.Add("reference", "is not a checkout reference")
		return "", verr
	}
	var issued issuedPayment
	found, err := c.records.get(ctx, s.ID, stagestore.KeyPaymentIntent, &issued)
	if err != nil {
		return "", err
	}
	if !found || issued.Reference != reference {
		c.log.WithFields(logrus.Fields{"session": s.ID, "reference": reference}).Warn("payment reference not issued to this session")
		verr := domain.NewValidationError()
		verr.Add("reference", "does not belong to this checkout")
		return "", verr
	}
	q, err := c.quote(ctx, st)
	if err != nil {
		return "", err
	}

	v, err := c.gateway.Verify(ctx, reference)
	if err != nil {
		c.metrics.GatewayRequests.WithLabelValues("verify", "error").Inc()
		return "", fmt.Errorf("verify payment: %w", err)
	}
	c.metrics.GatewayRequests.WithLabelValues("verify", string(v.Status)).Inc()

	log := c.log.WithFields(logrus.Fields{"session": s.ID, "reference": reference, "status": v.Status})
	if v.Status == domain.PaymentFailed {
		log.Info("payment declined")
		return "", domain.ErrPaymentFailed
	}
	if math.Abs(v.Amount-q.Amount) > 0.005 {
		log.WithFields(logrus.Fields{"paid": v.Amount, "expected": q.Amount}).Warn("payment amount mismatch")
		return "", domain.ErrAmountMismatch
	}

	if method == "" {
		method = v.Channel
	}
	pd := domain.PaymentDetails{Method: method, Status: v.Status, TransactionID: v.TransactionID}
	pd.Normalize()
	data := domain.CheckoutData{
		CheckoutID:  checkoutID,
		Reference:   reference,
		Amount:      q.Amount,
		Subtotal:    q.Summary.Subtotal,
		DeliveryFee: q.DeliveryFee,
		Discount:    q.Discount,
		Payment:     pd,
		Gateway:     v.Raw,
	}
	if q.Coupon != nil && q.Discount > 0 {
		data.CouponCode = q.Coupon.Code
	}

	// paymentDetails is written last: its presence marks the stage reached
	if err := c.records.put(ctx, s.ID, stagestore.KeyCheckoutData, data); err != nil {
		return "", err
	}
	if err := c.records.drop(ctx, s.ID, stagestore.KeyOrderConfirmed, stagestore.KeyLastOrder); err != nil {
		return "", err
	}
	if err := c.records.put(ctx, s.ID, stagestore.KeyPaymentDetails, pd); err != nil {
		return "", err
	}

	c.metrics.Transitions.WithLabelValues(string(ViewConfirmation)).Inc()
	log.Info("payment recorded")
	return ViewConfirmation, nil
}

// Confirm creates the order. A confirmed attempt answers with the order it
// already created instead of submitting again. On failure the stage records
// stay as they are so the customer can retry from this page.
func (c *Coordinator) Confirm(ctx context.Context, s Session) (*domain.OrderResponse, error) {
	st, err := c.guard(ctx, s, ViewConfirmation)
	if err != nil {
		return nil, err
	}
	if st.Stage == StageCompleted && st.Order != nil {
		return st.Order, nil
	}

	req := buildOrderRequest(st)
	log := c.log.WithFields(logrus.Fields{"session": s.ID, "checkout_id": req.CheckoutID, "reference": req.PaymentReference})

	resp, err := c.orders.Submit(ctx, s.Token, req)
	if err != nil {
		c.metrics.OrderSubmits.WithLabelValues("error").Inc()
		log.WithError(err).Error("order submission failed")
		return nil, err
	}
	c.metrics.OrderSubmits.WithLabelValues("ok").Inc()

	if err := c.records.put(ctx, s.ID, stagestore.KeyLastOrder, resp); err != nil {
		return nil, err
	}
	if err := c.records.put(ctx, s.ID, stagestore.KeyOrderConfirmed, true); err != nil {
		return nil, err
	}

	c.metrics.Transitions.WithLabelValues(string(ViewSuccess)).Inc()
	log.WithFields(logrus.Fields{"order_id": resp.ID, "order_code": resp.OrderCode}).Info("order created")
	return resp, nil
}

func buildOrderRequest(st State) domain.OrderRequest {
	sh, data := st.Shipping, st.Data

	items := make([]domain.OrderItem, 0, len(st.Items))
	for _, it := range st.Items {
		price, _ := pricing.NormalizePrice(it.Price)
		items = append(items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     price.InexactFloat64(),
		})
	}

	req := domain.OrderRequest{
		CheckoutID:       data.CheckoutID,
		PaymentReference: data.Reference,
		PaymentMethod:    st.Payment.Method,
		PaymentStatus:    st.Payment.Status,
		Total:            data.Amount,
		Subtotal:         data.Subtotal,
		DeliveryFee:      data.DeliveryFee,
		Discount:         data.Discount,
		CouponCode:       data.CouponCode,
		FullName:         sh.FullName,
		Email:            sh.Email,
		Phone:            sh.Phone,
		Address:          sh.Address,
		City:             sh.City,
		State:            sh.State,
		PostalCode:       sh.PostalCode,
		Country:          sh.Country,
		DeliveryType:     sh.DeliveryType,
		Items:            items,
		Gateway:          data.Gateway,
	}
	return req
}

func rejectionMessage(err error) string {
	switch {
	case errors.Is(err, coupon.ErrExpired):
		return "has expired"
	case errors.Is(err, coupon.ErrBelowMinimum):
		return "requires a larger order"
	default:
		return "is not valid"
	}
}
