package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/stagestore"
)

// records is the raw content of a session's stage keys.
type records struct {
	shipping  *domain.ShippingDetails
	coupon    *domain.Coupon
	payment   *domain.PaymentDetails
	data      *domain.CheckoutData
	confirmed bool
	order     *domain.OrderResponse
}

// issuedPayment is the payment InitiatePayment opened for the session. Only
// its reference can complete the payment stage.
type issuedPayment struct {
	CheckoutID string  `json:"checkout_id"`
	Reference  string  `json:"reference"`
	Amount     float64 `json:"amount"`
}

type recordStore struct {
	store stagestore.Store
	log   logrus.FieldLogger
}

func (r recordStore) load(ctx context.Context, session string) (records, error) {
	var rec records

	var shipping domain.ShippingDetails
	if ok, err := r.get(ctx, session, stagestore.KeyShippingDetails, &shipping); err != nil {
		return rec, err
	} else if ok {
		rec.shipping = &shipping
	}

	var cp domain.Coupon
	if ok, err := r.get(ctx, session, stagestore.KeyAppliedCoupon, &cp); err != nil {
		return rec, err
	} else if ok {
		rec.coupon = &cp
	}

	var pd domain.PaymentDetails
	if ok, err := r.get(ctx, session, stagestore.KeyPaymentDetails, &pd); err != nil {
		return rec, err
	} else if ok {
		pd.Normalize()
		rec.payment = &pd
	}

	var data domain.CheckoutData
	if ok, err := r.get(ctx, session, stagestore.KeyCheckoutData, &data); err != nil {
		return rec, err
	} else if ok {
		data.Payment.Normalize()
		rec.data = &data
	}

	if _, err := r.get(ctx, session, stagestore.KeyOrderConfirmed, &rec.confirmed); err != nil {
		return rec, err
	}

	var order domain.OrderResponse
	if ok, err := r.get(ctx, session, stagestore.KeyLastOrder, &order); err != nil {
		return rec, err
	} else if ok {
		rec.order = &order
	}

	return rec, nil
}

// get decodes key into v. A missing or undecodable record reports false;
// the guards then treat the stage as not reached.
func (r recordStore) get(ctx context.Context, session, key string, v any) (bool, error) {
	raw, err := r.store.Get(ctx, session, key)
	if errors.Is(err, stagestore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		r.log.WithFields(logrus.Fields{"session": session, "key": key}).WithError(err).Warn("ignoring unreadable stage record")
		return false, nil
	}
	return true, nil
}

func (r recordStore) put(ctx context.Context, session, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.store.Set(ctx, session, key, string(b)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (r recordStore) drop(ctx context.Context, session string, keys ...string) error {
	for _, k := range keys {
		if err := r.store.Delete(ctx, session, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}
