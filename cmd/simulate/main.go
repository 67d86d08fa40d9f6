// Command simulate drives checkout attempts through the coordinator against
// a running backend. The mock gateway declines some payments and leaves
// some pending; pending ones are settled afterwards by a signed webhook, the
// way the real gateway reports a charge the browser never heard back about.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/checkout"
	"autoparts-checkout/internal/config"
	"autoparts-checkout/internal/coupon"
	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/infrastructure/catalog"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/logging"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/stagestore"
	"autoparts-checkout/internal/submission"
)

var parts = []domain.CartLineItem{
	{ProductID: "brk-101", Name: "Brake pads (front)", Quantity: 1, Price: "25000"},
	{ProductID: "oil-220", Name: "Oil filter", Quantity: 1, Price: "15000"},
	{ProductID: "spk-330", Name: "Spark plugs x4", Quantity: 1, Price: "18,500"},
	{ProductID: "blt-440", Name: "Timing belt", Quantity: 1, Price: "42000.50"},
	{ProductID: "wpr-550", Name: "Wiper blades", Quantity: 1, Price: "call for price"},
}

func main() {
	attempts := flag.Int("n", 20, "number of checkout attempts")
	backendURL := flag.String("backend", "http://localhost:8081", "order API base URL")
	flag.Parse()

	cfg, err := config.LoadStorefront()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New("simulate", cfg.Log.Level, "text")
	ctx := context.Background()

	carts := catalog.NewStaticCart()
	gateway := payment.NewMockGateway(payment.RandomOutcome)
	coupons := cfg.Coupons
	if len(coupons) == 0 {
		coupons = coupon.StaticCatalog{"SAVE10": {Code: "SAVE10", Kind: domain.CouponPercent, Value: 10}}
	}
	coord := checkout.NewCoordinator(checkout.Deps{
		Store:   stagestore.NewMemory(),
		Cart:    carts,
		Coupons: coupon.NewResolver(coupons),
		Fees:    cfg.Fees,
		Gateway: gateway,
		Orders:  submission.NewClient(*backendURL, nil),
		Metrics: metrics.NewCheckout(prometheus.NewRegistry()),
		Log:     log.WithField("component", "checkout"),
	})

	fmt.Printf("--- STARTING SIMULATION (%d CHECKOUTS) ---\n", *attempts)
	var pending []*checkout.PaymentIntent
	for i := 0; i < *attempts; i++ {
		sess := checkout.Session{ID: uuid.NewString(), Token: fmt.Sprintf("shopper-%d", i)}
		carts.Put(sess.Token, randomCart())

		fmt.Printf("[%d] session %s ... ", i+1, sess.ID[:8])
		intent, order, err := runCheckout(ctx, coord, sess)
		switch {
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
		default:
			fmt.Printf("ORDER %s (%s) for %.2f\n", order.OrderCode, order.Status, intent.Amount)
			if order.Status == domain.OrderPending {
				pending = append(pending, intent)
			}
			// a double click on "place order"
			if again, err := coord.Confirm(ctx, sess); err == nil && again.ID != order.ID {
				fmt.Printf("    -> DUPLICATE ORDER %s\n", again.OrderCode)
			}
		}
		fmt.Println("---------------------------------------------------")
		time.Sleep(100 * time.Millisecond)
	}

	if len(pending) == 0 {
		return
	}
	fmt.Printf("--- SETTLING %d PENDING CHARGES BY WEBHOOK ---\n", len(pending))
	for _, intent := range pending {
		gateway.Settle(intent.Reference, domain.PaymentSuccess)
		status, err := sendChargeWebhook(ctx, *backendURL, cfg.Gateway.Secret, intent)
		if err != nil {
			fmt.Printf("%s -> webhook failed: %v\n", intent.Reference, err)
			continue
		}
		fmt.Printf("%s -> webhook %d\n", intent.Reference, status)
	}
}

func randomCart() []domain.CartLineItem {
	n := 1 + rand.IntN(3)
	picked := make([]domain.CartLineItem, 0, n)
	for _, i := range rand.Perm(len(parts))[:n] {
		picked = append(picked, parts[i])
	}
	return picked
}

func runCheckout(ctx context.Context, coord *checkout.Coordinator, sess checkout.Session) (*checkout.PaymentIntent, *domain.OrderResponse, error) {
	form := checkout.ShippingForm{
		FullName:     "Sim Shopper",
		Email:        "shopper@example.com",
		Phone:        "08030000000",
		Address:      "1 Simulation Way",
		City:         "Ikeja",
		State:        "Lagos",
		DeliveryType: []string{"standard", "express", "pickup"}[rand.IntN(3)],
	}
	if rand.IntN(3) == 0 {
		form.CouponCode = "SAVE10"
	}
	if _, err := coord.SubmitShipping(ctx, sess, form); err != nil {
		return nil, nil, err
	}
	intent, err := coord.InitiatePayment(ctx, sess, "card")
	if err != nil {
		return nil, nil, err
	}
	if _, err := coord.CompletePayment(ctx, sess, intent.Reference, "card"); err != nil {
		return intent, nil, err
	}
	order, err := coord.Confirm(ctx, sess)
	return intent, order, err
}

func sendChargeWebhook(ctx context.Context, backendURL, secret string, intent *checkout.PaymentIntent) (int, error) {
	data, err := json.Marshal(payment.ChargeData{
		ID:        rand.Int64N(1 << 40),
		Reference: intent.Reference,
		Status:    "success",
		Amount:    int64(math.Round(intent.Amount * 100)),
		Channel:   "card",
	})
	if err != nil {
		return 0, err
	}
	body, err := json.Marshal(payment.Event{Event: string(payment.EventChargeSuccess), Data: data})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, backendURL+"/webhooks/paystack", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(payment.SignatureHeader, payment.Sign(secret, body))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
