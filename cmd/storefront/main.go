// Command storefront serves the checkout flow to the browser.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/checkout"
	"autoparts-checkout/internal/config"
	"autoparts-checkout/internal/coupon"
	"autoparts-checkout/internal/infrastructure/catalog"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/logging"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/server"
	"autoparts-checkout/internal/stagestore"
	"autoparts-checkout/internal/submission"
)

func main() {
	cfg, err := config.LoadStorefront()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New("storefront", cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStageStore(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open stage store")
	}
	defer store.Close()

	var gateway payment.PaymentGateway
	if cfg.Gateway.Kind == "mock" {
		log.Warn("no payment gateway key configured, using the mock gateway")
		gateway = payment.NewMockGateway(payment.AlwaysSucceed)
	} else {
		gateway = payment.NewPaystackClient(cfg.Gateway.BaseURL, cfg.Gateway.Secret, nil)
	}

	coord := checkout.NewCoordinator(checkout.Deps{
		Store:       store,
		Cart:        catalog.NewHTTPCartSource(cfg.CartAPIURL, &http.Client{Timeout: 10 * time.Second}),
		Coupons:     coupon.NewResolver(cfg.Coupons),
		Fees:        cfg.Fees,
		Gateway:     gateway,
		Orders:      submission.NewClient(cfg.OrderAPIURL, nil),
		Metrics:     metrics.NewCheckout(prometheus.DefaultRegisterer),
		Log:         log,
		CallbackURL: cfg.CallbackURL,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewStorefront(coord, server.StorefrontConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			CookieName:     cfg.CookieName,
			CookieSecure:   cfg.CookieSecure,
			SessionTTL:     cfg.SessionTTL,
		}, log).RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.Addr, "stage_store": cfg.StageStore}).Info("storefront listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
}

func openStageStore(ctx context.Context, cfg *config.Storefront) (stagestore.Store, error) {
	switch cfg.StageStore {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return stagestore.NewRedis(client, cfg.SessionTTL), nil
	case "memory":
		return stagestore.NewMemory(), nil
	default:
		return stagestore.NewBolt(cfg.BoltPath)
	}
}
