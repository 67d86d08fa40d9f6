// Command backend runs the order API, the payment webhook receiver and the
// reconciliation worker.
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
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/config"
	"autoparts-checkout/internal/database"
	"autoparts-checkout/internal/infrastructure/events"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/logging"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/repo"
	"autoparts-checkout/internal/server"
	"autoparts-checkout/internal/service"
	"autoparts-checkout/internal/worker"
)

func main() {
	cfg, err := config.LoadBackend()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New("backend", cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB.URL(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}

	publisher := events.Nop()
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.WithField("topic", cfg.KafkaTopic).Info("publishing events to kafka")
	}
	defer publisher.Close()

	m := metrics.NewBackend(prometheus.DefaultRegisterer)

	// a mock gateway knows nothing about charges made elsewhere
	var gateway payment.PaymentGateway
	if cfg.Gateway.Kind == "mock" {
		log.Warn("no payment gateway configured, orders settle by webhook only")
	} else {
		gateway = payment.NewPaystackClient(cfg.Gateway.BaseURL, cfg.Gateway.Secret, nil)
	}

	orderRepo := repo.NewOrderRepo(db.DB())
	orderService := service.NewOrderService(db.DB(),
		orderRepo,
		repo.NewPaymentRepo(db.DB()),
		repo.NewCustomOrderRepo(db.DB()),
		gateway,
		publisher,
		log,
	)

	if gateway != nil {
		reconciler := worker.NewReconciliationWorker(orderRepo, orderService, gateway, cfg.ReconcileEvery, cfg.ReconcileAfter, m, log)
		go reconciler.Run(ctx)
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewBackend(orderService, db, server.BackendConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			WebhookSecret:  cfg.WebhookSecret,
			APITokens:      cfg.APITokens,
		}, m, log).RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	go func() {
		log.WithField("addr", cfg.Addr).Info("backend listening")
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
