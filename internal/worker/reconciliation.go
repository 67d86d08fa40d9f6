package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/metrics"
	"autoparts-checkout/internal/repo"
	"autoparts-checkout/internal/service"
)

const batchSize = 50

// ReconciliationWorker settles orders that stayed PENDING because the
// webhook never arrived. The gateway is the source of truth.
type ReconciliationWorker struct {
	orderRepo repo.OrderRepo
	orders    service.OrderService
	gateway   payment.PaymentGateway
	interval  time.Duration
	after     time.Duration
	metrics   *metrics.Backend
	log       logrus.FieldLogger
}

func NewReconciliationWorker(
	orderRepo repo.OrderRepo,
	orders service.OrderService,
	gateway payment.PaymentGateway,
	interval, after time.Duration,
	m *metrics.Backend,
	log logrus.FieldLogger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		orderRepo: orderRepo,
		orders:    orders,
		gateway:   gateway,
		interval:  interval,
		after:     after,
		metrics:   m,
		log:       log,
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.log.WithFields(logrus.Fields{"interval": rw.interval, "after": rw.after}).Info("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			rw.log.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if _, err := rw.process(ctx); err != nil && !errors.Is(err, context.Canceled) {
				rw.log.WithError(err).Error("reconciliation failed")
			}
		}
	}
}

// process checks one batch of stuck orders and returns how many it settled.
func (rw *ReconciliationWorker) process(ctx context.Context) (int, error) {
	stuck, err := rw.orderRepo.FindStuckOrders(ctx, rw.after, batchSize)
	if err != nil {
		return 0, err
	}
	if len(stuck) == 0 {
		return 0, nil
	}
	rw.log.WithField("count", len(stuck)).Info("found stuck orders")

	settled := 0
	for _, order := range stuck {
		log := rw.log.WithFields(logrus.Fields{"order_id": order.ID, "reference": order.PaymentReference})

		v, err := rw.gateway.Verify(ctx, order.PaymentReference)
		if err != nil {
			// try again next tick
			log.WithError(err).Warn("could not verify payment")
			continue
		}
		if v.Status == domain.PaymentPending {
			continue
		}

		moved, err := rw.orders.SettleOrder(ctx, order, *v)
		if err != nil {
			return settled, err
		}
		if moved {
			settled++
			rw.metrics.Reconciliations.WithLabelValues(string(v.Status)).Inc()
			log.WithField("payment_status", v.Status).Info("stuck order reconciled")
		}
	}
	return settled, nil
}
