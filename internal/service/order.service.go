package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/infrastructure/events"
	"autoparts-checkout/internal/infrastructure/payment"
	"autoparts-checkout/internal/repo"
)

type OrderService interface {
	// CreateOrder stores the order for req.PaymentReference. When that
	// reference already has an order, it is returned with created=false and
	// nothing is written.
	CreateOrder(ctx context.Context, req domain.OrderRequest) (order *domain.Order, created bool, err error)
	// ApplyWebhookEvent records what the gateway reported. Unknown events
	// are acknowledged and ignored.
	ApplyWebhookEvent(ctx context.Context, ev payment.Event) error
	// SettleOrder moves a pending order to the outcome the gateway reports.
	// A charge that does not match the order total puts the order in
	// REVIEW. It reports false when the order was no longer pending.
	SettleOrder(ctx context.Context, order domain.Order, v payment.Verification) (bool, error)
	CreateCustomOrder(ctx context.Context, o *domain.CustomOrder) error
}

type orderService struct {
	db              *sql.DB
	orderRepo       repo.OrderRepo
	paymentRepo     repo.PaymentRepo
	customOrderRepo repo.CustomOrderRepo
	gateway         payment.PaymentGateway
	publisher       events.Publisher
	log             logrus.FieldLogger
	now             func() time.Time
}

// NewOrderService builds the order service. gateway may be nil; new orders
// then stay PENDING until the webhook or the reconciler settles them.
func NewOrderService(
	db *sql.DB,
	orderRepo repo.OrderRepo,
	paymentRepo repo.PaymentRepo,
	customOrderRepo repo.CustomOrderRepo,
	gateway payment.PaymentGateway,
	publisher events.Publisher,
	log logrus.FieldLogger,
) OrderService {
	return &orderService{
		db:              db,
		orderRepo:       orderRepo,
		paymentRepo:     paymentRepo,
		customOrderRepo: customOrderRepo,
		gateway:         gateway,
		publisher:       publisher,
		log:             log,
		now:             time.Now,
	}
}

func validateOrder(req domain.OrderRequest) error {
	verr := domain.NewValidationError()
	if strings.TrimSpace(req.PaymentReference) == "" {
		verr.Add("payment_reference", "is required")
	}
	if strings.TrimSpace(req.CheckoutID) == "" {
		verr.Add("checkout_id", "is required")
	}
	if len(req.Items) == 0 {
		verr.Add("items", "must not be empty")
	}
	if req.Total < 0 {
		verr.Add("total", "must not be negative")
	}
	if strings.TrimSpace(req.FullName) == "" {
		verr.Add("full_name", "is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		verr.Add("email", "is required")
	}
	return verr.OrNil()
}

func (s *orderService) CreateOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, bool, error) {
	if err := validateOrder(req); err != nil {
		return nil, false, err
	}
	log := s.log.WithField("reference", req.PaymentReference)

	existing, err := s.orderRepo.FindByReference(ctx, req.PaymentReference)
	if err != nil {
		return nil, false, fmt.Errorf("find order: %w", err)
	}
	if existing != nil {
		log.WithField("order_id", existing.ID).Info("order replayed")
		return existing, false, nil
	}

	// the webhook can arrive before the order does
	paid, err := s.paymentRepo.FindByReference(ctx, req.PaymentReference)
	if err != nil {
		return nil, false, fmt.Errorf("find payment: %w", err)
	}

	now := s.now().UTC()
	id := uuid.New()
	order := &domain.Order{
		ID:               id,
		OrderCode:        orderCode(id),
		CheckoutID:       req.CheckoutID,
		PaymentReference: req.PaymentReference,
		Status:           domain.OrderPending,
		Total:            req.Total,
		Request:          req,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	// payment_status in the request is the storefront's view and is not trusted
	if paid != nil {
		order.Status = settledStatus(order.Total, paid.Status, paid.Amount)
		if order.Status == domain.OrderReview {
			log.WithFields(logrus.Fields{"paid": paid.Amount, "total": order.Total}).Warn("charge amount does not match order total")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	created, err := s.orderRepo.CreateOrder(ctx, tx, order)
	if err != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}
	if !created {
		// lost a race with a concurrent request for the same reference
		tx.Rollback()
		existing, err := s.orderRepo.FindByReference(ctx, req.PaymentReference)
		if err != nil {
			return nil, false, fmt.Errorf("find order: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("order %s vanished after conflict", req.PaymentReference)
		}
		return existing, false, nil
	}
	if paid != nil && paid.OrderID == nil {
		paid.OrderID = &order.ID
		if err := s.paymentRepo.RecordPayment(ctx, tx, paid); err != nil {
			return nil, false, fmt.Errorf("link payment: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	log.WithFields(logrus.Fields{"order_id": order.ID, "order_code": order.OrderCode, "status": order.Status}).Info("order created")
	s.publish(ctx, events.Event{
		Type:      events.OrderCreated,
		Reference: order.PaymentReference,
		OrderID:   order.ID.String(),
		Status:    string(order.Status),
		Amount:    order.Total,
	})

	if order.Status == domain.OrderPending && s.gateway != nil {
		s.verifyNow(ctx, order)
	}
	return order, true, nil
}

// verifyNow asks the gateway about a new order so a paid checkout does not
// wait for the webhook. On any failure the order stays PENDING for the
// webhook or the reconciler.
func (s *orderService) verifyNow(ctx context.Context, order *domain.Order) {
	log := s.log.WithFields(logrus.Fields{"order_id": order.ID, "reference": order.PaymentReference})
	v, err := s.gateway.Verify(ctx, order.PaymentReference)
	if err != nil {
		log.WithError(err).Warn("payment verification deferred")
		return
	}
	to, moved, err := s.settle(ctx, *order, *v)
	if err != nil {
		log.WithError(err).Warn("payment verification deferred")
		return
	}
	if moved {
		order.Status = to
	}
}

// settledStatus is the order status a charge outcome leads to.
func settledStatus(total float64, status domain.PaymentStatus, amount float64) domain.OrderStatus {
	switch status {
	case domain.PaymentSuccess:
		if math.Abs(amount-total) > 0.005 {
			return domain.OrderReview
		}
		return domain.OrderPaid
	case domain.PaymentFailed:
		return domain.OrderFailed
	default:
		return domain.OrderPending
	}
}

func (s *orderService) ApplyWebhookEvent(ctx context.Context, ev payment.Event) error {
	switch ev.Type() {
	case payment.EventChargeSuccess:
		data, err := ev.Charge()
		if err != nil {
			return err
		}
		if data.Reference == "" {
			return errors.New("charge event has no reference")
		}
		return s.applyCharge(ctx, payment.Verification{
			Reference:     data.Reference,
			Status:        domain.PaymentSuccess,
			Amount:        payment.Amount(data.Amount),
			TransactionID: strconv.FormatInt(data.ID, 10),
			Channel:       data.Channel,
		})
	case payment.EventTransferSuccess, payment.EventTransferFailed:
		data, err := ev.Transfer()
		if err != nil {
			return err
		}
		return s.applyTransfer(ctx, ev.Type(), data)
	case payment.EventUnknown:
		s.log.WithField("event", ev.Event).Info("ignoring unhandled webhook event")
		return nil
	}
	return nil
}

func (s *orderService) applyCharge(ctx context.Context, v payment.Verification) error {
	order, err := s.orderRepo.FindByReference(ctx, v.Reference)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}
	if order == nil {
		// recorded now, linked when the order arrives
		return s.paymentRepo.RecordPayment(ctx, s.db, s.newPayment(nil, v))
	}
	_, err = s.SettleOrder(ctx, *order, v)
	return err
}

func (s *orderService) SettleOrder(ctx context.Context, order domain.Order, v payment.Verification) (bool, error) {
	_, moved, err := s.settle(ctx, order, v)
	return moved, err
}

func (s *orderService) settle(ctx context.Context, order domain.Order, v payment.Verification) (domain.OrderStatus, bool, error) {
	log := s.log.WithFields(logrus.Fields{"order_id": order.ID, "reference": order.PaymentReference})

	to := settledStatus(order.Total, v.Status, v.Amount)
	if to == domain.OrderReview {
		log.WithFields(logrus.Fields{"paid": v.Amount, "total": order.Total}).Warn("charge amount does not match order total")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, err
	}
	defer tx.Rollback()

	if v.Status != domain.PaymentPending {
		if err := s.paymentRepo.RecordPayment(ctx, tx, s.newPayment(&order.ID, v)); err != nil {
			return "", false, fmt.Errorf("record payment: %w", err)
		}
	}
	moved := false
	if to != domain.OrderPending {
		if moved, err = s.orderRepo.UpdateStatus(ctx, tx, order.ID, domain.OrderPending, to); err != nil {
			return "", false, fmt.Errorf("update order: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", false, err
	}

	if moved {
		log.WithField("status", to).Info("order settled")
		s.publish(ctx, events.Event{
			Type:      settledEvent(to),
			Reference: order.PaymentReference,
			OrderID:   order.ID.String(),
			Status:    string(to),
			Amount:    v.Amount,
		})
	}
	return to, moved, nil
}

func settledEvent(to domain.OrderStatus) events.Type {
	switch to {
	case domain.OrderFailed:
		return events.OrderFailed
	case domain.OrderReview:
		return events.OrderFlagged
	default:
		return events.OrderPaid
	}
}

func (s *orderService) applyTransfer(ctx context.Context, typ payment.EventType, data payment.TransferData) error {
	if data.TransferCode == "" {
		return errors.New("transfer event has no transfer code")
	}
	t := &domain.Transfer{
		Code:      data.TransferCode,
		Reference: data.Reference,
		Status:    domain.TransferSuccess,
		Amount:    payment.Amount(data.Amount),
		Reason:    data.Reason,
	}
	if typ == payment.EventTransferFailed {
		t.Status = domain.TransferFailed
	}
	if err := s.paymentRepo.UpsertTransfer(ctx, s.db, t); err != nil {
		return fmt.Errorf("upsert transfer: %w", err)
	}

	s.log.WithFields(logrus.Fields{"transfer_code": t.Code, "status": t.Status}).Info("transfer updated")
	s.publish(ctx, events.Event{
		Type:      events.TransferSettled,
		Reference: t.Reference,
		Status:    string(t.Status),
		Amount:    t.Amount,
	})
	return nil
}

func (s *orderService) CreateCustomOrder(ctx context.Context, o *domain.CustomOrder) error {
	if missing := o.MissingFields(); len(missing) > 0 {
		verr := domain.NewValidationError()
		for _, f := range missing {
			verr.Add(f, "is required")
		}
		return verr
	}
	o.ID = uuid.New()
	o.CreatedAt = s.now().UTC()
	if err := s.customOrderRepo.Create(ctx, o); err != nil {
		return fmt.Errorf("insert custom order: %w", err)
	}
	s.log.WithFields(logrus.Fields{"custom_order_id": o.ID, "product": o.ProductName}).Info("custom order received")
	s.publish(ctx, events.Event{Type: events.CustomOrderAdded, Reference: o.ID.String()})
	return nil
}

func (s *orderService) newPayment(orderID *uuid.UUID, v payment.Verification) *domain.Payment {
	now := s.now().UTC()
	return &domain.Payment{
		ID:            uuid.New(),
		OrderID:       orderID,
		Reference:     v.Reference,
		Amount:        v.Amount,
		TransactionID: v.TransactionID,
		Channel:       v.Channel,
		Status:        v.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// publish never fails the caller; the row is already committed.
func (s *orderService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.log.WithError(err).WithField("event", e.Type).Warn("event not published")
	}
}

func orderCode(id uuid.UUID) string {
	return "AP-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:10])
}
