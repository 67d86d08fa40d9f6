package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoparts-checkout/internal/database/dbtest"
	"autoparts-checkout/internal/domain"
	"autoparts-checkout/internal/repo"
)

func newOrder(ref string) *domain.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Order{
		ID:               uuid.New(),
		OrderCode:        "AP-" + ref,
		CheckoutID:       "c-" + ref,
		PaymentReference: ref,
		Status:           domain.OrderPending,
		Total:            42500,
		Request: domain.OrderRequest{
			CheckoutID:       "c-" + ref,
			PaymentReference: ref,
			Total:            42500,
			FullName:         "Ada Obi",
			Items:            []domain.OrderItem{{ProductID: "p-1", Quantity: 1, Price: 40000}},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepo(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()
	orders := repo.NewOrderRepo(db.DB())

	order := newOrder("chk_1")
	created, err := orders.CreateOrder(ctx, db.DB(), order)
	require.NoError(t, err)
	assert.True(t, created)

	t.Run("duplicate reference is not written", func(t *testing.T) {
		dup := newOrder("chk_1")
		dup.OrderCode = "AP-other"
		created, err := orders.CreateOrder(ctx, db.DB(), dup)
		require.NoError(t, err)
		assert.False(t, created)

		got, err := orders.FindById(ctx, dup.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("find by reference", func(t *testing.T) {
		got, err := orders.FindByReference(ctx, "chk_1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, order.ID, got.ID)
		assert.Equal(t, 42500.0, got.Total)
		assert.Equal(t, order.Request, got.Request)

		missing, err := orders.FindByReference(ctx, "chk_none")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("status moves only from the expected status", func(t *testing.T) {
		moved, err := orders.UpdateStatus(ctx, db.DB(), order.ID, domain.OrderPending, domain.OrderPaid)
		require.NoError(t, err)
		assert.True(t, moved)

		moved, err = orders.UpdateStatus(ctx, db.DB(), order.ID, domain.OrderPending, domain.OrderFailed)
		require.NoError(t, err)
		assert.False(t, moved)
	})

	t.Run("stuck orders", func(t *testing.T) {
		old := newOrder("chk_old")
		old.UpdatedAt = time.Now().Add(-time.Hour)
		_, err := orders.CreateOrder(ctx, db.DB(), old)
		require.NoError(t, err)
		_, err = orders.CreateOrder(ctx, db.DB(), newOrder("chk_fresh"))
		require.NoError(t, err)

		stuck, err := orders.FindStuckOrders(ctx, 10*time.Minute, 10)
		require.NoError(t, err)
		require.Len(t, stuck, 1)
		assert.Equal(t, "chk_old", stuck[0].PaymentReference)
	})
}

func TestPaymentRepo(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()
	payments := repo.NewPaymentRepo(db.DB())

	p := &domain.Payment{
		ID:        uuid.New(),
		Reference: "chk_9",
		Amount:    38500,
		Channel:   "card",
		Status:    domain.PaymentPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, payments.RecordPayment(ctx, db.DB(), p))

	again := *p
	again.ID = uuid.New()
	again.Status = domain.PaymentSuccess
	again.TransactionID = "4099260516"
	again.Channel = ""
	require.NoError(t, payments.RecordPayment(ctx, db.DB(), &again))

	got, err := payments.FindByReference(ctx, "chk_9")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, domain.PaymentSuccess, got.Status)
	assert.Equal(t, "4099260516", got.TransactionID)
	assert.Equal(t, "card", got.Channel)
	assert.Nil(t, got.OrderID)
	assert.Equal(t, 38500.0, got.Amount)

	transfer := &domain.Transfer{Code: "TRF_1", Reference: "r1", Status: domain.TransferSuccess, Amount: 1500}
	require.NoError(t, payments.UpsertTransfer(ctx, db.DB(), transfer))
	transfer.Status = domain.TransferFailed
	transfer.Reason = "account closed"
	require.NoError(t, payments.UpsertTransfer(ctx, db.DB(), transfer))

	tr, err := payments.FindTransfer(ctx, "TRF_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferFailed, tr.Status)
	assert.Equal(t, "account closed", tr.Reason)
}

func TestCustomOrderRepo(t *testing.T) {
	db := dbtest.Start(t)
	ctx := context.Background()
	custom := repo.NewCustomOrderRepo(db.DB())

	o := &domain.CustomOrder{
		ID:          uuid.New(),
		Name:        "Ada Obi",
		Email:       "ada@example.com",
		Phone:       "08031234567",
		ProductName: "1998 Corolla side mirror",
		Description: "Left side, manual adjust",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, custom.Create(ctx, o))

	got, err := custom.FindById(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ProductName, got.ProductName)
	assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
}
