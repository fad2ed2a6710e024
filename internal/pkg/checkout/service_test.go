package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AlertaPix/alertapix/app/models"
	"github.com/AlertaPix/alertapix/internal/pkg/mercadopago"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeRepo struct {
	transactions  map[string]*models.Transaction
	settings      map[uint]*models.StreamerSettings
	notifications int
	markPaidCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		transactions: make(map[string]*models.Transaction),
		settings:     make(map[uint]*models.StreamerSettings),
	}
}

func (r *fakeRepo) GetTransaction(id string) (*models.Transaction, error) {
	tx, ok := r.transactions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *tx
	return &copied, nil
}

func (r *fakeRepo) GetStreamerSettings(streamerID uint) (*models.StreamerSettings, error) {
	if ss, ok := r.settings[streamerID]; ok {
		return ss, nil
	}
	return &models.StreamerSettings{StreamerID: streamerID}, nil
}

func (r *fakeRepo) MarkPaid(id string, paymentID string, fees FeeBreakdown) (bool, error) {
	r.markPaidCalls++
	tx, ok := r.transactions[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if tx.Status == models.TransactionPaid {
		return false, nil
	}
	now := time.Now()
	tx.Status = models.TransactionPaid
	tx.MPPaymentID = &paymentID
	tx.GrossCents = fees.GrossCents
	tx.ProviderFeeCents = fees.ProviderFeeCents
	tx.PlatformFeeCents = fees.PlatformFeeCents
	tx.NetCents = fees.NetCents
	tx.PaidAt = &now
	return true, nil
}

func (r *fakeRepo) MarkFailed(id string, paymentID string) (bool, error) {
	tx, ok := r.transactions[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if tx.Status != models.TransactionPending {
		return false, nil
	}
	tx.Status = models.TransactionFailed
	tx.MPPaymentID = &paymentID
	return true, nil
}

func (r *fakeRepo) CreateTransaction(tx *models.Transaction) error {
	r.transactions[tx.ID] = tx
	return nil
}

func (r *fakeRepo) CreateNotification(streamerID uint, content string, transactionID string) error {
	r.notifications++
	return nil
}

type fakeGateway struct {
	payment *mercadopago.Payment
	err     error
	calls   int
}

func (g *fakeGateway) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return g.payment, nil
}

type fakeEnqueuer struct {
	enqueued []*models.Transaction
	err      error
}

func (e *fakeEnqueuer) EnqueueFromTransaction(ctx context.Context, tx *models.Transaction) error {
	if e.err != nil {
		return e.err
	}
	e.enqueued = append(e.enqueued, tx)
	return nil
}

func pendingTransaction(id string) *models.Transaction {
	return &models.Transaction{
		ID:         id,
		StreamerID: 7,
		AlertID:    3,
		Status:     models.TransactionPending,
		SenderName: "viewer",
		Message:    "great stream",
	}
}

func approvedPayment(reference string, amount string) *mercadopago.Payment {
	return &mercadopago.Payment{
		ID:                987654,
		Status:            mercadopago.PaymentStatusApproved,
		TransactionAmount: decimal.RequireFromString(amount),
		ExternalReference: reference,
	}
}

func paymentNotification() mercadopago.WebhookNotification {
	return mercadopago.WebhookNotification{Type: "payment", PaymentID: "987654"}
}

func TestProcessNotificationApprovedEndToEnd(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	gateway := &fakeGateway{payment: approvedPayment("tx-1", "25.00")}
	queue := &fakeEnqueuer{}
	svc := NewService(repo, gateway, queue)

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, outcome)

	tx := repo.transactions["tx-1"]
	assert.Equal(t, models.TransactionPaid, tx.Status)
	assert.Equal(t, int64(2500), tx.GrossCents)
	assert.Equal(t, int64(100), tx.ProviderFeeCents)
	assert.Equal(t, int64(125), tx.PlatformFeeCents)
	assert.Equal(t, int64(2275), tx.NetCents)
	require.NotNil(t, tx.MPPaymentID)
	assert.Equal(t, "987654", *tx.MPPaymentID)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "tx-1", queue.enqueued[0].ID)
	assert.Equal(t, 1, repo.notifications)
}

func TestProcessNotificationDuplicateDelivery(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	gateway := &fakeGateway{payment: approvedPayment("tx-1", "10.00")}
	queue := &fakeEnqueuer{}
	svc := NewService(repo, gateway, queue)

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeApproved, outcome)

	// Redelivery of the same notification must be a no-op.
	outcome, err = svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)

	assert.Len(t, queue.enqueued, 1)
	assert.Equal(t, 1, repo.notifications)
	assert.Equal(t, 1, repo.markPaidCalls)
}

func TestProcessNotificationConcurrentDeliveryLosesConditionalWrite(t *testing.T) {
	// Both deliveries pass the read-time guard; the second must lose the
	// conditional write and report a duplicate.
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	gateway := &fakeGateway{payment: approvedPayment("tx-1", "10.00")}
	queue := &fakeEnqueuer{}
	svc := NewService(repo, gateway, queue)

	tx, err := repo.GetTransaction("tx-1")
	require.NoError(t, err)
	require.Equal(t, models.TransactionPending, tx.Status)

	// Simulate the racing delivery landing first.
	updated, err := repo.MarkPaid("tx-1", "987654", ComputeFees(decimal.RequireFromString("10.00"), PlatformFeeRateBps))
	require.NoError(t, err)
	require.True(t, updated)

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, queue.enqueued)
}

func TestProcessNotificationPaidNeverOverwritten(t *testing.T) {
	repo := newFakeRepo()
	tx := pendingTransaction("tx-1")
	require.NoError(t, repo.CreateTransaction(tx))
	gateway := &fakeGateway{payment: approvedPayment("tx-1", "10.00")}
	svc := NewService(repo, gateway, &fakeEnqueuer{})

	_, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	require.Equal(t, models.TransactionPaid, repo.transactions["tx-1"].Status)

	// A later rejected notification must not move the row off paid.
	gateway.payment = &mercadopago.Payment{
		ID:                987654,
		Status:            mercadopago.PaymentStatusRejected,
		TransactionAmount: decimal.RequireFromString("10.00"),
		ExternalReference: "tx-1",
	}
	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, models.TransactionPaid, repo.transactions["tx-1"].Status)
}

func TestProcessNotificationRejectedPayment(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	gateway := &fakeGateway{payment: &mercadopago.Payment{
		ID:                987654,
		Status:            mercadopago.PaymentStatusRejected,
		TransactionAmount: decimal.RequireFromString("10.00"),
		ExternalReference: "tx-1",
	}}
	queue := &fakeEnqueuer{}
	svc := NewService(repo, gateway, queue)

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Equal(t, models.TransactionFailed, repo.transactions["tx-1"].Status)

	// Terminal failures produce zero side effects.
	assert.Empty(t, queue.enqueued)
	assert.Zero(t, repo.notifications)
}

func TestProcessNotificationPendingStatusIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	gateway := &fakeGateway{payment: &mercadopago.Payment{
		ID:                987654,
		Status:            mercadopago.PaymentStatusInProcess,
		TransactionAmount: decimal.RequireFromString("10.00"),
		ExternalReference: "tx-1",
	}}
	svc := NewService(repo, gateway, &fakeEnqueuer{})

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, outcome)
	assert.Equal(t, models.TransactionPending, repo.transactions["tx-1"].Status)
}

func TestProcessNotificationNonPaymentEventIgnored(t *testing.T) {
	gateway := &fakeGateway{}
	svc := NewService(newFakeRepo(), gateway, &fakeEnqueuer{})

	outcome, err := svc.ProcessNotification(context.Background(), mercadopago.WebhookNotification{
		Type:      "merchant_order",
		PaymentID: "123",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Zero(t, gateway.calls, "non-payment events must not hit the gateway")
}

func TestProcessNotificationUncorrelatedPaymentIgnored(t *testing.T) {
	gateway := &fakeGateway{payment: approvedPayment("", "10.00")}
	svc := NewService(newFakeRepo(), gateway, &fakeEnqueuer{})

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestProcessNotificationGatewayFailureIsRetryable(t *testing.T) {
	gateway := &fakeGateway{err: errors.New("status=500 body=internal error")}
	svc := NewService(newFakeRepo(), gateway, &fakeEnqueuer{})

	_, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGatewayFetch)
}

func TestProcessNotificationMissingTransactionSurfaces(t *testing.T) {
	gateway := &fakeGateway{payment: approvedPayment("tx-ghost", "10.00")}
	svc := NewService(newFakeRepo(), gateway, &fakeEnqueuer{})

	_, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestProcessNotificationQueueFailureDoesNotFailWebhook(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	gateway := &fakeGateway{payment: approvedPayment("tx-1", "10.00")}
	queue := &fakeEnqueuer{err: errors.New("queue store down")}
	svc := NewService(repo, gateway, queue)

	outcome, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err, "captured payment must never be failed by a secondary write")
	assert.Equal(t, OutcomeApproved, outcome)
	assert.Equal(t, models.TransactionPaid, repo.transactions["tx-1"].Status)
}

func TestProcessNotificationUsesStreamerCommission(t *testing.T) {
	repo := newFakeRepo()
	require.NoError(t, repo.CreateTransaction(pendingTransaction("tx-1")))
	commission := int64(1000)
	repo.settings[7] = &models.StreamerSettings{StreamerID: 7, CommissionBps: &commission}
	gateway := &fakeGateway{payment: approvedPayment("tx-1", "10.00")}
	svc := NewService(repo, gateway, &fakeEnqueuer{})

	_, err := svc.ProcessNotification(context.Background(), paymentNotification())
	require.NoError(t, err)

	tx := repo.transactions["tx-1"]
	assert.Equal(t, int64(100), tx.PlatformFeeCents)
	assert.Equal(t, int64(860), tx.NetCents)
}
