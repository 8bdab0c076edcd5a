package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/repository/memory"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

func newWithdrawalService(store *memory.Store, gw gateway.Client, def models.PaymentMode, minRetained int64) *services.WithdrawalService {
	modes := services.NewModeResolver(store, def)
	return services.NewWithdrawalService(store, gw, modes, minRetained, nil, nil)
}

func TestWithdrawInvalidAmount(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	svc := newWithdrawalService(store, &stubGateway{}, models.ModeAuto, 0)

	_, err := svc.Initiate(context.Background(), "u1", 0, "upi", "acc-1")
	assert.ErrorIs(t, err, services.ErrInvalidAmount)
	_, err = svc.Initiate(context.Background(), "u1", -5, "upi", "acc-1")
	assert.ErrorIs(t, err, services.ErrInvalidAmount)
}

func TestWithdrawBalanceFloorHasNoSideEffect(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	called := false
	gw := &stubGateway{createWithdrawal: func(gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
		called = true
		return &gateway.OrderResult{OrderID: "ord-1", Status: "pending"}, nil
	}}
	svc := newWithdrawalService(store, gw, models.ModeAuto, 300)

	// 1000 - 800 = 200 would drop under the 300 floor.
	_, err := svc.Initiate(context.Background(), "u1", 800, "upi", "acc-1")
	assert.ErrorIs(t, err, services.ErrInsufficientBalance)
	assert.False(t, called, "the gateway must not be called on a floor violation")
	assert.Equal(t, int64(1000), balance(t, store, "u1"))

	txns, err := store.Transactions().ListByUser(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, txns, "a floor violation must not leave a transaction behind")
}

func TestAutoWithdrawalAcceptedReservesOnce(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	svc := newWithdrawalService(store, &stubGateway{}, models.ModeAuto, 0)

	res, err := svc.Initiate(context.Background(), "u1", 400, "upi", "acc-1")
	require.NoError(t, err)
	assert.False(t, res.RequiresApproval)
	assert.Equal(t, models.TxnProcessing, res.Transaction.Status)
	assert.Equal(t, int64(600), balance(t, store, "u1"), "acceptance is the debit point")

	got, err := store.Transactions().GetByID(context.Background(), res.Transaction.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DebitedAt)
	require.NotNil(t, got.GatewayOrderID)
	assert.Equal(t, "ord-wdl", *got.GatewayOrderID)

	// The confirming webhook must not debit a second time.
	wh := newWebhookService(store, models.ModeAuto)
	b := signedBatch(gateway.WebhookEntry{OrderID: "ord-wdl", Status: "success", Amount: 400, CustomUserID: "u1"})
	require.NoError(t, wh.ProcessBatch(context.Background(), b))
	assert.Equal(t, int64(600), balance(t, store, "u1"))

	got, err = store.Transactions().GetByID(context.Background(), res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, got.Status)
}

func TestAutoWithdrawalImmediateSuccess(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	gw := &stubGateway{createWithdrawal: func(gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
		return &gateway.OrderResult{OrderID: "ord-1", Status: "success"}, nil
	}}
	svc := newWithdrawalService(store, gw, models.ModeAuto, 0)

	res, err := svc.Initiate(context.Background(), "u1", 400, "upi", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, res.Transaction.Status)
	assert.Equal(t, int64(600), balance(t, store, "u1"))
}

func TestAutoWithdrawalRejectedNoDebit(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	gw := &stubGateway{createWithdrawal: func(gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
		return nil, &gateway.RejectedError{Op: "create_withdrawal", Code: "ACCOUNT_BLOCKED", Reason: "account blocked"}
	}}
	svc := newWithdrawalService(store, gw, models.ModeAuto, 0)

	_, err := svc.Initiate(context.Background(), "u1", 400, "upi", "acc-1")
	var rej *gateway.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, int64(1000), balance(t, store, "u1"))

	txns, err := store.Transactions().ListByUser(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TxnFailed, txns[0].Status)
	assert.Nil(t, txns[0].DebitedAt)
}

func TestAutoWithdrawalTransientErrorStaysRecoverable(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	gw := &stubGateway{createWithdrawal: func(gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
		return nil, &gateway.GatewayError{Op: "create_withdrawal", Err: errors.New("timeout")}
	}}
	svc := newWithdrawalService(store, gw, models.ModeAuto, 0)

	res, err := svc.Initiate(context.Background(), "u1", 400, "upi", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, res.Transaction.Status)
	assert.Equal(t, int64(1000), balance(t, store, "u1"), "no debit until the gateway confirms acceptance")

	got, err := store.Transactions().GetByID(context.Background(), res.Transaction.ID)
	require.NoError(t, err)
	assert.Nil(t, got.DebitedAt)
}

func TestAutoWithdrawalWebhookRacesTransientError(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	wh := newWebhookService(store, models.ModeAuto)
	// The aggregator received the request and its failure report arrives
	// before the HTTP response does; the late PROCESSING write must not
	// regress the terminal state.
	gw := &stubGateway{createWithdrawal: func(req gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
		b := signedBatch(gateway.WebhookEntry{
			CustomTransactionID: req.InvoiceNo, Status: "failed",
			Amount: req.Amount, CustomUserID: req.UserID,
		})
		if err := wh.ProcessBatch(context.Background(), b); err != nil {
			return nil, err
		}
		return nil, &gateway.GatewayError{Op: "create_withdrawal", Err: errors.New("timeout")}
	}}
	svc := newWithdrawalService(store, gw, models.ModeAuto, 0)

	res, err := svc.Initiate(context.Background(), "u1", 400, "upi", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, res.Transaction.Status)

	got, err := store.Transactions().GetByID(context.Background(), res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)
	assert.Nil(t, got.DebitedAt)
	assert.Equal(t, int64(1000), balance(t, store, "u1"))
}

func TestManualWithdrawalAwaitsApproval(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	called := false
	gw := &stubGateway{createWithdrawal: func(gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
		called = true
		return &gateway.OrderResult{OrderID: "ord-1", Status: "pending"}, nil
	}}
	svc := newWithdrawalService(store, gw, models.ModeManual, 0)

	res, err := svc.Initiate(context.Background(), "u1", 400, "upi", "acc-1")
	require.NoError(t, err)
	assert.True(t, res.RequiresApproval)
	assert.Equal(t, models.TxnPending, res.Transaction.Status)
	assert.False(t, called, "manual mode defers the gateway call to the approval")
	assert.Equal(t, int64(1000), balance(t, store, "u1"))

	a, err := store.Approvals().GetPendingByTransaction(context.Background(), res.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalWithdrawal, a.Type)
}
