package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/repository/memory"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

func seedDeposit(t *testing.T, store *memory.Store, userID, invoice string, amount int64, mode models.PaymentMode) models.Transaction {
	t.Helper()
	txn, err := store.Transactions().Create(context.Background(), models.Transaction{
		UserID:    userID,
		Amount:    amount,
		Currency:  "INR",
		Type:      models.TxnDeposit,
		Status:    models.TxnPending,
		Mode:      mode,
		InvoiceNo: invoice,
	})
	require.NoError(t, err)
	return txn
}

func seedWithdrawal(t *testing.T, store *memory.Store, userID, invoice string, amount int64, mode models.PaymentMode, status models.TransactionStatus) models.Transaction {
	t.Helper()
	txn, err := store.Transactions().Create(context.Background(), models.Transaction{
		UserID:    userID,
		Amount:    amount,
		Currency:  "INR",
		Type:      models.TxnWithdrawal,
		Status:    status,
		Mode:      mode,
		InvoiceNo: invoice,
	})
	require.NoError(t, err)
	return txn
}

func balance(t *testing.T, store *memory.Store, userID string) int64 {
	t.Helper()
	w, err := store.Wallets().Get(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func TestProcessBatchRejectsBadSignature(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{CustomTransactionID: "DEP-1", Status: "success", Amount: 500, CustomUserID: "u1"})
	b.Signature = "0000000000000000000000000000000000000000"

	err := svc.ProcessBatch(context.Background(), b)
	assert.ErrorIs(t, err, services.ErrSignatureInvalid)
	assert.Equal(t, int64(1000), balance(t, store, "u1"), "a rejected batch must not touch wallets")
}

func TestAutoDepositSuccessCreditsOnce(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{
		OrderID: "ord-1", CustomTransactionID: "DEP-1", Status: "paid",
		Amount: 500, Currency: "INR", CustomUserID: "u1",
	})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, got.Status)
	require.NotNil(t, got.GatewayOrderID)
	assert.Equal(t, "ord-1", *got.GatewayOrderID)
	assert.Equal(t, int64(1500), balance(t, store, "u1"))

	// Redelivery of the same batch acknowledges without crediting again.
	require.NoError(t, svc.ProcessBatch(context.Background(), b))
	assert.Equal(t, int64(1500), balance(t, store, "u1"))
}

func TestManualDepositSuccessParksApproval(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeManual)
	svc := newWebhookService(store, models.ModeManual)

	b := signedBatch(gateway.WebhookEntry{
		CustomTransactionID: "DEP-1", Status: "success", Amount: 500, CustomUserID: "u1",
	})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, got.Status)
	assert.Equal(t, int64(1000), balance(t, store, "u1"), "manual mode must not credit before approval")

	a, err := store.Approvals().GetPendingByTransaction(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalDeposit, a.Type)

	// Redelivery does not stack a second approval.
	require.NoError(t, svc.ProcessBatch(context.Background(), b))
	pending, err := store.Approvals().ListByStatus(context.Background(), models.ApprovalPending, 10, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDepositFailureIsSticky(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	failed := signedBatch(gateway.WebhookEntry{CustomTransactionID: "DEP-1", Status: "failed", Amount: 500, CustomUserID: "u1"})
	require.NoError(t, svc.ProcessBatch(context.Background(), failed))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)

	// A late out-of-order success must not resurrect the transaction.
	late := signedBatch(gateway.WebhookEntry{CustomTransactionID: "DEP-1", Status: "success", Amount: 500, CustomUserID: "u1"})
	require.NoError(t, svc.ProcessBatch(context.Background(), late))

	got, err = store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)
	assert.Equal(t, int64(1000), balance(t, store, "u1"))
}

func TestUnknownStatusParksTransaction(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{CustomTransactionID: "DEP-1", Status: "on_hold", Amount: 500, CustomUserID: "u1"})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, got.Status)
	assert.Equal(t, int64(1000), balance(t, store, "u1"))
}

func TestMaterializesUnknownDeposit(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{
		OrderID: "ord-ext", CustomTransactionID: "GW-EXT-1", Status: "success",
		Amount: 750, Currency: "INR", CustomUserID: "u1", PaymentSystem: "upi",
	})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByInvoice(context.Background(), "GW-EXT-1")
	require.NoError(t, err)
	assert.Equal(t, models.TxnDeposit, got.Type)
	assert.Equal(t, models.TxnSuccess, got.Status)
	assert.Equal(t, int64(1750), balance(t, store, "u1"))
}

func TestSkipsEntryForUnknownUser(t *testing.T) {
	store := memory.New()
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{
		CustomTransactionID: "GW-EXT-1", Status: "success", Amount: 750, CustomUserID: "ghost",
	})
	// The batch is acknowledged; the bad entry is logged and skipped.
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	_, err := store.Transactions().GetByInvoice(context.Background(), "GW-EXT-1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestConcurrentDeliveryCreditsOnce(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{CustomTransactionID: "DEP-1", Status: "success", Amount: 500, CustomUserID: "u1"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.ProcessBatch(context.Background(), b)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1500), balance(t, store, "u1"))
}

func TestWithdrawalSuccessWithoutApprovalIsInvalid(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedWithdrawal(t, store, "u1", "WDL-1", 400, models.ModeManual, models.TxnPending)
	a, err := store.Approvals().Create(context.Background(), models.PaymentApproval{
		TransactionID: txn.ID, Type: models.ApprovalWithdrawal, Status: models.ApprovalPending,
	})
	require.NoError(t, err)
	svc := newWebhookService(store, models.ModeManual)

	b := signedBatch(gateway.WebhookEntry{CustomTransactionID: "WDL-1", Status: "success", Amount: 400, CustomUserID: "u1"})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)
	assert.Equal(t, int64(1000), balance(t, store, "u1"), "no reservation existed, nothing to debit or refund")

	resolved, err := store.Approvals().GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, resolved.Status)
}

func TestWithdrawalRecoveryDebitIsExactlyOnce(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	// Accepted by the gateway but the reservation was never recorded, e.g. a
	// crash between acceptance and commit.
	txn := seedWithdrawal(t, store, "u1", "WDL-1", 400, models.ModeAuto, models.TxnProcessing)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{CustomTransactionID: "WDL-1", Status: "success", Amount: 400, CustomUserID: "u1"})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, got.Status)
	assert.NotNil(t, got.DebitedAt)
	assert.Equal(t, int64(600), balance(t, store, "u1"))

	require.NoError(t, svc.ProcessBatch(context.Background(), b))
	assert.Equal(t, int64(600), balance(t, store, "u1"))
}

func TestWithdrawalFailureRefundsReservation(t *testing.T) {
	store := memory.New()
	// Balance is already post-reservation: 1000 reserved out of 1400.
	store.SeedUser("u1", 1000)
	txn := seedWithdrawal(t, store, "u1", "WDL-1", 400, models.ModeAuto, models.TxnProcessing)
	require.NoError(t, store.Transactions().MarkDebited(context.Background(), txn.ID))
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{CustomTransactionID: "WDL-1", Status: "failed", Amount: 400, CustomUserID: "u1"})
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)
	assert.Equal(t, int64(1400), balance(t, store, "u1"), "the reservation must come back on failure")

	// Redelivered failure must not refund twice.
	require.NoError(t, svc.ProcessBatch(context.Background(), b))
	assert.Equal(t, int64(1400), balance(t, store, "u1"))
}

func TestAmountMismatchEntrySkipped(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	b := signedBatch(gateway.WebhookEntry{
		CustomTransactionID: "DEP-1", Status: "success", Amount: 999, CustomUserID: "u1",
	})
	// The batch is acknowledged; the lying entry is logged and skipped.
	require.NoError(t, svc.ProcessBatch(context.Background(), b))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, got.Status)
	assert.Equal(t, int64(1000), balance(t, store, "u1"), "a mismatched amount must never be credited")
}

func TestRequeryDepositSuccessCreditsOnce(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	calls := 0
	gw := &stubGateway{queryDeposit: func(invoice string) (*gateway.OrderResult, error) {
		calls++
		require.Equal(t, "DEP-1", invoice)
		return &gateway.OrderResult{OrderID: "ord-1", Status: "paid"}, nil
	}}
	svc := newWebhookServiceWithGateway(store, gw, models.ModeAuto)

	got, err := svc.Requery(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, got.Status)
	require.NotNil(t, got.GatewayOrderID)
	assert.Equal(t, "ord-1", *got.GatewayOrderID)
	assert.Equal(t, int64(1500), balance(t, store, "u1"))

	// Terminal transactions short-circuit without polling or crediting again.
	got, err = svc.Requery(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, got.Status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1500), balance(t, store, "u1"))
}

func TestRequeryWithdrawalRecoveryDebit(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	// Accepted but the reservation was never recorded; the poll recovers it
	// through the same guard the webhook uses.
	txn := seedWithdrawal(t, store, "u1", "WDL-1", 400, models.ModeAuto, models.TxnProcessing)
	gw := &stubGateway{queryWithdrawal: func(invoice string) (*gateway.OrderResult, error) {
		require.Equal(t, "WDL-1", invoice)
		return &gateway.OrderResult{OrderID: "ord-1", Status: "success"}, nil
	}}
	svc := newWebhookServiceWithGateway(store, gw, models.ModeAuto)

	got, err := svc.Requery(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, got.Status)
	assert.NotNil(t, got.DebitedAt)
	assert.Equal(t, int64(600), balance(t, store, "u1"))

	_, err = svc.Requery(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600), balance(t, store, "u1"))
}

func TestRequeryTransientErrorLeavesRow(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	gw := &stubGateway{queryDeposit: func(string) (*gateway.OrderResult, error) {
		return nil, &gateway.GatewayError{Op: "query_deposit", Err: context.DeadlineExceeded}
	}}
	svc := newWebhookServiceWithGateway(store, gw, models.ModeAuto)

	got, err := svc.Requery(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnPending, got.Status, "an unreachable gateway leaves the row for a later webhook")
	assert.Equal(t, int64(1000), balance(t, store, "u1"))
}

func TestRequeryUnknownTransaction(t *testing.T) {
	store := memory.New()
	svc := newWebhookService(store, models.ModeAuto)

	_, err := svc.Requery(context.Background(), "nope")
	assert.ErrorIs(t, err, services.ErrTransactionNotFound)
}

func TestCallbackNeverConfirmsSuccess(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	svc := newWebhookService(store, models.ModeAuto)

	res, err := svc.ProcessCallback(context.Background(), "DEP-1", "success", "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, res.Transaction.Status, "the unsigned path must not confirm success")
	assert.Equal(t, int64(1000), balance(t, store, "u1"))

	got, err := store.Transactions().GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, got.Status)
}

func TestCallbackFailsDepositsOnly(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	dep := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	wdl := seedWithdrawal(t, store, "u1", "WDL-1", 400, models.ModeAuto, models.TxnProcessing)
	svc := newWebhookService(store, models.ModeAuto)

	res, err := svc.ProcessCallback(context.Background(), "DEP-1", "failed", "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, res.Transaction.Status)
	got, err := store.Transactions().GetByID(context.Background(), dep.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnFailed, got.Status)

	// A withdrawal failure would trigger a refund, which only the signed
	// webhook may do.
	res, err = svc.ProcessCallback(context.Background(), "WDL-1", "failed", "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, res.Transaction.Status)
	got, err = store.Transactions().GetByID(context.Background(), wdl.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TxnProcessing, got.Status)
}

func TestCallbackEchoesTerminalState(t *testing.T) {
	store := memory.New()
	store.SeedUser("u1", 1000)
	txn := seedDeposit(t, store, "u1", "DEP-1", 500, models.ModeAuto)
	require.NoError(t, store.Transactions().UpdateStatus(context.Background(), txn.ID, models.TxnSuccess))
	svc := newWebhookService(store, models.ModeAuto)

	res, err := svc.ProcessCallback(context.Background(), "DEP-1", "failed", "")
	require.NoError(t, err)
	assert.Equal(t, models.TxnSuccess, res.Transaction.Status)
	assert.Equal(t, "payment completed", res.Message)
}

func TestCallbackUnknownTransaction(t *testing.T) {
	store := memory.New()
	svc := newWebhookService(store, models.ModeAuto)

	_, err := svc.ProcessCallback(context.Background(), "DEP-NOPE", "success", "")
	assert.ErrorIs(t, err, services.ErrTransactionNotFound)
}
