package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/metrics"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/notifier"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/worker"
)

// WebhookService is the authoritative state-transition engine. The signed
// webhook is the only path allowed to move transactions to SUCCESS and, in
// AUTO mode, to touch wallets directly. Requery feeds a polled gateway status
// through the same locked transitions.
type WebhookService struct {
	store     repo.Store
	gw        gateway.Client
	modes     *ModeResolver
	accessKey string
	secret    string
	wp        *worker.Pool
	notif     *notifier.Notifier
}

func NewWebhookService(store repo.Store, gw gateway.Client, modes *ModeResolver, accessKey, secret string, wp *worker.Pool, notif *notifier.Notifier) *WebhookService {
	return &WebhookService{store: store, gw: gw, modes: modes, accessKey: accessKey, secret: secret, wp: wp, notif: notif}
}

// ProcessBatch verifies the batch signature, then processes each entry in its
// own DB transaction under a row lock on the matched Transaction. A bad
// signature rejects the whole batch before any entry is read; a bad entry is
// logged and skipped so the aggregator is not provoked into redelivery
// storms.
func (s *WebhookService) ProcessBatch(ctx context.Context, b gateway.WebhookBatch) error {
	canonical, err := b.Canonical()
	if err != nil {
		metrics.WebhookBatchesTotal.WithLabelValues("invalid_payload").Inc()
		return ErrSignatureInvalid
	}
	if !gateway.VerifySignature(s.accessKey, s.secret, b.Signature, canonical) {
		metrics.WebhookBatchesTotal.WithLabelValues("invalid_signature").Inc()
		return ErrSignatureInvalid
	}

	// Mode is re-read fresh for every batch; operators flip it at runtime.
	mode := s.modes.Resolve(ctx)

	for _, e := range b.Transactions {
		if err := s.processEntry(ctx, mode, e); err != nil {
			metrics.WebhookEntriesTotal.WithLabelValues("error").Inc()
			slog.Error("webhook entry", "order_id", e.OrderID,
				"invoice", e.CustomTransactionID, "err", err)
			continue
		}
		metrics.WebhookEntriesTotal.WithLabelValues("applied").Inc()
	}
	metrics.WebhookBatchesTotal.WithLabelValues("ok").Inc()
	return nil
}

func (s *WebhookService) processEntry(ctx context.Context, mode models.PaymentMode, e gateway.WebhookEntry) error {
	st := gateway.NormalizeStatus(e.Status)

	var notify func()
	err := s.store.WithinTx(ctx, func(sx repo.Store) error {
		txn, err := sx.Transactions().FindForUpdate(ctx, e.OrderID, e.CustomTransactionID)
		if errors.Is(err, repo.ErrNotFound) {
			// Out-of-order or externally-initiated notification: materialize
			// the transaction from the payload instead of dropping money on
			// the floor.
			txn, err = s.materialize(ctx, sx, mode, e)
		}
		if err != nil {
			return err
		}

		// The signed amount must agree with the ledger before money moves; a
		// mismatched entry is skipped, never silently trusted either way.
		if !txn.Status.Terminal() && st == gateway.StatusSuccess && e.Amount != 0 && e.Amount != txn.Amount {
			return fmt.Errorf("amount mismatch: entry reports %d, transaction holds %d", e.Amount, txn.Amount)
		}

		notify, err = s.applyLocked(ctx, sx, mode, txn, st, e.OrderID)
		return err
	})
	if err == nil && notify != nil && s.wp != nil {
		s.wp.Submit(notify)
	}
	return err
}

// applyLocked advances one transaction; the caller holds its row lock via sx.
// Central idempotency invariant: terminal states are sticky, repeated delivery
// acknowledges without mutating anything.
func (s *WebhookService) applyLocked(ctx context.Context, sx repo.Store, mode models.PaymentMode, txn models.Transaction, st gateway.Status, orderID string) (func(), error) {
	if txn.Status.Terminal() {
		return nil, nil
	}

	if orderID != "" && txn.GatewayOrderID == nil {
		if err := sx.Transactions().SetGatewayOrderID(ctx, txn.ID, orderID); err != nil {
			return nil, err
		}
		txn.GatewayOrderID = &orderID
	}

	switch txn.Type {
	case models.TxnWithdrawal:
		return s.applyWithdrawal(ctx, sx, txn, st)
	default:
		return s.applyDeposit(ctx, sx, mode, txn, st)
	}
}

// Requery polls the gateway for a transaction still in flight and applies the
// answer through the same locked transition engine the webhook uses, so the
// withdrawal reservation guard and terminal stickiness hold on this path too.
// A transient gateway failure leaves the row untouched for a later webhook.
func (s *WebhookService) Requery(ctx context.Context, txnID string) (models.Transaction, error) {
	txn, err := s.store.Transactions().GetByID(ctx, txnID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}
	if txn.Status.Terminal() {
		return txn, nil
	}

	var res *gateway.OrderResult
	if txn.Type == models.TxnWithdrawal {
		res, err = s.gw.QueryWithdrawalStatus(ctx, txn.InvoiceNo)
	} else {
		res, err = s.gw.QueryDepositStatus(ctx, txn.InvoiceNo)
	}
	op := "query_" + string(txn.Type)
	if err != nil {
		metrics.GatewayRequestsTotal.WithLabelValues(op, "error").Inc()
		slog.Error("requery", "transaction_id", txn.ID, "err", err)
		return txn, nil
	}
	metrics.GatewayRequestsTotal.WithLabelValues(op, "ok").Inc()

	st := gateway.NormalizeStatus(res.Status)
	mode := s.modes.Resolve(ctx)

	var notify func()
	err = s.store.WithinTx(ctx, func(sx repo.Store) error {
		cur, err := sx.Transactions().GetForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		notify, err = s.applyLocked(ctx, sx, mode, cur, st, res.OrderID)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	if notify != nil && s.wp != nil {
		s.wp.Submit(notify)
	}
	return s.store.Transactions().GetByID(ctx, txn.ID)
}

func (s *WebhookService) materialize(ctx context.Context, sx repo.Store, mode models.PaymentMode, e gateway.WebhookEntry) (models.Transaction, error) {
	if e.CustomUserID == "" || e.Amount <= 0 {
		return models.Transaction{}, errors.New("cannot materialize transaction: missing user or amount")
	}
	if _, err := sx.Users().GetByID(ctx, e.CustomUserID); err != nil {
		return models.Transaction{}, errors.New("cannot materialize transaction: unknown user")
	}
	if _, err := sx.Wallets().GetOrCreate(ctx, e.CustomUserID); err != nil {
		return models.Transaction{}, err
	}
	invoice := e.CustomTransactionID
	if invoice == "" {
		invoice = newInvoiceNo("GW")
	}
	orderID := e.OrderID
	txn := models.Transaction{
		UserID:        e.CustomUserID,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Type:          models.TxnDeposit,
		Status:        models.TxnPending,
		Mode:          mode,
		InvoiceNo:     invoice,
		PaymentSystem: e.PaymentSystem,
		AccountNumber: e.AccountNumber,
	}
	if orderID != "" {
		txn.GatewayOrderID = &orderID
	}
	txn, err := sx.Transactions().Create(ctx, txn)
	if err != nil {
		return models.Transaction{}, err
	}
	audit(ctx, sx.AuditLogs(), txn.ID, "created", "materialized from webhook")
	return txn, nil
}

func (s *WebhookService) applyDeposit(ctx context.Context, sx repo.Store, mode models.PaymentMode, txn models.Transaction, st gateway.Status) (func(), error) {
	switch st {
	case gateway.StatusSuccess:
		if mode == models.ModeManual {
			// Wallet untouched; park the money behind an admin decision.
			_, err := sx.Approvals().Create(ctx, models.PaymentApproval{
				TransactionID: txn.ID,
				Type:          models.ApprovalDeposit,
				Status:        models.ApprovalPending,
				PaymentSystem: txn.PaymentSystem,
				AccountNumber: txn.AccountNumber,
			})
			if err != nil {
				return nil, err
			}
			if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnProcessing); err != nil {
				return nil, err
			}
			audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "PROCESSING: awaiting deposit approval")
			return nil, nil
		}
		if _, err := sx.Wallets().Adjust(ctx, txn.UserID, txn.Amount); err != nil {
			return nil, err
		}
		if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnSuccess); err != nil {
			return nil, err
		}
		audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "SUCCESS: wallet credited")
		metrics.TransactionsTotal.WithLabelValues("deposit", "SUCCESS").Inc()
		txn.Status = models.TxnSuccess
		return func() { s.notif.DepositCredited(txn) }, nil

	case gateway.StatusFailed:
		if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnFailed); err != nil {
			return nil, err
		}
		if a, err := sx.Approvals().GetPendingByTransaction(ctx, txn.ID); err == nil {
			if err := sx.Approvals().Resolve(ctx, a.ID, models.ApprovalRejected, "", "gateway reported failure"); err != nil {
				return nil, err
			}
		}
		audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "FAILED: gateway reported failure")
		metrics.TransactionsTotal.WithLabelValues("deposit", "FAILED").Inc()
		txn.Status = models.TxnFailed
		return func() { s.notif.DepositFailed(txn) }, nil

	default:
		// Pending or unrecognized: park, never regress a terminal state (the
		// terminal guard already returned above).
		return nil, sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnProcessing)
	}
}

func (s *WebhookService) applyWithdrawal(ctx context.Context, sx repo.Store, txn models.Transaction, st gateway.Status) (func(), error) {
	switch st {
	case gateway.StatusSuccess:
		if txn.Mode == models.ModeManual {
			a, err := sx.Approvals().GetLatestByTransaction(ctx, txn.ID)
			if err != nil || a.Status != models.ApprovalApproved {
				// MANUAL withdrawals never reserve funds before approval, so
				// a success report without an approved decision is invalid.
				if err == nil && a.Status == models.ApprovalPending {
					if rerr := sx.Approvals().Resolve(ctx, a.ID, models.ApprovalRejected, "", "success webhook before approval"); rerr != nil {
						return nil, rerr
					}
				}
				if ferr := failWithdrawalLocked(ctx, sx, txn, "withdrawal success without approved decision"); ferr != nil {
					return nil, ferr
				}
				return nil, nil
			}
		}
		// The reservation normally happened at acceptance; the guard makes
		// the recovery debit (acceptance never recorded) exactly-once.
		if err := reserveWithdrawalLocked(ctx, sx, txn); err != nil {
			return nil, err
		}
		if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnSuccess); err != nil {
			return nil, err
		}
		audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "SUCCESS: payout confirmed")
		metrics.TransactionsTotal.WithLabelValues("withdrawal", "SUCCESS").Inc()
		txn.Status = models.TxnSuccess
		return func() { s.notif.WithdrawalPaid(txn) }, nil

	case gateway.StatusFailed:
		if a, err := sx.Approvals().GetPendingByTransaction(ctx, txn.ID); err == nil {
			if err := sx.Approvals().Resolve(ctx, a.ID, models.ApprovalRejected, "", "gateway reported failure"); err != nil {
				return nil, err
			}
		}
		if err := failWithdrawalLocked(ctx, sx, txn, "gateway reported failure"); err != nil {
			return nil, err
		}
		txn.Status = models.TxnFailed
		return func() { s.notif.WithdrawalFailed(txn) }, nil

	default:
		return nil, sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnProcessing)
	}
}

// CallbackResult is what the browser redirect gets back; advisory only.
type CallbackResult struct {
	Transaction models.Transaction
	Message     string
}

// ProcessCallback handles the unsigned browser redirect. It never moves a
// transaction to SUCCESS and never touches a wallet: a terminal transaction
// is echoed verbatim, otherwise the redirect keyword maps to a provisional
// PROCESSING or, for deposits, FAILED.
func (s *WebhookService) ProcessCallback(ctx context.Context, invoiceNo, rawStatus, orderID string) (*CallbackResult, error) {
	var out models.Transaction
	err := s.store.WithinTx(ctx, func(sx repo.Store) error {
		txn, err := sx.Transactions().FindForUpdate(ctx, orderID, invoiceNo)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		if txn.Status.Terminal() {
			out = txn
			return nil
		}

		st := gateway.NormalizeStatus(rawStatus)
		// The unsigned path may fail a deposit (no money involved) but never
		// a withdrawal: failing a reserved withdrawal triggers a refund, and
		// refunds belong to the signed path only.
		if st == gateway.StatusFailed && txn.Type == models.TxnDeposit {
			if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnFailed); err != nil {
				return err
			}
			audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "FAILED: callback reported failure")
			txn.Status = models.TxnFailed
		} else {
			if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnProcessing); err != nil {
				return err
			}
			txn.Status = models.TxnProcessing
		}
		out = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	msg := "payment is being processed"
	switch out.Status {
	case models.TxnSuccess:
		msg = "payment completed"
	case models.TxnFailed:
		msg = "payment failed"
	}
	return &CallbackResult{Transaction: out, Message: msg}, nil
}
