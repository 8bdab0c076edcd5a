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

type WithdrawalService struct {
	store       repo.Store
	gw          gateway.Client
	modes       *ModeResolver
	minRetained int64
	wp          *worker.Pool
	notif       *notifier.Notifier
}

func NewWithdrawalService(store repo.Store, gw gateway.Client, modes *ModeResolver, minRetained int64, wp *worker.Pool, notif *notifier.Notifier) *WithdrawalService {
	return &WithdrawalService{store: store, gw: gw, modes: modes, minRetained: minRetained, wp: wp, notif: notif}
}

type WithdrawalInitiated struct {
	Transaction      models.Transaction
	RequiresApproval bool
}

// failWithdrawalLocked finalizes a withdrawal as FAILED inside the caller's
// DB transaction. If the reservation was already taken the amount is credited
// back in the same atomic unit; terminal stickiness guarantees this runs at
// most once per transaction.
func failWithdrawalLocked(ctx context.Context, st repo.Store, txn models.Transaction, reason string) error {
	if txn.Status.Terminal() {
		return nil
	}
	if txn.DebitedAt != nil {
		if _, err := st.Wallets().Adjust(ctx, txn.UserID, txn.Amount); err != nil {
			return err
		}
	}
	if err := st.Transactions().UpdateStatus(ctx, txn.ID, models.TxnFailed); err != nil {
		return err
	}
	audit(ctx, st.AuditLogs(), txn.ID, "status_change", "FAILED: "+reason)
	metrics.TransactionsTotal.WithLabelValues("withdrawal", "FAILED").Inc()
	return nil
}

// reserveWithdrawalLocked takes the reservation exactly once, guarded by
// debited_at under the caller's row lock.
func reserveWithdrawalLocked(ctx context.Context, st repo.Store, txn models.Transaction) error {
	if txn.DebitedAt != nil {
		return nil
	}
	if _, err := st.Wallets().Adjust(ctx, txn.UserID, -txn.Amount); err != nil {
		return err
	}
	return st.Transactions().MarkDebited(ctx, txn.ID)
}

// Initiate starts a withdrawal. The balance floor is checked under a wallet
// row lock; a violation has no side effect. In AUTO mode the wallet is
// debited at gateway acceptance (the single authoritative debit point); in
// MANUAL mode nothing moves until an admin approves.
func (s *WithdrawalService) Initiate(ctx context.Context, userID string, amount int64, paymentSystem, accountNumber string) (*WithdrawalInitiated, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if _, err := s.store.Wallets().GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	mode := s.modes.Resolve(ctx)
	if mode == models.ModeManual {
		return s.initiateManual(ctx, userID, amount, paymentSystem, accountNumber)
	}
	return s.initiateAuto(ctx, userID, amount, paymentSystem, accountNumber)
}

func (s *WithdrawalService) initiateManual(ctx context.Context, userID string, amount int64, paymentSystem, accountNumber string) (*WithdrawalInitiated, error) {
	var txn models.Transaction
	err := s.store.WithinTx(ctx, func(st repo.Store) error {
		w, err := st.Wallets().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if w.Balance-amount < s.minRetained {
			return ErrInsufficientBalance
		}
		txn, err = st.Transactions().Create(ctx, models.Transaction{
			UserID:        userID,
			Amount:        amount,
			Currency:      w.Currency,
			Type:          models.TxnWithdrawal,
			Status:        models.TxnPending,
			Mode:          models.ModeManual,
			InvoiceNo:     newInvoiceNo("WDL"),
			PaymentSystem: paymentSystem,
			AccountNumber: accountNumber,
		})
		if err != nil {
			return err
		}
		_, err = st.Approvals().Create(ctx, models.PaymentApproval{
			TransactionID: txn.ID,
			Type:          models.ApprovalWithdrawal,
			Status:        models.ApprovalPending,
			PaymentSystem: paymentSystem,
			AccountNumber: accountNumber,
		})
		if err != nil {
			return err
		}
		audit(ctx, st.AuditLogs(), txn.ID, "created", "manual withdrawal awaiting approval")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &WithdrawalInitiated{Transaction: txn, RequiresApproval: true}, nil
}

func (s *WithdrawalService) initiateAuto(ctx context.Context, userID string, amount int64, paymentSystem, accountNumber string) (*WithdrawalInitiated, error) {
	var txn models.Transaction
	err := s.store.WithinTx(ctx, func(st repo.Store) error {
		w, err := st.Wallets().GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if w.Balance-amount < s.minRetained {
			return ErrInsufficientBalance
		}
		txn, err = st.Transactions().Create(ctx, models.Transaction{
			UserID:        userID,
			Amount:        amount,
			Currency:      w.Currency,
			Type:          models.TxnWithdrawal,
			Status:        models.TxnInitiated,
			Mode:          models.ModeAuto,
			InvoiceNo:     newInvoiceNo("WDL"),
			PaymentSystem: paymentSystem,
			AccountNumber: accountNumber,
		})
		if err == nil {
			audit(ctx, st.AuditLogs(), txn.ID, "created", "auto withdrawal initiated")
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	// Gateway call happens outside any lock so a slow aggregator cannot hold
	// the wallet row.
	res, err := s.gw.CreateWithdrawal(ctx, gateway.WithdrawalRequest{
		InvoiceNo:     txn.InvoiceNo,
		UserID:        userID,
		Amount:        amount,
		Currency:      txn.Currency,
		PaymentSystem: paymentSystem,
		AccountNumber: accountNumber,
	})
	if err != nil {
		var rej *gateway.RejectedError
		if errors.As(err, &rej) {
			metrics.GatewayRequestsTotal.WithLabelValues("create_withdrawal", "rejected").Inc()
			ferr := s.store.WithinTx(ctx, func(st repo.Store) error {
				cur, gerr := st.Transactions().GetForUpdate(ctx, txn.ID)
				if gerr != nil {
					return gerr
				}
				return failWithdrawalLocked(ctx, st, cur, rej.Reason)
			})
			if ferr != nil {
				return nil, ferr
			}
			return nil, err
		}
		// Transient: no debit yet; the success webhook or a requery performs
		// the reservation through the debited_at guard. The webhook may have
		// already finalized the row, so park it under its lock only if it is
		// still live.
		metrics.GatewayRequestsTotal.WithLabelValues("create_withdrawal", "error").Inc()
		slog.Error("create withdrawal", "transaction_id", txn.ID, "err", err)
		uerr := s.store.WithinTx(ctx, func(st repo.Store) error {
			cur, gerr := st.Transactions().GetForUpdate(ctx, txn.ID)
			if gerr != nil {
				return gerr
			}
			if !cur.Status.Terminal() {
				if gerr := st.Transactions().UpdateStatus(ctx, cur.ID, models.TxnProcessing); gerr != nil {
					return gerr
				}
				cur.Status = models.TxnProcessing
			}
			txn = cur
			return nil
		})
		if uerr != nil {
			return nil, uerr
		}
		return &WithdrawalInitiated{Transaction: txn}, nil
	}
	metrics.GatewayRequestsTotal.WithLabelValues("create_withdrawal", "ok").Inc()

	txn, err = s.settleAccepted(ctx, txn.ID, res.OrderID, gateway.NormalizeStatus(res.Status))
	if err != nil {
		return nil, err
	}
	return &WithdrawalInitiated{Transaction: txn}, nil
}

// settleAccepted applies the gateway's synchronous answer to an AUTO
// withdrawal: acceptance debits the wallet now (reservation at acceptance),
// a definitive failure finalizes FAILED with no debit.
func (s *WithdrawalService) settleAccepted(ctx context.Context, txnID, orderID string, st gateway.Status) (models.Transaction, error) {
	var out models.Transaction
	err := s.store.WithinTx(ctx, func(sx repo.Store) error {
		txn, err := sx.Transactions().GetForUpdate(ctx, txnID)
		if err != nil {
			return err
		}
		if orderID != "" && txn.GatewayOrderID == nil {
			if err := sx.Transactions().SetGatewayOrderID(ctx, txn.ID, orderID); err != nil {
				return err
			}
			txn.GatewayOrderID = &orderID
		}
		if txn.Status.Terminal() {
			out = txn
			return nil
		}

		switch st {
		case gateway.StatusFailed:
			if err := failWithdrawalLocked(ctx, sx, txn, "gateway reported failure"); err != nil {
				return err
			}
			txn.Status = models.TxnFailed
		case gateway.StatusSuccess:
			if err := reserveWithdrawalLocked(ctx, sx, txn); err != nil {
				return err
			}
			if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnSuccess); err != nil {
				return err
			}
			audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "SUCCESS: immediate payout")
			metrics.TransactionsTotal.WithLabelValues("withdrawal", "SUCCESS").Inc()
			txn.Status = models.TxnSuccess
		default:
			// Accepted but still processing: reserve now, final confirmation
			// arrives via webhook.
			if err := reserveWithdrawalLocked(ctx, sx, txn); err != nil {
				return err
			}
			if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnProcessing); err != nil {
				return err
			}
			txn.Status = models.TxnProcessing
		}
		out = txn
		return nil
	})
	if err != nil {
		return models.Transaction{}, err
	}
	if out.Status == models.TxnSuccess {
		s.notifyAsync(s.notif.WithdrawalPaid, out)
	}
	return out, nil
}

func (s *WithdrawalService) notifyAsync(fn func(models.Transaction), t models.Transaction) {
	if s.wp == nil || s.notif == nil {
		return
	}
	s.wp.Submit(func() { fn(t) })
}
