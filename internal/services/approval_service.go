package services

import (
	"context"
	"errors"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/metrics"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/notifier"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/worker"
)

// ApprovalService resolves the manual admin queue that gates wallet mutation
// in MANUAL mode.
type ApprovalService struct {
	store       repo.Store
	gw          gateway.Client
	minRetained int64
	wp          *worker.Pool
	notif       *notifier.Notifier
}

func NewApprovalService(store repo.Store, gw gateway.Client, minRetained int64, wp *worker.Pool, notif *notifier.Notifier) *ApprovalService {
	return &ApprovalService{store: store, gw: gw, minRetained: minRetained, wp: wp, notif: notif}
}

func (s *ApprovalService) ListPending(ctx context.Context, limit, offset int) ([]models.PaymentApproval, error) {
	return s.store.Approvals().ListByStatus(ctx, models.ApprovalPending, limit, offset)
}

func (s *ApprovalService) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.PaymentApproval, error) {
	return s.store.Approvals().ListByStatus(ctx, status, limit, offset)
}

// Approve executes an admin's positive decision. Deposits credit the wallet
// in one atomic unit with the SUCCESS transition. Withdrawals re-validate the
// balance floor, claim the transaction, call the gateway outside the lock and
// apply the result; a failed external call rejects the approval rather than
// leaving it ambiguous.
func (s *ApprovalService) Approve(ctx context.Context, approvalID, adminID, notes string) (models.PaymentApproval, error) {
	a, err := s.store.Approvals().GetByID(ctx, approvalID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return models.PaymentApproval{}, ErrApprovalNotPending
		}
		return models.PaymentApproval{}, err
	}
	if a.Type == models.ApprovalWithdrawal {
		return s.approveWithdrawal(ctx, a.ID, adminID, notes)
	}
	return s.approveDeposit(ctx, a.ID, adminID, notes)
}

func (s *ApprovalService) approveDeposit(ctx context.Context, approvalID, adminID, notes string) (models.PaymentApproval, error) {
	var out models.PaymentApproval
	var txn models.Transaction
	err := s.store.WithinTx(ctx, func(sx repo.Store) error {
		a, err := sx.Approvals().GetForUpdate(ctx, approvalID)
		if err != nil {
			return err
		}
		if a.Status != models.ApprovalPending {
			return ErrApprovalNotPending
		}
		txn, err = sx.Transactions().GetForUpdate(ctx, a.TransactionID)
		if err != nil {
			return err
		}
		if txn.Status != models.TxnProcessing {
			return ErrApprovalNotPending
		}

		if _, err := sx.Wallets().Adjust(ctx, txn.UserID, txn.Amount); err != nil {
			return err
		}
		if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnSuccess); err != nil {
			return err
		}
		if err := sx.Approvals().Resolve(ctx, a.ID, models.ApprovalApproved, adminID, notes); err != nil {
			return err
		}
		audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "SUCCESS: deposit approved by admin")
		metrics.TransactionsTotal.WithLabelValues("deposit", "SUCCESS").Inc()
		out, err = sx.Approvals().GetByID(ctx, a.ID)
		return err
	})
	if err != nil {
		return models.PaymentApproval{}, err
	}
	if s.wp != nil {
		txn.Status = models.TxnSuccess
		s.wp.Submit(func() { s.notif.DepositCredited(txn) })
	}
	return out, nil
}

func (s *ApprovalService) approveWithdrawal(ctx context.Context, approvalID, adminID, notes string) (models.PaymentApproval, error) {
	var txn models.Transaction
	var floorViolated bool

	// Claim phase: validate and flip the transaction PENDING -> PROCESSING
	// under the row lock so a concurrent approve of the same transaction
	// cannot call the gateway twice.
	err := s.store.WithinTx(ctx, func(sx repo.Store) error {
		a, err := sx.Approvals().GetForUpdate(ctx, approvalID)
		if err != nil {
			return err
		}
		if a.Status != models.ApprovalPending {
			return ErrApprovalNotPending
		}
		txn, err = sx.Transactions().GetForUpdate(ctx, a.TransactionID)
		if err != nil {
			return err
		}
		if txn.Status != models.TxnPending {
			return ErrApprovalNotPending
		}
		w, err := sx.Wallets().GetForUpdate(ctx, txn.UserID)
		if err != nil {
			return err
		}
		if w.Balance-txn.Amount < s.minRetained {
			// Returning an error here would roll the rejection back, so the
			// writes commit and the violation is reported after.
			if err := sx.Approvals().Resolve(ctx, a.ID, models.ApprovalRejected, adminID, "insufficient balance at approval time"); err != nil {
				return err
			}
			if err := failWithdrawalLocked(ctx, sx, txn, "insufficient balance at approval time"); err != nil {
				return err
			}
			floorViolated = true
			return nil
		}
		return sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnProcessing)
	})
	if err != nil {
		return models.PaymentApproval{}, err
	}
	if floorViolated {
		return models.PaymentApproval{}, ErrInsufficientBalance
	}

	// Gateway call outside the lock; a slow aggregator must not pin the row.
	res, gwErr := s.gw.CreateWithdrawal(ctx, gateway.WithdrawalRequest{
		InvoiceNo:     txn.InvoiceNo,
		UserID:        txn.UserID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		PaymentSystem: txn.PaymentSystem,
		AccountNumber: txn.AccountNumber,
	})

	var out models.PaymentApproval
	err = s.store.WithinTx(ctx, func(sx repo.Store) error {
		cur, err := sx.Transactions().GetForUpdate(ctx, txn.ID)
		if err != nil {
			return err
		}
		if gwErr != nil {
			// Definitive rejection or transient failure after the decision
			// point: either way the approval is rejected, never left
			// ambiguous. No debit was taken.
			reason := "gateway unreachable"
			var rej *gateway.RejectedError
			if errors.As(gwErr, &rej) {
				reason = rej.Reason
				metrics.GatewayRequestsTotal.WithLabelValues("create_withdrawal", "rejected").Inc()
			} else {
				metrics.GatewayRequestsTotal.WithLabelValues("create_withdrawal", "error").Inc()
			}
			if err := sx.Approvals().Resolve(ctx, approvalID, models.ApprovalRejected, adminID, reason); err != nil {
				return err
			}
			if err := failWithdrawalLocked(ctx, sx, cur, reason); err != nil {
				return err
			}
			out, err = sx.Approvals().GetByID(ctx, approvalID)
			return err
		}
		metrics.GatewayRequestsTotal.WithLabelValues("create_withdrawal", "ok").Inc()

		if res.OrderID != "" && cur.GatewayOrderID == nil {
			if err := sx.Transactions().SetGatewayOrderID(ctx, cur.ID, res.OrderID); err != nil {
				return err
			}
		}

		// Acceptance: reserve now; final confirmation still arrives via the
		// withdrawal success webhook.
		if err := reserveWithdrawalLocked(ctx, sx, cur); err != nil {
			return err
		}
		if err := sx.Approvals().Resolve(ctx, approvalID, models.ApprovalApproved, adminID, notes); err != nil {
			return err
		}
		status := models.TxnProcessing
		if gateway.NormalizeStatus(res.Status) == gateway.StatusSuccess {
			status = models.TxnSuccess
			metrics.TransactionsTotal.WithLabelValues("withdrawal", "SUCCESS").Inc()
		}
		if err := sx.Transactions().UpdateStatus(ctx, cur.ID, status); err != nil {
			return err
		}
		audit(ctx, sx.AuditLogs(), cur.ID, "status_change", string(status)+": withdrawal approved by admin")
		txn.Status = status
		out, err = sx.Approvals().GetByID(ctx, approvalID)
		return err
	})
	if err != nil {
		return models.PaymentApproval{}, err
	}
	if gwErr != nil {
		return out, gwErr
	}
	if txn.Status == models.TxnSuccess && s.wp != nil {
		t := txn
		s.wp.Submit(func() { s.notif.WithdrawalPaid(t) })
	}
	return out, nil
}

// Reject resolves an approval negatively: approval REJECTED, transaction
// FAILED, wallet untouched. Rejection is only reachable before any
// reservation, so there is never anything to refund.
func (s *ApprovalService) Reject(ctx context.Context, approvalID, adminID, notes string) (models.PaymentApproval, error) {
	var out models.PaymentApproval
	err := s.store.WithinTx(ctx, func(sx repo.Store) error {
		a, err := sx.Approvals().GetForUpdate(ctx, approvalID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrApprovalNotPending
			}
			return err
		}
		if a.Status != models.ApprovalPending {
			return ErrApprovalNotPending
		}
		txn, err := sx.Transactions().GetForUpdate(ctx, a.TransactionID)
		if err != nil {
			return err
		}
		if err := sx.Approvals().Resolve(ctx, a.ID, models.ApprovalRejected, adminID, notes); err != nil {
			return err
		}
		if !txn.Status.Terminal() {
			if err := sx.Transactions().UpdateStatus(ctx, txn.ID, models.TxnFailed); err != nil {
				return err
			}
			audit(ctx, sx.AuditLogs(), txn.ID, "status_change", "FAILED: rejected by admin")
			metrics.TransactionsTotal.WithLabelValues(string(txn.Type), "FAILED").Inc()
		}
		out, err = sx.Approvals().GetByID(ctx, a.ID)
		return err
	})
	if err != nil {
		return models.PaymentApproval{}, err
	}
	return out, nil
}
