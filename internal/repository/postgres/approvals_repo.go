package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
)

type approvalsRepo struct{ q querier }

const approvalColumns = `id, transaction_id, type, status, payment_system,
       account_number, notes, processed_by, processed_at, created_at`

func scanApproval(row interface{ Scan(...any) error }) (models.PaymentApproval, error) {
	var a models.PaymentApproval
	err := row.Scan(&a.ID, &a.TransactionID, &a.Type, &a.Status, &a.PaymentSystem,
		&a.AccountNumber, &a.Notes, &a.ProcessedBy, &a.ProcessedAt, &a.CreatedAt)
	return a, mapErr(err)
}

func (r *approvalsRepo) Create(ctx context.Context, a models.PaymentApproval) (models.PaymentApproval, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.ApprovalPending
	}
	// The partial unique index on (transaction_id) WHERE status='PENDING'
	// enforces at most one active approval; a duplicate insert returns the
	// existing pending row instead.
	return scanApproval(r.q.QueryRow(ctx, `
INSERT INTO payment_approvals (id, transaction_id, type, status, payment_system, account_number, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (transaction_id) WHERE status='PENDING'
DO UPDATE SET payment_system = EXCLUDED.payment_system,
              account_number = EXCLUDED.account_number
RETURNING `+approvalColumns,
		a.ID, a.TransactionID, a.Type, a.Status, a.PaymentSystem, a.AccountNumber, a.Notes))
}

func (r *approvalsRepo) GetByID(ctx context.Context, id string) (models.PaymentApproval, error) {
	return scanApproval(r.q.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM payment_approvals WHERE id=$1`, id))
}

func (r *approvalsRepo) GetForUpdate(ctx context.Context, id string) (models.PaymentApproval, error) {
	return scanApproval(r.q.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM payment_approvals WHERE id=$1 FOR UPDATE`, id))
}

func (r *approvalsRepo) GetPendingByTransaction(ctx context.Context, transactionID string) (models.PaymentApproval, error) {
	return scanApproval(r.q.QueryRow(ctx, `
SELECT `+approvalColumns+`
  FROM payment_approvals
 WHERE transaction_id=$1 AND status='PENDING'`, transactionID))
}

func (r *approvalsRepo) GetLatestByTransaction(ctx context.Context, transactionID string) (models.PaymentApproval, error) {
	return scanApproval(r.q.QueryRow(ctx, `
SELECT `+approvalColumns+`
  FROM payment_approvals
 WHERE transaction_id=$1
 ORDER BY created_at DESC
 LIMIT 1`, transactionID))
}

func (r *approvalsRepo) Resolve(ctx context.Context, id string, status models.ApprovalStatus, adminID, notes string) error {
	_, err := r.q.Exec(ctx, `
UPDATE payment_approvals
   SET status=$2, processed_by=$3, notes=$4, processed_at=now()
 WHERE id=$1 AND status='PENDING'`, id, status, adminID, notes)
	return err
}

func (r *approvalsRepo) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.PaymentApproval, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+approvalColumns+`
  FROM payment_approvals
 WHERE status=$1
 ORDER BY created_at
 LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PaymentApproval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
