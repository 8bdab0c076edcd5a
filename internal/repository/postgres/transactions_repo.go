package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
)

type transactionsRepo struct{ q querier }

const txnColumns = `id, user_id, amount, currency, type, status, mode,
       gateway_order_id, invoice_no, payment_system, account_number,
       debited_at, created_at, updated_at`

func scanTxn(row interface{ Scan(...any) error }) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Amount, &t.Currency, &t.Type, &t.Status,
		&t.Mode, &t.GatewayOrderID, &t.InvoiceNo, &t.PaymentSystem,
		&t.AccountNumber, &t.DebitedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, mapErr(err)
}

func (r *transactionsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return scanTxn(r.q.QueryRow(ctx, `
INSERT INTO transactions (id, user_id, amount, currency, type, status, mode,
                          gateway_order_id, invoice_no, payment_system, account_number)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (invoice_no) DO UPDATE SET invoice_no = EXCLUDED.invoice_no
RETURNING `+txnColumns,
		t.ID, t.UserID, t.Amount, t.Currency, t.Type, t.Status, t.Mode,
		t.GatewayOrderID, t.InvoiceNo, t.PaymentSystem, t.AccountNumber))
}

func (r *transactionsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1`, id))
}

func (r *transactionsRepo) GetByInvoice(ctx context.Context, invoiceNo string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE invoice_no=$1`, invoiceNo))
}

func (r *transactionsRepo) FindForUpdate(ctx context.Context, orderID, invoiceNo string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx, `
SELECT `+txnColumns+`
  FROM transactions
 WHERE ($1 <> '' AND gateway_order_id = $1) OR ($2 <> '' AND invoice_no = $2)
 ORDER BY created_at
 LIMIT 1
   FOR UPDATE`, orderID, invoiceNo))
}

func (r *transactionsRepo) GetForUpdate(ctx context.Context, id string) (models.Transaction, error) {
	return scanTxn(r.q.QueryRow(ctx, `SELECT `+txnColumns+` FROM transactions WHERE id=$1 FOR UPDATE`, id))
}

func (r *transactionsRepo) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	_, err := r.q.Exec(ctx, `
UPDATE transactions SET status=$2, updated_at=now()
 WHERE id=$1 AND status NOT IN ('SUCCESS','FAILED')`, id, status)
	return err
}

func (r *transactionsRepo) SetGatewayOrderID(ctx context.Context, id, orderID string) error {
	_, err := r.q.Exec(ctx, `UPDATE transactions SET gateway_order_id=$2, updated_at=now() WHERE id=$1`, id, orderID)
	return err
}

func (r *transactionsRepo) MarkDebited(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `UPDATE transactions SET debited_at=now(), updated_at=now() WHERE id=$1 AND debited_at IS NULL`, id)
	return err
}

func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	rows, err := r.q.Query(ctx, `
SELECT `+txnColumns+`
  FROM transactions
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
