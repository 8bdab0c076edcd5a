package postgres

import (
	"context"

	"github.com/google/uuid"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
)

type walletsRepo struct{ q querier }

const walletColumns = `id, user_id, balance, currency, last_updated_at`

func scanWallet(row interface{ Scan(...any) error }) (models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.LastUpdatedAt)
	return w, mapErr(err)
}

func (r *walletsRepo) GetOrCreate(ctx context.Context, userID string) (models.Wallet, error) {
	if w, err := r.Get(ctx, userID); err == nil {
		return w, nil
	}
	_, err := r.q.Exec(ctx, `
INSERT INTO wallets(id, user_id, balance, currency)
VALUES ($1, $2, 0, 'INR')
ON CONFLICT (user_id) DO NOTHING`, uuid.NewString(), userID)
	if err != nil {
		return models.Wallet{}, err
	}
	return r.Get(ctx, userID)
}

func (r *walletsRepo) Get(ctx context.Context, userID string) (models.Wallet, error) {
	return scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id=$1`, userID))
}

func (r *walletsRepo) GetForUpdate(ctx context.Context, userID string) (models.Wallet, error) {
	return scanWallet(r.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id=$1 FOR UPDATE`, userID))
}

// Adjust moves the wallet balance and the users.wallet_balance mirror
// together. The CHECK constraint on wallets.balance rejects a negative result.
func (r *walletsRepo) Adjust(ctx context.Context, userID string, delta int64) (models.Wallet, error) {
	w, err := scanWallet(r.q.QueryRow(ctx, `
UPDATE wallets
   SET balance = balance + $2,
       last_updated_at = now()
 WHERE user_id = $1
 RETURNING `+walletColumns, userID, delta))
	if err != nil {
		return models.Wallet{}, err
	}
	_, err = r.q.Exec(ctx,
		`UPDATE users SET wallet_balance = $2, updated_at = now() WHERE id = $1`,
		userID, w.Balance)
	return w, err
}
