package models

import "time"

// Wallet holds one user's spendable balance in minor units. The balance is
// mutated only inside the same DB transaction as the Transaction or Approval
// state change that justifies it, together with the users.wallet_balance
// mirror.
type Wallet struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Balance       int64     `json:"balance"`
	Currency      string    `json:"currency"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}
