package models

import "time"

type TransactionType string

const (
	TxnDeposit    TransactionType = "deposit"
	TxnWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	TxnInitiated  TransactionStatus = "INITIATED"
	TxnPending    TransactionStatus = "PENDING"
	TxnProcessing TransactionStatus = "PROCESSING"
	TxnSuccess    TransactionStatus = "SUCCESS"
	TxnFailed     TransactionStatus = "FAILED"
)

// Terminal statuses are sticky: once SUCCESS or FAILED, neither status nor
// amount may change again.
func (s TransactionStatus) Terminal() bool {
	return s == TxnSuccess || s == TxnFailed
}

type PaymentMode string

const (
	ModeAuto   PaymentMode = "AUTO"
	ModeManual PaymentMode = "MANUAL"
)

// Transaction is one money-movement attempt against the gateway. Amounts are
// int64 minor units (paise). InvoiceNo is the caller-generated idempotency key
// known before the gateway assigns its own order id.
type Transaction struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Mode           PaymentMode       `json:"mode"`
	GatewayOrderID *string           `json:"gateway_order_id,omitempty"`
	InvoiceNo      string            `json:"invoice_no"`
	PaymentSystem  string            `json:"payment_system"`
	AccountNumber  string            `json:"account_number,omitempty"`
	// DebitedAt marks the withdrawal reservation; set in the same DB
	// transaction as the balance decrement so the debit happens exactly once.
	DebitedAt *time.Time `json:"debited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
