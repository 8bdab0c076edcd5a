package repository

import (
	"context"
	"errors"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
)

// ErrNotFound is returned by lookups when no row matches; postgres repos map
// pgx.ErrNoRows onto it so services never import pgx.
var ErrNotFound = errors.New("not found")

type Users interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

type Wallets interface {
	GetOrCreate(ctx context.Context, userID string) (models.Wallet, error)
	Get(ctx context.Context, userID string) (models.Wallet, error)
	// GetForUpdate row-locks the wallet; only meaningful inside WithinTx.
	GetForUpdate(ctx context.Context, userID string) (models.Wallet, error)
	// Adjust applies delta to wallets.balance and the users.wallet_balance
	// mirror in the same statement batch. Callers must run it inside WithinTx
	// alongside the transaction/approval state change it belongs to.
	Adjust(ctx context.Context, userID string, delta int64) (models.Wallet, error)
}

type Transactions interface {
	Create(ctx context.Context, t models.Transaction) (models.Transaction, error)
	GetByID(ctx context.Context, id string) (models.Transaction, error)
	GetByInvoice(ctx context.Context, invoiceNo string) (models.Transaction, error)
	// FindForUpdate matches by gateway order id or invoice number and locks
	// the row, making "check terminal, then mutate" atomic with the mutation.
	FindForUpdate(ctx context.Context, orderID, invoiceNo string) (models.Transaction, error)
	GetForUpdate(ctx context.Context, id string) (models.Transaction, error)
	// UpdateStatus is a no-op on rows already in SUCCESS or FAILED; callers
	// still check Terminal() under the row lock before deciding to mutate.
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
	SetGatewayOrderID(ctx context.Context, id, orderID string) error
	MarkDebited(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error)
}

type Approvals interface {
	Create(ctx context.Context, a models.PaymentApproval) (models.PaymentApproval, error)
	GetByID(ctx context.Context, id string) (models.PaymentApproval, error)
	GetForUpdate(ctx context.Context, id string) (models.PaymentApproval, error)
	// GetPendingByTransaction returns the single active approval, if any.
	GetPendingByTransaction(ctx context.Context, transactionID string) (models.PaymentApproval, error)
	// GetLatestByTransaction returns the most recent approval regardless of
	// status.
	GetLatestByTransaction(ctx context.Context, transactionID string) (models.PaymentApproval, error)
	Resolve(ctx context.Context, id string, status models.ApprovalStatus, adminID, notes string) error
	ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.PaymentApproval, error)
}

type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type AuditLogs interface {
	Create(ctx context.Context, l models.AuditLog) error
}

// Store bundles the repositories over one database handle. WithinTx runs fn
// against a Store bound to a single DB transaction; row locks taken inside fn
// are held until it returns, and all writes commit or roll back together.
type Store interface {
	Users() Users
	Wallets() Wallets
	Transactions() Transactions
	Approvals() Approvals
	Settings() Settings
	AuditLogs() AuditLogs
	WithinTx(ctx context.Context, fn func(Store) error) error
}
