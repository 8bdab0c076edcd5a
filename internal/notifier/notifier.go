// Package notifier records user-facing payment events. Template rendering and
// delivery live elsewhere in the platform; this writes the audit trail entry
// the delivery pipeline consumes.
package notifier

import (
	"context"
	"log/slog"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
)

type Notifier struct {
	logs repo.AuditLogs
}

func New(logs repo.AuditLogs) *Notifier { return &Notifier{logs: logs} }

func (n *Notifier) event(kind string, t models.Transaction) {
	slog.Info("payment notification", "kind", kind, "user_id", t.UserID,
		"transaction_id", t.ID, "amount", t.Amount)
	id := t.ID
	err := n.logs.Create(context.Background(), models.AuditLog{
		EntityType: "notification",
		EntityID:   &id,
		Action:     kind,
		Details: map[string]any{
			"user_id": t.UserID,
			"amount":  t.Amount,
			"type":    string(t.Type),
		},
	})
	if err != nil {
		slog.Error("notification audit", "err", err)
	}
}

func (n *Notifier) DepositCredited(t models.Transaction)  { n.event("deposit_credited", t) }
func (n *Notifier) WithdrawalPaid(t models.Transaction)   { n.event("withdrawal_paid", t) }
func (n *Notifier) WithdrawalFailed(t models.Transaction) { n.event("withdrawal_failed", t) }
func (n *Notifier) DepositFailed(t models.Transaction)    { n.event("deposit_failed", t) }
