package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/metrics"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
)

func newInvoiceNo(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:18])
}

func audit(ctx context.Context, logs repo.AuditLogs, entityID, action, msg string) {
	id := entityID
	_ = logs.Create(ctx, models.AuditLog{
		EntityType: "transaction",
		EntityID:   &id,
		Action:     action,
		Details:    map[string]any{"message": msg},
	})
}

type DepositService struct {
	store repo.Store
	gw    gateway.Client
	modes *ModeResolver
}

func NewDepositService(store repo.Store, gw gateway.Client, modes *ModeResolver) *DepositService {
	return &DepositService{store: store, gw: gw, modes: modes}
}

type DepositInitiated struct {
	Transaction models.Transaction
	PaymentURL  string
}

// Initiate records the deposit attempt and asks the gateway for a hosted
// payment page. The transaction row is persisted as INITIATED before the
// gateway call, so a crash after the gateway acknowledged is recoverable by
// re-querying status with the invoice number.
func (s *DepositService) Initiate(ctx context.Context, userID string, amount int64, paymentSystem string) (*DepositInitiated, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if _, err := s.store.Wallets().GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	mode := s.modes.Resolve(ctx)
	txn, err := s.store.Transactions().Create(ctx, models.Transaction{
		UserID:        user.ID,
		Amount:        amount,
		Currency:      "INR",
		Type:          models.TxnDeposit,
		Status:        models.TxnInitiated,
		Mode:          mode,
		InvoiceNo:     newInvoiceNo("DEP"),
		PaymentSystem: paymentSystem,
	})
	if err != nil {
		return nil, err
	}
	audit(ctx, s.store.AuditLogs(), txn.ID, "created", "deposit initiated")

	res, err := s.gw.CreateDepositPage(ctx, gateway.DepositRequest{
		InvoiceNo:     txn.InvoiceNo,
		UserID:        user.ID,
		Amount:        amount,
		Currency:      txn.Currency,
		PaymentSystem: paymentSystem,
	})
	if err != nil {
		var rej *gateway.RejectedError
		if errors.As(err, &rej) {
			metrics.GatewayRequestsTotal.WithLabelValues("create_deposit", "rejected").Inc()
			ferr := s.store.WithinTx(ctx, func(st repo.Store) error {
				cur, gerr := st.Transactions().GetForUpdate(ctx, txn.ID)
				if gerr != nil {
					return gerr
				}
				if cur.Status.Terminal() {
					return nil
				}
				if gerr := st.Transactions().UpdateStatus(ctx, cur.ID, models.TxnFailed); gerr != nil {
					return gerr
				}
				audit(ctx, st.AuditLogs(), cur.ID, "status_change", "FAILED: "+rej.Reason)
				metrics.TransactionsTotal.WithLabelValues("deposit", "FAILED").Inc()
				return nil
			})
			if ferr != nil {
				return nil, ferr
			}
			return nil, err
		}
		// Transient: leave the row INITIATED so a requery or a late webhook
		// can still resolve it.
		metrics.GatewayRequestsTotal.WithLabelValues("create_deposit", "error").Inc()
		slog.Error("create deposit page", "transaction_id", txn.ID, "err", err)
		return nil, err
	}
	metrics.GatewayRequestsTotal.WithLabelValues("create_deposit", "ok").Inc()

	// A webhook for this invoice can land between the gateway answering and
	// this write; record the order id and park the row under its lock, and
	// only while it is still live.
	err = s.store.WithinTx(ctx, func(st repo.Store) error {
		cur, gerr := st.Transactions().GetForUpdate(ctx, txn.ID)
		if gerr != nil {
			return gerr
		}
		if res.OrderID != "" && cur.GatewayOrderID == nil {
			if gerr := st.Transactions().SetGatewayOrderID(ctx, cur.ID, res.OrderID); gerr != nil {
				return gerr
			}
			cur.GatewayOrderID = &res.OrderID
		}
		if cur.Status == models.TxnInitiated {
			if gerr := st.Transactions().UpdateStatus(ctx, cur.ID, models.TxnPending); gerr != nil {
				return gerr
			}
			cur.Status = models.TxnPending
		}
		txn = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &DepositInitiated{Transaction: txn, PaymentURL: res.PaymentURL}, nil
}
