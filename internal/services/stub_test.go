package services_test

import (
	"context"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/repository/memory"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

const (
	testAccessKey = "ak_test"
	testSecret    = "sk_test"
)

// stubGateway implements gateway.Client with per-method overrides; unset
// methods answer like a healthy aggregator.
type stubGateway struct {
	createDeposit    func(gateway.DepositRequest) (*gateway.OrderResult, error)
	createWithdrawal func(gateway.WithdrawalRequest) (*gateway.OrderResult, error)
	queryDeposit     func(string) (*gateway.OrderResult, error)
	queryWithdrawal  func(string) (*gateway.OrderResult, error)
}

func (s *stubGateway) CreateDepositPage(ctx context.Context, req gateway.DepositRequest) (*gateway.OrderResult, error) {
	if s.createDeposit != nil {
		return s.createDeposit(req)
	}
	return &gateway.OrderResult{OrderID: "ord-dep", Status: "created", PaymentURL: "https://pay.test/ord-dep"}, nil
}

func (s *stubGateway) CreateWithdrawal(ctx context.Context, req gateway.WithdrawalRequest) (*gateway.OrderResult, error) {
	if s.createWithdrawal != nil {
		return s.createWithdrawal(req)
	}
	return &gateway.OrderResult{OrderID: "ord-wdl", Status: "pending"}, nil
}

func (s *stubGateway) QueryDepositStatus(ctx context.Context, invoiceNo string) (*gateway.OrderResult, error) {
	if s.queryDeposit != nil {
		return s.queryDeposit(invoiceNo)
	}
	return &gateway.OrderResult{OrderID: "ord-dep", Status: "pending"}, nil
}

func (s *stubGateway) QueryWithdrawalStatus(ctx context.Context, invoiceNo string) (*gateway.OrderResult, error) {
	if s.queryWithdrawal != nil {
		return s.queryWithdrawal(invoiceNo)
	}
	return &gateway.OrderResult{OrderID: "ord-wdl", Status: "pending"}, nil
}

// signedBatch builds a webhook batch carrying a valid signature over its
// entries.
func signedBatch(entries ...gateway.WebhookEntry) gateway.WebhookBatch {
	b := gateway.WebhookBatch{AccessKey: testAccessKey, Transactions: entries}
	canonical, _ := b.Canonical()
	b.Signature = gateway.Sign(testAccessKey, testSecret, canonical)
	return b
}

func newWebhookService(store *memory.Store, def models.PaymentMode) *services.WebhookService {
	return newWebhookServiceWithGateway(store, &stubGateway{}, def)
}

func newWebhookServiceWithGateway(store *memory.Store, gw gateway.Client, def models.PaymentMode) *services.WebhookService {
	modes := services.NewModeResolver(store, def)
	return services.NewWebhookService(store, gw, modes, testAccessKey, testSecret, nil, nil)
}
