package services

import (
	"context"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
)

type WalletService struct {
	store repo.Store
}

func NewWalletService(store repo.Store) *WalletService {
	return &WalletService{store: store}
}

func (s *WalletService) Current(ctx context.Context, userID string) (models.Wallet, error) {
	return s.store.Wallets().GetOrCreate(ctx, userID)
}

func (s *WalletService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	return s.store.Transactions().ListByUser(ctx, userID, limit, offset)
}

func (s *WalletService) GetTransaction(ctx context.Context, id string) (models.Transaction, error) {
	return s.store.Transactions().GetByID(ctx, id)
}
