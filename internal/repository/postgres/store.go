package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so every
// repo works both standalone and inside WithinTx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

func (s *Store) Users() repo.Users               { return &usersRepo{q: s.q} }
func (s *Store) Wallets() repo.Wallets           { return &walletsRepo{q: s.q} }
func (s *Store) Transactions() repo.Transactions { return &transactionsRepo{q: s.q} }
func (s *Store) Approvals() repo.Approvals       { return &approvalsRepo{q: s.q} }
func (s *Store) Settings() repo.Settings         { return &settingsRepo{q: s.q} }
func (s *Store) AuditLogs() repo.AuditLogs       { return &auditLogsRepo{q: s.q} }

func (s *Store) WithinTx(ctx context.Context, fn func(repo.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	ts := &Store{pool: s.pool, q: tx, inTx: true}
	if err := fn(ts); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func mapErr(err error) error {
	if err == pgx.ErrNoRows {
		return repo.ErrNotFound
	}
	return err
}
