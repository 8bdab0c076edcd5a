// Package memory is an in-process Store used by tests. WithinTx serializes
// whole blocks behind one mutex, which stands in for the row locks the
// postgres store takes; it does not emulate rollback.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
)

type Store struct {
	txMu sync.Mutex // serializes WithinTx blocks
	mu   sync.Mutex // guards the maps

	users     map[string]models.User
	wallets   map[string]models.Wallet // keyed by user id
	txns      map[string]models.Transaction
	approvals map[string]models.PaymentApproval
	settings  map[string]string
	audits    []models.AuditLog
}

func New() *Store {
	return &Store{
		users:     map[string]models.User{},
		wallets:   map[string]models.Wallet{},
		txns:      map[string]models.Transaction{},
		approvals: map[string]models.PaymentApproval{},
		settings:  map[string]string{},
	}
}

func (s *Store) WithinTx(ctx context.Context, fn func(repo.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *Store) Users() repo.Users               { return usersRepo{s} }
func (s *Store) Wallets() repo.Wallets           { return walletsRepo{s} }
func (s *Store) Transactions() repo.Transactions { return txnsRepo{s} }
func (s *Store) Approvals() repo.Approvals       { return approvalsRepo{s} }
func (s *Store) Settings() repo.Settings         { return settingsRepo{s} }
func (s *Store) AuditLogs() repo.AuditLogs       { return auditRepo{s} }

// SeedUser inserts a user with a wallet at the given balance.
func (s *Store) SeedUser(id string, balance int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.users[id] = models.User{ID: id, Username: "u-" + id, Email: id + "@test", Role: "user", WalletBalance: balance, CreatedAt: now, UpdatedAt: now}
	s.wallets[id] = models.Wallet{ID: uuid.NewString(), UserID: id, Balance: balance, Currency: "INR", LastUpdatedAt: now}
}

// Audits returns a copy of the audit trail.
func (s *Store) Audits() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditLog, len(s.audits))
	copy(out, s.audits)
	return out
}

// ---- users ----

type usersRepo struct{ s *Store }

func (r usersRepo) Create(ctx context.Context, username, email, passwordHash, role string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now()
	u := models.User{ID: uuid.NewString(), Username: username, Email: email, PasswordHash: passwordHash, Role: role, CreatedAt: now, UpdatedAt: now}
	r.s.users[u.ID] = u
	return u, nil
}

func (r usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

// ---- wallets ----

type walletsRepo struct{ s *Store }

func (r walletsRepo) GetOrCreate(ctx context.Context, userID string) (models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if w, ok := r.s.wallets[userID]; ok {
		return w, nil
	}
	w := models.Wallet{ID: uuid.NewString(), UserID: userID, Currency: "INR", LastUpdatedAt: time.Now()}
	r.s.wallets[userID] = w
	return w, nil
}

func (r walletsRepo) Get(ctx context.Context, userID string) (models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return models.Wallet{}, repo.ErrNotFound
	}
	return w, nil
}

func (r walletsRepo) GetForUpdate(ctx context.Context, userID string) (models.Wallet, error) {
	return r.Get(ctx, userID)
}

func (r walletsRepo) Adjust(ctx context.Context, userID string, delta int64) (models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[userID]
	if !ok {
		return models.Wallet{}, repo.ErrNotFound
	}
	w.Balance += delta
	w.LastUpdatedAt = time.Now()
	r.s.wallets[userID] = w
	if u, ok := r.s.users[userID]; ok {
		u.WalletBalance = w.Balance
		r.s.users[userID] = u
	}
	return w, nil
}

// ---- transactions ----

type txnsRepo struct{ s *Store }

func (r txnsRepo) Create(ctx context.Context, t models.Transaction) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.txns {
		if ex.InvoiceNo == t.InvoiceNo {
			return ex, nil
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.CreatedAt, t.UpdatedAt = now, now
	r.s.txns[t.ID] = t
	return t, nil
}

func (r txnsRepo) GetByID(ctx context.Context, id string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.txns[id]
	if !ok {
		return models.Transaction{}, repo.ErrNotFound
	}
	return t, nil
}

func (r txnsRepo) GetByInvoice(ctx context.Context, invoiceNo string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if t.InvoiceNo == invoiceNo {
			return t, nil
		}
	}
	return models.Transaction{}, repo.ErrNotFound
}

func (r txnsRepo) FindForUpdate(ctx context.Context, orderID, invoiceNo string) (models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.txns {
		if orderID != "" && t.GatewayOrderID != nil && *t.GatewayOrderID == orderID {
			return t, nil
		}
	}
	if invoiceNo != "" {
		for _, t := range r.s.txns {
			if t.InvoiceNo == invoiceNo {
				return t, nil
			}
		}
	}
	return models.Transaction{}, repo.ErrNotFound
}

func (r txnsRepo) GetForUpdate(ctx context.Context, id string) (models.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r txnsRepo) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.txns[id]
	if !ok {
		return repo.ErrNotFound
	}
	if t.Status.Terminal() {
		return nil
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	r.s.txns[id] = t
	return nil
}

func (r txnsRepo) SetGatewayOrderID(ctx context.Context, id, orderID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.txns[id]
	if !ok {
		return repo.ErrNotFound
	}
	t.GatewayOrderID = &orderID
	t.UpdatedAt = time.Now()
	r.s.txns[id] = t
	return nil
}

func (r txnsRepo) MarkDebited(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.txns[id]
	if !ok {
		return repo.ErrNotFound
	}
	if t.DebitedAt == nil {
		now := time.Now()
		t.DebitedAt = &now
		t.UpdatedAt = now
		r.s.txns[id] = t
	}
	return nil
}

func (r txnsRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.s.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// ---- approvals ----

type approvalsRepo struct{ s *Store }

func (r approvalsRepo) Create(ctx context.Context, a models.PaymentApproval) (models.PaymentApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, ex := range r.s.approvals {
		if ex.TransactionID == a.TransactionID && ex.Status == models.ApprovalPending {
			ex.PaymentSystem = a.PaymentSystem
			ex.AccountNumber = a.AccountNumber
			r.s.approvals[ex.ID] = ex
			return ex, nil
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = models.ApprovalPending
	}
	a.CreatedAt = time.Now()
	r.s.approvals[a.ID] = a
	return a, nil
}

func (r approvalsRepo) GetByID(ctx context.Context, id string) (models.PaymentApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok {
		return models.PaymentApproval{}, repo.ErrNotFound
	}
	return a, nil
}

func (r approvalsRepo) GetForUpdate(ctx context.Context, id string) (models.PaymentApproval, error) {
	return r.GetByID(ctx, id)
}

func (r approvalsRepo) GetPendingByTransaction(ctx context.Context, transactionID string) (models.PaymentApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.approvals {
		if a.TransactionID == transactionID && a.Status == models.ApprovalPending {
			return a, nil
		}
	}
	return models.PaymentApproval{}, repo.ErrNotFound
}

func (r approvalsRepo) GetLatestByTransaction(ctx context.Context, transactionID string) (models.PaymentApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest models.PaymentApproval
	found := false
	for _, a := range r.s.approvals {
		if a.TransactionID != transactionID {
			continue
		}
		if !found || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
			found = true
		}
	}
	if !found {
		return models.PaymentApproval{}, repo.ErrNotFound
	}
	return latest, nil
}

func (r approvalsRepo) Resolve(ctx context.Context, id string, status models.ApprovalStatus, adminID, notes string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.approvals[id]
	if !ok || a.Status != models.ApprovalPending {
		return nil
	}
	now := time.Now()
	a.Status = status
	a.ProcessedBy = &adminID
	a.ProcessedAt = &now
	a.Notes = notes
	r.s.approvals[id] = a
	return nil
}

func (r approvalsRepo) ListByStatus(ctx context.Context, status models.ApprovalStatus, limit, offset int) ([]models.PaymentApproval, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PaymentApproval
	for _, a := range r.s.approvals {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- settings ----

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(ctx context.Context, key string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.settings[key]
	if !ok {
		return "", repo.ErrNotFound
	}
	return v, nil
}

func (r settingsRepo) Set(ctx context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings[key] = value
	return nil
}

// ---- audit logs ----

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, l models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l.ID = uuid.NewString()
	l.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, l)
	return nil
}
