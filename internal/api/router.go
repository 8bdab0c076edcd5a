package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/api/handlers"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/auth"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/config"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/metrics"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/middleware"
	repo "github.com/karan-singh12/cricket-fantasy-sub001/internal/repository"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
)

type Deps struct {
	Cfg         config.Config
	TM          *auth.TokenManager
	Store       repo.Store
	Deposits    *services.DepositService
	Withdrawals *services.WithdrawalService
	Webhooks    *services.WebhookService
	Wallets     *services.WalletService
	Approvals   *services.ApprovalService
	Modes       *services.ModeResolver
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover, middleware.HTTPMetrics, middleware.RateLimit(d.Cfg.RateRPS))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())

	am := middleware.NewAuthMiddleware(d.TM)
	authH := &handlers.AuthHandler{TM: d.TM, Users: d.Store.Users()}
	payH := &handlers.PaymentsHandler{
		Deposits:    d.Deposits,
		Withdrawals: d.Withdrawals,
		Webhooks:    d.Webhooks,
		Wallets:     d.Wallets,
	}
	walletH := &handlers.WalletHandler{Wallets: d.Wallets}
	adminH := &handlers.AdminHandler{Approvals: d.Approvals, Modes: d.Modes}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authH.Login)
		r.Post("/auth/refresh", authH.Refresh)

		// Gateway-facing endpoints: the webhook authenticates by signature,
		// the callback is an untrusted browser redirect.
		r.Post("/payments/webhook", payH.Webhook)
		r.Get("/payments/callback", payH.Callback)

		r.Group(func(r chi.Router) {
			r.Use(am.Auth)
			r.Post("/payments/deposit", payH.Deposit)
			r.Post("/payments/withdraw", payH.Withdraw)
			r.Get("/payments/transactions", payH.ListTransactions)
			r.Get("/payments/transactions/{id}", payH.GetTransaction)
			r.Post("/payments/transactions/{id}/requery", payH.RequeryTransaction)
			r.Get("/wallet", walletH.Current)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(am.Auth, middleware.RequireRole("admin"))
			r.Get("/approvals", adminH.ListApprovals)
			r.Post("/approvals/{id}/approve", adminH.Approve)
			r.Post("/approvals/{id}/reject", adminH.Reject)
			r.Get("/settings/payment-mode", adminH.GetPaymentMode)
			r.Put("/settings/payment-mode", adminH.SetPaymentMode)
		})
	})

	return r
}
