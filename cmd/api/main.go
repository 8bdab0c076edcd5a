package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/karan-singh12/cricket-fantasy-sub001/internal/api"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/auth"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/config"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/db"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/gateway"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/logger"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/metrics"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/models"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/notifier"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/repository/postgres"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/services"
	"github.com/karan-singh12/cricket-fantasy-sub001/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("db connect", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if os.Getenv("APP_MIGRATE") == "true" {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("migrations", "err", err)
			os.Exit(1)
		}
	}

	metrics.Init()

	store := postgres.NewStore(pool)
	wp := worker.NewPool(cfg.Workers)
	defer wp.Stop()

	gw := gateway.NewHTTPClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		AccessKey: cfg.Gateway.AccessKey,
		Secret:    cfg.Gateway.Secret,
		Timeout:   cfg.Gateway.Timeout,
	})

	notif := notifier.New(store.AuditLogs())
	modes := services.NewModeResolver(store, models.PaymentMode(cfg.Payments.DefaultMode))
	depositSvc := services.NewDepositService(store, gw, modes)
	withdrawalSvc := services.NewWithdrawalService(store, gw, modes, cfg.Payments.MinRetainedBalance, wp, notif)
	webhookSvc := services.NewWebhookService(store, gw, modes, cfg.Gateway.AccessKey, cfg.Gateway.Secret, wp, notif)
	walletSvc := services.NewWalletService(store)
	approvalSvc := services.NewApprovalService(store, gw, cfg.Payments.MinRetainedBalance, wp, notif)

	tm := auth.NewTokenManager(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	r := api.NewRouter(api.Deps{
		Cfg:         cfg,
		TM:          tm,
		Store:       store,
		Deposits:    depositSvc,
		Withdrawals: withdrawalSvc,
		Webhooks:    webhookSvc,
		Wallets:     walletSvc,
		Approvals:   approvalSvc,
		Modes:       modes,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
