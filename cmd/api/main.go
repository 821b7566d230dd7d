package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shoplyft/backend/api/routes"
	"github.com/shoplyft/backend/internal/activity"
	"github.com/shoplyft/backend/internal/orders"
	"github.com/shoplyft/backend/internal/orgledger"
	"github.com/shoplyft/backend/internal/payments"
	"github.com/shoplyft/backend/internal/pricing"
	"github.com/shoplyft/backend/internal/promotions"
	"github.com/shoplyft/backend/internal/receipts"
	"github.com/shoplyft/backend/internal/wallet"
	"github.com/shoplyft/backend/pkg/config"
	"github.com/shoplyft/backend/pkg/db"
	"github.com/shoplyft/backend/pkg/env"
	"github.com/shoplyft/backend/pkg/logger"
	"github.com/shoplyft/backend/pkg/metrics"
	"github.com/shoplyft/backend/pkg/migrate"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logger.New("info", "development")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logg := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	ctx := logger.WithContext(context.Background(), logg)

	dbClient, err := db.New(ctx, cfg.DB, cfg.Flags.UseSQLite, logg)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to bootstrap database")
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error().Err(err).Msg("error closing database")
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Fatal().Err(err).Msg("failed to run dev migrations")
	}

	conn := dbClient.DB()

	walletSvc, err := wallet.NewService(dbClient, wallet.NewRepository(conn))
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create wallet service")
	}
	promoSvc, err := promotions.NewService(promotions.NewRepository(conn))
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create promotions service")
	}
	pricingSvc, err := pricing.NewService(promoSvc, cfg.Settlement)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create pricing service")
	}
	paymentsSvc, err := payments.NewService(payments.NewRepository(conn), walletSvc)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create payments service")
	}
	orgSvc, err := orgledger.NewService(dbClient, orgledger.NewRepository(conn), walletSvc)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create org ledger service")
	}
	receiptsSvc, err := receipts.NewService(conn)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create receipts service")
	}
	activitySvc, err := activity.NewService(conn)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create activity service")
	}

	registry := prometheus.NewRegistry()
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	ordersSvc, err := orders.NewService(
		dbClient,
		orders.NewRepository(conn),
		pricingSvc,
		paymentsSvc,
		orgSvc,
		receiptsSvc,
		activitySvc,
		settlementMetrics,
	)
	if err != nil {
		logg.Fatal().Err(err).Msg("failed to create orders service")
	}

	router := routes.NewRouter(routes.Deps{
		Logger:     logg,
		DB:         dbClient,
		Registry:   registry,
		Orders:     ordersSvc,
		Wallet:     walletSvc,
		Promotions: promoSvc,
		Org:        orgSvc,
		Activity:   activitySvc,
	})

	addr := ":" + env.Get("PORT", cfg.App.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info().
			Str("env", cfg.App.Environment).
			Str("addr", addr).
			Msg("starting api server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Fatal().Err(err).Msg("api server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error().Err(err).Msg("server shutdown failed")
	}
	logg.Info().Msg("api server stopped")
}
