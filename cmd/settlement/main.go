package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soukmarket/settlement/internal/application/services"
	"github.com/soukmarket/settlement/internal/config"
	"github.com/soukmarket/settlement/internal/infrastructure/gateway"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence"
	"github.com/soukmarket/settlement/internal/infrastructure/persistence/postgres"
	"github.com/soukmarket/settlement/internal/interfaces/rest"
	"github.com/soukmarket/settlement/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting settlement service",
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	db, err := persistence.Connect(ctx, &cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	uow := postgres.NewUnitOfWork(db, cfg.Ledger.Currency)
	gatewayClient := gateway.NewGatewayClient(cfg.Gateway)

	paymentService, err := services.NewPaymentService(uow, gatewayClient, cfg.Gateway, cfg.Ledger, logger)
	if err != nil {
		logger.Error("failed to build payment service", "error", err)
		os.Exit(1)
	}
	ticketService, err := services.NewTicketService(uow, cfg.Ledger, cfg.Worker, logger)
	if err != nil {
		logger.Error("failed to build ticket service", "error", err)
		os.Exit(1)
	}
	settlementService, err := services.NewSettlementService(uow, cfg.Ledger, cfg.Worker, logger)
	if err != nil {
		logger.Error("failed to build settlement service", "error", err)
		os.Exit(1)
	}

	handler := rest.NewHandler(paymentService, ticketService, uow, logger)
	server := rest.NewServer(cfg.Server, handler, logger)

	scheduler, err := worker.NewScheduler(
		worker.NewSettlementWorker(settlementService, logger),
		worker.NewEscalationWorker(ticketService, cfg.Worker.BatchSize, logger),
		cfg.Worker,
		logger,
	)
	if err != nil {
		logger.Error("failed to build worker scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	if err := scheduler.Shutdown(); err != nil {
		logger.Error("worker shutdown failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("settlement service exited")
}
