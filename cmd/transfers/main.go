package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/josh-kwaku/banking-core/internal/config"
	"github.com/josh-kwaku/banking-core/internal/events"
	"github.com/josh-kwaku/banking-core/internal/handler"
	"github.com/josh-kwaku/banking-core/internal/logging"
	"github.com/josh-kwaku/banking-core/internal/remote"
	"github.com/josh-kwaku/banking-core/internal/repository"
	"github.com/josh-kwaku/banking-core/internal/server"
	"github.com/josh-kwaku/banking-core/internal/service/transfer"
)

const serviceName = "transfers"

func main() {
	if err := run(); err != nil {
		slog.Error("transfers service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig(cfg.DB), 30)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(db, cfg.MigrationsDir, serviceName); err != nil {
		return err
	}

	opts := remote.Options{
		Caller:          serviceName,
		TokenSecret:     cfg.ServiceTokenSecret,
		TokenTTL:        cfg.Remote.TokenTTL,
		Timeout:         cfg.Remote.Timeout,
		MaxRetries:      cfg.Remote.MaxRetries,
		RetryInitial:    cfg.Remote.RetryInitial,
		RetryMax:        cfg.Remote.RetryMax,
		BreakerFailures: cfg.Remote.BreakerFailures,
		BreakerTimeout:  cfg.Remote.BreakerTimeout,
	}

	transfers := transfer.NewService(
		remote.NewAccountsClient(cfg.Remote.AccountsURL, opts),
		remote.NewTransactionsClient(cfg.Remote.TransactionsURL, opts),
		repository.NewTransferRepository(db),
		transfer.Config{
			ConflictRetries:   cfg.Transfer.ConflictRetries,
			CompletionTimeout: cfg.Transfer.SagaCompletionTimeout,
		},
	)

	publisher, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	defer publisher.Close()

	relay := events.NewRelay(
		repository.NewOutboxRepository(db),
		publisher,
		logger,
		cfg.Events.PollInterval,
		cfg.Events.BatchSize,
		cfg.Events.MaxAttempts,
	)
	go relay.Start(ctx)

	mux := http.NewServeMux()
	handler.NewHealthHandler(db, serviceName).Register(mux)
	handler.NewTransferHandler(transfers).Register(mux)

	return server.Run(ctx, fmt.Sprintf(":%d", cfg.Port), server.Handler(serviceName, mux))
}
