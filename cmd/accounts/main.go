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
	"github.com/josh-kwaku/banking-core/internal/handler"
	"github.com/josh-kwaku/banking-core/internal/logging"
	"github.com/josh-kwaku/banking-core/internal/middleware"
	"github.com/josh-kwaku/banking-core/internal/repository"
	"github.com/josh-kwaku/banking-core/internal/server"
	"github.com/josh-kwaku/banking-core/internal/service"
)

const serviceName = "accounts"

func main() {
	if err := run(); err != nil {
		slog.Error("accounts service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

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

	sequences := service.NewSequenceService(repository.NewSequenceRepository(db))
	accounts := service.NewAccountService(
		repository.NewAccountRepository(db),
		sequences,
		db,
		service.AccountPolicy{
			NumberPrefix:         cfg.Accounts.NumberPrefix,
			MinActivationBalance: cfg.Accounts.MinActivationBalance,
		},
	)

	serviceAuth := middleware.ServiceAuth(cfg.ServiceTokenSecret)
	mux := http.NewServeMux()
	handler.NewHealthHandler(db, serviceName).Register(mux)
	handler.NewSequenceHandler(sequences).Register(mux, serviceAuth)
	handler.NewAccountHandler(accounts).Register(mux, serviceAuth)

	return server.Run(ctx, fmt.Sprintf(":%d", cfg.Port), server.Handler(serviceName, mux))
}
