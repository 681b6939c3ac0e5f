// Package app wires the pieces shared by the server and the CLI.
package app

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/IlyasAtabaev731/lsc-coin/internal/config"
	"github.com/IlyasAtabaev731/lsc-coin/internal/ledger"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage/memory"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage/postgres"
	"github.com/IlyasAtabaev731/lsc-coin/internal/storage/sqlite"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func SetupLogger(env string, w io.Writer) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(slog.NewTextHandler(w, nil))
	}
	return log
}

// OpenStore opens the backend named by cfg.Storage.Driver.
func OpenStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		return memory.New(), nil
	case config.DriverSQLite:
		return sqlite.New(cfg.Storage.SQLitePath)
	case config.DriverPostgres:
		return postgres.New(cfg.Postgres.URL())
	}
	return nil, fmt.Errorf("app.OpenStore: unknown storage driver %q", cfg.Storage.Driver)
}

func NewLedger(cfg *config.Config, store storage.Store, log *slog.Logger) *ledger.Ledger {
	return ledger.New(store, log, cfg.Wallet, cfg.Auth.StaffCode)
}
