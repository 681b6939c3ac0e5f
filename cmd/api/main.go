package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IlyasAtabaev731/lsc-coin/internal/api"
	"github.com/IlyasAtabaev731/lsc-coin/internal/app"
	"github.com/IlyasAtabaev731/lsc-coin/internal/config"
	"github.com/IlyasAtabaev731/lsc-coin/internal/jobs"
	"github.com/IlyasAtabaev731/lsc-coin/internal/session"
)

func main() {
	cfg := config.MustLoad()

	log := app.SetupLogger(cfg.Env, os.Stdout)

	log.Info("Starting application",
		slog.String("env", cfg.Env),
		slog.String("host", cfg.ApiHost),
		slog.Int("port", cfg.ApiPort),
		slog.String("storage", cfg.Storage.Driver),
	)

	store, err := app.OpenStore(cfg)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	wallet := app.NewLedger(cfg, store, log)
	sessions := session.New(store, log, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := jobs.NewScheduler(cfg.Backup.Schedule, wallet, store, log)
	scheduler.SweepSessions(sessions)
	if err := scheduler.Start(ctx); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	apiServer := api.New(cfg, log, wallet, sessions)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		apiServer.MustStart()
	}()

	<-sigChan
	log.Info("Got signal to shutdown server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Error("Stopping server error", "error", err)
	}

	cancel()
	scheduler.Stop()
}
