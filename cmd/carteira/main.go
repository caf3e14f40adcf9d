package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"carteira/internal/amqp"
	"carteira/internal/auth"
	"carteira/internal/config"
	apphttp "carteira/internal/http"
	"carteira/internal/ledger"
	applog "carteira/internal/log"
	"carteira/internal/recurrence"
	"carteira/internal/storage"
	"carteira/internal/sync"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: "carteira",
	})
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	codec := auth.NewTokenCodec(cfg.JWTSecret, cfg.SessionTTL)
	authority := auth.NewAuthority(store, codec, cfg.SessionTTL)
	syncEngine := sync.NewEngine(store, logger.WithComponent("sync").Logger)
	scheduler := recurrence.NewScheduler(store)

	var publisher apphttp.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			// The API runs fine without the broker; consumers just miss events.
			logger.Warn("AMQP unavailable, change events disabled", "error", err)
		} else {
			defer client.Close()
			publisher = client
			logger.Info("AMQP change events enabled", "exchange", cfg.AMQPExchange)
		}
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Store:              store,
		Authority:          authority,
		SyncEngine:         syncEngine,
		Scheduler:          scheduler,
		Ledger:             ledger.Engine{DueDay: cfg.DueDay},
		Publisher:          publisher,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustProxyHeaders:  cfg.TrustProxyHeaders,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting carteira server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
