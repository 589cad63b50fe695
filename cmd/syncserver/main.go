// Package main is the entry point for the reference sync server. It accepts
// documents and counters from agents and stores them in PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raccolta/internal/config"
	"raccolta/internal/infrastructure/http/syncapi"
	"raccolta/internal/infrastructure/storage/postgres"
	"raccolta/pkg/logger"
)

func main() {
	cfg, err := config.Load(os.Getenv("RACCOLTA_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateServer(); err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Info("starting raccolta sync server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Server.DatabaseURL)
	if cfg.Server.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Server.MaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Infow("database connection established", "max_conns", poolCfg.MaxConns)

	txm := postgres.NewTxManager(pool)
	if err := postgres.Migrate(ctx, txm); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	// --- Router ---
	router := syncapi.NewRouter(postgres.NewSyncRepo(txm), log)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	stats := time.NewTicker(5 * time.Minute)
	defer stats.Stop()
	for waiting := true; waiting; {
		select {
		case <-quit:
			waiting = false
		case <-stats.C:
			postgres.LogPoolStats(ctx, pool)
		}
	}

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
