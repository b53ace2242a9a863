// Copyright (C) 2025, Admarkt. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/admarkt/admarkt/pkg/api"
	"github.com/admarkt/admarkt/pkg/config"
	"github.com/admarkt/admarkt/pkg/creative"
	"github.com/admarkt/admarkt/pkg/exchange"
	"github.com/admarkt/admarkt/pkg/log"
	"github.com/admarkt/admarkt/pkg/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := log.New(cfg.App.LogLevel)
	defer logger.Sync()

	logger.Info("starting admarkt exchange",
		log.String("environment", cfg.App.Environment),
		log.String("storage", cfg.App.Storage))

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open storage", log.Err(err))
	}
	defer closeStore()

	files, err := creative.NewDiskStorage(cfg.Creative.Dir)
	if err != nil {
		logger.Fatal("failed to open creative storage", log.Err(err))
	}

	engine := exchange.New(st, logger)
	server := api.NewServer(engine, st, files, logger,
		cfg.Server.BidRateLimit, cfg.Server.BidRateBurst)
	router := server.Router(cfg.App.IsProduction(), files.Dir())

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", log.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server error", log.Err(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", log.Err(err))
	}
	logger.Info("server exited")
}

// openStore builds the configured storage backend. The memory backend
// exists for demos and local development without PostgreSQL.
func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (exchange.Store, func(), error) {
	if cfg.App.Storage == "memory" {
		return store.NewMemory(), func() {}, nil
	}

	pg, err := store.Open(ctx, &cfg.Database, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, nil, err
	}
	closer := func() {
		if err := pg.Close(); err != nil {
			logger.Error("error closing storage", log.Err(err))
		}
	}
	return pg, closer, nil
}
