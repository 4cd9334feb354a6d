package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/veritas/internal/api"
	"github.com/Harshitk-cp/veritas/internal/buildconfig"
	"github.com/Harshitk-cp/veritas/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	driver := config.StoreDriver()
	backend, err := api.OpenBackend(ctx, driver)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("driver", driver), zap.Error(err))
	}
	defer backend.Close()
	logger.Info("store opened", zap.String("driver", driver))

	council, err := config.LoadCouncil(config.CouncilConfigPath())
	if err != nil {
		logger.Fatal("failed to load council config", zap.Error(err))
	}

	svcs, err := api.BuildServices(ctx, backend, council, logger)
	if err != nil {
		logger.Fatal("failed to wire services", zap.Error(err))
	}
	defer svcs.Close()

	app := api.NewApp(backend, svcs, logger)

	// Start background services
	app.Retention.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting",
			zap.String("addr", addr),
			zap.String("version", buildconfig.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	app.Retention.Stop()

	// Streams stay open until their final event, so allow more time than a
	// plain request needs.
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
