// Command server is the process entrypoint: it loads configuration,
// refuses to start against a database with pending migrations, wires
// the full AppContext, and serves HTTP until an interrupt signal
// arrives. Grounded on the teacher's cmd/bot/main.go main()/run() split.
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

	"go.uber.org/zap"

	"github.com/tradecore/backend/internal/appctx"
	"github.com/tradecore/backend/internal/config"
	"github.com/tradecore/backend/internal/storage"
	"github.com/tradecore/backend/pkg/logger"
)

// migrationsPath is fixed rather than configurable; the teacher's own
// bot process hardcodes "./migrations" the same way.
const migrationsPath = "./migrations"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "received shutdown signal, draining...")
		cancel()
	}()

	code := run(ctx)
	os.Exit(code)
}

// run returns the process exit code directly (§6: 0 normal, 1
// unrecoverable startup error, 2 refusing to start on pending
// migrations) instead of propagating an error, since different
// failures at this layer map to different codes rather than a single
// "something went wrong".
func run(ctx context.Context) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	pending, err := storage.PendingMigrations(cfg.Database, migrationsPath)
	if err != nil && !errors.Is(err, storage.ErrDirty) {
		logger.Error("failed to check migration status", zap.Error(err))
		return 1
	}
	if errors.Is(err, storage.ErrDirty) {
		logger.Error("database schema is in a dirty migration state, refusing to start", zap.Error(err))
		return 2
	}
	if pending {
		logger.Error("database migrations are pending, refusing to start; run the migrator first")
		return 2
	}

	app, err := appctx.New(cfg)
	if err != nil {
		logger.Error("failed to build application context", zap.Error(err))
		return 1
	}
	defer app.Close()

	go func() {
		if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("a background loop stopped with error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:         cfg.Listen.Addr,
		Handler:      app.HTTP.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Listen.Addr))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped unexpectedly", zap.Error(err))
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}

	logger.Info("shutdown complete")
	return 0
}
