// Package cli provides the initialization shared by cmd/budget-server and
// cmd/budget.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"budget/internal/backend"
	"budget/internal/config"
	"budget/internal/ledger"
	applog "budget/internal/log"
)

// LoadEnvFile loads a .env file for local development. A missing file is
// not an error; a malformed one is.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// SetupLogger builds the application logger from cfg and installs it as
// the slog default.
func SetupLogger(cfg *config.Config, out io.Writer) *applog.Logger {
	level, err := applog.ParseLevel(cfg.LogLevel)
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: applog.ComponentApp,
		Output:    out,
	})
	if err != nil {
		logger.Warn("Unknown log level, using info", applog.FieldError, err)
	}
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenLedger creates the configured storage backend and opens the ledger
// on it. The returned cleanup closes both.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*ledger.Store, func() error, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Opening ledger",
		applog.FieldBackend, bcfg.Type.String(),
		applog.FieldCurrency, cfg.ReportingCurrency)

	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s backend: %w", bcfg.Type, err)
	}

	store, err := ledger.Open(ctx, res.Storage, ledger.Options{
		Currency: cfg.ReportingCurrency,
		Logger:   logger.WithComponent(applog.ComponentLedger).Slog(),
	})
	if err != nil {
		res.Cleanup()
		return nil, nil, fmt.Errorf("open ledger: %w", err)
	}

	cleanup := func() error {
		return errors.Join(store.Close(), res.Cleanup())
	}
	return store, cleanup, nil
}

// ErrSignaled is the cancel cause of a context ended by SIGINT or SIGTERM.
var ErrSignaled = errors.New("shutdown signal received")

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM, with
// ErrSignaled as its cause. Calling stop cancels it without logging.
func ShutdownContext(parent context.Context, logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel(fmt.Errorf("%w: %s", ErrSignaled, sig))
		case <-ctx.Done():
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}
