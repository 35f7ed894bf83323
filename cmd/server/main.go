/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tally server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load TALLY_* configuration and build the logger
  2. Open the SQLite event log
  3. Build the engine with a system clock in the configured zone
  4. Optionally seed demo scenarios
  5. Start the overdue-bill scheduler
  6. Start the HTTP server

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close the database

EXAMPLES:
  # Throwaway log with demo data
  TALLY_DB_PATH=":memory:" TALLY_SEED_DEMO=true ./server

  # Human-readable logs, Paris calendar days
  TALLY_LOG_FORMAT=console TALLY_TIMEZONE=Europe/Paris ./server

SEE ALSO:
  - config/config.go: Environment variables
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/tally/api"
	"github.com/warp/tally/config"
	"github.com/warp/tally/engine"
	"github.com/warp/tally/generic"
	"github.com/warp/tally/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}
	logger := cfg.Logger(os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := engine.New(store, generic.SystemClock{Loc: cfg.Location()}, logger)

	if cfg.SeedDemo {
		if err := engine.Seed(context.Background(), svc, ""); err != nil {
			logger.Warn().Err(err).Msg("failed to seed demo scenarios")
		}
	}

	scheduler := api.NewDueScheduler(svc, logger, cfg.DueCheck)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(svc, logger)
	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Str("db", cfg.DBPath).
			Str("timezone", cfg.Location().String()).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
