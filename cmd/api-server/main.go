package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/hackgods/provider-availability-scheduling/internal/api"
	"github.com/hackgods/provider-availability-scheduling/internal/app"
	"github.com/hackgods/provider-availability-scheduling/internal/config"
	"github.com/hackgods/provider-availability-scheduling/internal/metrics"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load error")
	}

	logger := config.NewLogger(cfg, "api-server")
	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("api-server failed")
	}
	logger.Info().Msg("api-server stopped")
}

func run(cfg config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("storage", cfg.Storage).
		Str("lock_backend", cfg.LockBackend).
		Int("slot_granularity", cfg.Grid.GranularityMinutes).
		Str("day_toggle_policy", cfg.DayTogglePolicy).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing backends")
		}
	}()

	if cfg.Storage == "memory" {
		if err := seedDemo(rootCtx, a, 3, 10, logger); err != nil {
			return err
		}
	}

	metrics.Register()

	var limiter *rate.Limiter
	if cfg.ReserveRateRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ReserveRateRPS), cfg.ReserveRateBurst)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Appointments:   a.Appointments,
			Availability:   a.Store,
			Records:        a.Records,
			PgPool:         a.Pool,
			Redis:          a.Redis,
			Logger:         logger,
			ReserveLimiter: limiter,
			Env:            cfg.Env,
			Version:        version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	return serveErr
}
