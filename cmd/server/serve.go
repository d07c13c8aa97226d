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

	"github.com/rs/zerolog"

	"github.com/JeanGrijp/request-throttle/internal/config"
	"github.com/JeanGrijp/request-throttle/internal/core/ports"
	"github.com/JeanGrijp/request-throttle/internal/core/services"
	"github.com/JeanGrijp/request-throttle/internal/logging"
	"github.com/JeanGrijp/request-throttle/internal/telemetry"
)

func runServe(parent context.Context, opts config.LoadOptions) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, warnings, err := config.Load(opts)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	for _, w := range warnings {
		logger.Warn().Str("setting", w.Key).Str("value", w.Value).Str("fallback", w.Fallback).Msg("invalid setting, using default")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.SetupTracing(ctx, cfg.Tracing, Version, logger)
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer shutdownTracing(tracerProvider, cfg.ShutdownTimeout(), logger)

	rule := cfg.ThrottleRule()

	// Throttle desabilitado nunca toca o store, então nenhum é aberto.
	var store ports.CounterStore
	if rule.Enabled() {
		var closeFn func()
		store, closeFn, err = initStorage(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to init storage: %w", err)
		}
		defer closeFn()
	}

	throttle, err := services.NewThrottleService(store, services.Config{
		Throttle:       rule,
		KeyPrefix:      cfg.Throttle.KeyPrefix,
		TracerProvider: tracerProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to create throttle: %w", err)
	}

	if throttle.IsEnabled() {
		logger.Info().
			Int("max_requests", rule.MaxRequests).
			Int("period_seconds", rule.PeriodSeconds).
			Str("storage", cfg.Storage.Type).
			Bool("fail_open", cfg.Throttle.FailOpen).
			Str("tracing_endpoint", cfg.Tracing.Endpoint).
			Msg("request throttling enabled")
	} else {
		logger.Info().Msg("request throttling disabled")
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: newHandler(cfg, throttle, logger),
	}

	return serve(ctx, srv, cfg, logger)
}

func serve(ctx context.Context, srv *http.Server, cfg config.Config, logger zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("router", cfg.Server.Router).Msg("listening")
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

type tracerShutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTracing(provider tracerShutdowner, timeout time.Duration, logger zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := provider.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("failed to flush traces")
	}
}
