package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"subscribe/internal/api/v1/router"
	"subscribe/internal/config"
	"subscribe/internal/logger"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// @title SubScribe API
// @version 1.0
// @description Subscription tracking with email detection, reminders and premium billing.
// @host localhost:8080
// @BasePath /v1
// @Schemes http https

const shutdownGrace = 10 * time.Second

func main() {
	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using process environment")
	}

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("API server stopped")
	}
	log.Info().Msg("Server shut down gracefully")
}

func run(log zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	handler, closeAll, err := router.New(cfg, log)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}
	defer closeAll()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second, // detection waits on the language model
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Environment).Msg("🚀 Server starting")
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
