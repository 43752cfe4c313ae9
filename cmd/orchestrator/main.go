package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"subscribe/internal/config"
	"subscribe/internal/logger"
	"subscribe/internal/notify"
	"subscribe/internal/orchestrator/reminder"
	"subscribe/internal/pgmq"
	"subscribe/internal/repository"
	"subscribe/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: reminder|sweep")
	flag.Parse()

	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.SecretsProjectID != "" {
		sm, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Secret Manager unavailable, using environment only")
		} else {
			service.ResolveSecrets(ctx, sm, cfg, logger)
			sm.Close()
		}
	}

	// Initialize DB connection
	db, err := repository.OpenDB(ctx, cfg.DBConnectionString, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer db.Close()
	logger.Info().Msg("Database connection established")

	// Initialize PGMQ client
	pgmqClient := pgmq.New(db)
	logger.Info().Msg("PGMQ client initialized")

	subRepo := repository.NewSubscriptionRepo(db)
	userRepo := repository.NewUserRepo(db)
	notifier := notify.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, logger)
	reminderSvc := service.NewReminderService(subRepo, userRepo, notifier, pgmqClient, cfg.ReminderQueueName, logger)
	dlqSvc := service.NewDLQService(repository.NewDLQRepository(db))

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "reminder":
		runErr = reminder.Run(ctx, logger, pgmqClient, reminderSvc, dlqSvc, reminder.Options{
			Queue:         cfg.ReminderQueueName,
			VisibilitySec: cfg.ReminderVisibilitySec,
			PollSec:       cfg.ReminderPollTimeoutSec,
			MaxMessages:   cfg.ReminderPollMaxMsg,
			MaxAttempts:   cfg.ReminderMaxAttempts,
		})
	case "sweep":
		runErr = reminder.Sweep(ctx, logger, reminderSvc, time.Now())
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}
