package router

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"subscribe/internal/ai"
	"subscribe/internal/api/v1/handler"
	"subscribe/internal/cache"
	"subscribe/internal/config"
	"subscribe/internal/middleware"
	"subscribe/internal/notify"
	"subscribe/internal/pgmq"
	"subscribe/internal/pubsub"
	"subscribe/internal/repository"
	"subscribe/internal/service"
	"subscribe/internal/storage"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Closer releases the connections opened by New.
type Closer func()

func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, Closer, error) {
	ctx := context.Background()
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// 1. Resolve secrets missing from the environment
	if cfg.SecretsProjectID != "" {
		sm, err := service.NewSecretManagerService(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Secret Manager unavailable, using environment only")
		} else {
			service.ResolveSecrets(ctx, sm, cfg, logger)
			sm.Close()
		}
	}

	// 2. Open DB connection (connection pooling) and migrate
	db, err := repository.OpenDB(ctx, cfg.DBConnectionString, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { db.Close() })
	logger.Info().Msg("Database connection successful")

	if err := repository.Migrate(ctx, db); err != nil {
		closeAll()
		return nil, nil, err
	}

	// 3. Optional integrations
	var archive storage.EmailArchive
	if cfg.S3Bucket != "" {
		s3Client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("s3 client: %w", err)
		}
		archive = storage.NewS3EmailArchive(s3Client, cfg.S3Bucket)
	} else {
		logger.Info().Msg("S3_BUCKET not set, scanned emails are not archived")
	}

	var publisher pubsub.Publisher = pubsub.NoopPublisher{}
	if cfg.GCPProjectID != "" && cfg.PubSubDetectionTopic != "" {
		p, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		publisher = p
		closers = append(closers, func() { p.Close() })
	}

	categorizer, classifier := newStages(ctx, cfg, logger, &closers)

	notifier := notify.NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, logger)

	// 4. Initialize repositories & services & handlers
	validate := service.NewValidator()

	userRepo := repository.NewUserRepo(db)
	subRepo := repository.NewSubscriptionRepo(db)

	userSvc := service.NewUserService(userRepo, validate, cfg.FreeScanLimit, logger)
	subSvc := service.NewSubscriptionService(subRepo, categorizer, validate, logger)
	detectSvc := service.NewDetectionService(classifier, categorizer, subRepo, userRepo, service.DetectionOptions{
		Archive:       archive,
		Publisher:     publisher,
		Topic:         cfg.PubSubDetectionTopic,
		FreeScanLimit: cfg.FreeScanLimit,
	}, logger)
	reminderSvc := service.NewReminderService(subRepo, userRepo, notifier, pgmq.New(db), cfg.ReminderQueueName, logger)
	stripeSvc := service.NewStripeService(cfg, userRepo, logger)

	userHandler := handler.NewUserHandler(userSvc, logger)
	subHandler := handler.NewSubscriptionHandler(subSvc, userSvc, validate, logger)
	detectHandler := handler.NewDetectionHandler(detectSvc, userSvc, logger)
	reminderHandler := handler.NewReminderHandler(reminderSvc, logger)
	billingHandler := handler.NewBillingHandler(stripeSvc, validate, logger)

	// 5. Initialize middleware
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)

	// 6. Create ServeMux router
	apiV1Mux := http.NewServeMux()
	userHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	subHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	detectHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	reminderHandler.RegisterRoutes(apiV1Mux, authMiddleware)
	billingHandler.RegisterRoutes(apiV1Mux, authMiddleware)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", apiV1Mux))
	mux.HandleFunc("GET /healthz", healthz(db))

	// Redirect /api/* to /v1/* for backward compatibility
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/")
		http.Redirect(w, r, "/v1/"+rest, http.StatusMovedPermanently)
	})

	// 7. Apply CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), closeAll, nil
}

// newStages builds the language model stages. Without credentials the stages
// fail every call, which surfaces to clients as a classification failure.
func newStages(ctx context.Context, cfg *config.Config, logger zerolog.Logger, closers *[]func()) (ai.Categorizer, ai.Classifier) {
	gen, err := ai.NewGenerator(cfg.LLMProvider, cfg.LLMAPIKey(), cfg.LLMModel, time.Duration(cfg.LLMTimeoutSec)*time.Second)
	if err != nil {
		logger.Warn().Err(err).Str("env", cfg.LLMAPIKeyEnv()).Msg("Language model disabled")
		cause := err
		gen = ai.GeneratorFunc(func(context.Context, string) ([]byte, error) {
			return nil, fmt.Errorf("language model unavailable: %w", cause)
		})
	}
	categorizer := ai.NewCategorizer(gen)

	if cfg.RedisAddr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, categorization cache disabled")
		} else {
			*closers = append(*closers, func() { rdb.Close() })
			ttl := time.Duration(cfg.CategoryCacheTTLH) * time.Hour
			categorizer = ai.NewCachedCategorizer(categorizer, cache.NewCategoryCache(rdb), ttl, logger)
		}
	}
	return categorizer, ai.NewClassifier(gen)
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
