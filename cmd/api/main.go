package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/stde-go-api/internal/config"
	"github.com/noah-isme/stde-go-api/internal/database"
	"github.com/noah-isme/stde-go-api/internal/handler"
	"github.com/noah-isme/stde-go-api/internal/middleware"
	"github.com/noah-isme/stde-go-api/internal/observability"
	"github.com/noah-isme/stde-go-api/internal/repository"
	"github.com/noah-isme/stde-go-api/internal/router"
	"github.com/noah-isme/stde-go-api/internal/service"
	"github.com/noah-isme/stde-go-api/pkg/ai"
	"github.com/noah-isme/stde-go-api/pkg/extract"
	"github.com/noah-isme/stde-go-api/pkg/mailer"
	"github.com/noah-isme/stde-go-api/pkg/storage"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()
	if cfg.AppEnv == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	var redisClient *redis.Client
	if cfg.QuotaBackend == config.QuotaBackendRedis || cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, evaluation events disabled")
		} else {
			defer natsConn.Drain()
		}
	}

	store, err := newStorage(cfg, logger)
	if err != nil {
		log.Fatalf("failed to configure storage: %v", err)
	}

	gateway, err := ai.NewOpenAIGateway(ai.OpenAIConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.AIModel,
		Timeout: cfg.Evaluation.AITimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("failed to configure ai gateway: %v", err)
	}

	var mail mailer.Mailer = mailer.NewLog(logger)
	if cfg.SendGridAPIKey != "" {
		sendGrid, err := mailer.NewSendGrid(mailer.SendGridConfig{
			APIKey:  cfg.SendGridAPIKey,
			AppName: cfg.AppName,
			From:    cfg.MailFrom,
		})
		if err != nil {
			log.Fatalf("failed to configure mailer: %v", err)
		}
		mail = sendGrid
	}

	reporter := observability.NewRollbarReporter(cfg.RollbarToken, cfg.AppEnv, version, logger)
	if closer, ok := reporter.(interface{ Close() }); ok {
		defer closer.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)
	classroomRepo := repository.NewClassroomRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	var usage service.UsageStore = userRepo
	if cfg.QuotaBackend == config.QuotaBackendRedis {
		usage = service.NewRedisUsageStore(redisClient)
	}

	activityService := service.NewActivityService(activityRepo, validate, logger)
	classroomService := service.NewClassroomService(classroomRepo, validate, logger)
	quotaTracker := service.NewQuotaTracker(usage, cfg.Evaluation.HourlyLimit, logger)
	notifier := service.NewEvaluationNotifier(natsConn, mail, userRepo, logger)
	documentService := service.NewDocumentService(documentRepo, evaluationRepo, classroomService, store, activityService, cfg.UploadMaxSizeMB, logger)
	evaluationService := service.NewEvaluationService(service.EvaluationDependencies{
		Documents:   documentRepo,
		Evaluations: evaluationRepo,
		Classrooms:  classroomService,
		Quota:       quotaTracker,
		Storage:     store,
		Extractor:   extract.New(int64(cfg.UploadMaxSizeMB) * 1024 * 1024),
		AI:          gateway,
		Activity:    activityService,
		Notifier:    notifier,
		Reporter:    reporter,
	}, service.EvaluationConfig{
		EnableTruncation:     cfg.Evaluation.EnableTruncation,
		TruncationLimit:      cfg.Evaluation.TruncationLimit,
		ClassifyFailOpen:     cfg.Evaluation.ClassifyFailOpen,
		ProcessingStaleAfter: cfg.Evaluation.ProcessingStaleAfter,
	}, logger)
	overrideService := service.NewOverrideService(documentRepo, evaluationRepo, classroomService, activityService, notifier, logger)

	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.UploadMaxSizeMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: handler.NewEvaluationHandler(evaluationService, overrideService, quotaTracker, validate, logger),
		DocumentHandler:   handler.NewDocumentHandler(documentService, logger),
		ClassroomHandler:  handler.NewClassroomHandler(classroomService, documentService, logger),
		ActivityHandler:   handler.NewActivityHandler(activityService, logger),
		HealthProbes:      probes,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().Str("address", cfg.HTTPAddress()).Str("storage", cfg.StorageDriver).Str("quota", cfg.QuotaBackend).Msg("server started")

	waitForShutdown(app, logger)
}

func newStorage(cfg config.Config, logger zerolog.Logger) (storage.Storage, error) {
	if cfg.StorageDriver == config.StorageDriverCloudinary {
		store, err := storage.NewCloudinary(storage.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	}

	store, err := storage.NewLocal(cfg.StorageLocalRoot, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
