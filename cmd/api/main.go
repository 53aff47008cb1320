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

	"github.com/noah-isme/presence-go-api/internal/config"
	"github.com/noah-isme/presence-go-api/internal/database"
	"github.com/noah-isme/presence-go-api/internal/handler"
	"github.com/noah-isme/presence-go-api/internal/middleware"
	"github.com/noah-isme/presence-go-api/internal/repository"
	"github.com/noah-isme/presence-go-api/internal/router"
	"github.com/noah-isme/presence-go-api/internal/service"
	cloud "github.com/noah-isme/presence-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid attendance timezone: %v", err)
	}
	schedule, err := service.NewDaySchedule(cfg.LateCutoff, location)
	if err != nil {
		log.Fatalf("invalid late cutoff: %v", err)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set; stats cache and notification fanout disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	var storage service.DocumentStorage
	cloudCfg := cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}
	if cloudCfg.Enabled() {
		store, err := cloud.New(cloudCfg, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
		storage = store
	} else {
		logger.Warn().Msg("cloudinary credentials not set; justification documents will be refused")
	}

	var delivery service.NotificationDelivery = service.NewLogNotificationDelivery(logger)
	if cfg.SMTPHost != "" {
		mailer, err := service.NewMailNotificationDelivery(service.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
		if err != nil {
			log.Fatalf("failed to configure smtp delivery: %v", err)
		}
		delivery = mailer
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	actorRepo := repository.NewActorRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	mealRepo := repository.NewMealScanRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activityService := service.NewActivityService(activityRepo, logger)
	notificationService := service.NewNotificationService(notificationRepo, service.NotificationOptions{
		Redis:       redisClient,
		NATS:        natsConn,
		ChannelBase: cfg.NotificationChannel,
		Actors:      actorRepo,
		Delivery:    delivery,
	}, validate, logger)
	scanFeed := service.NewScanFeed(natsConn, cfg.NotificationChannel, logger)

	attendanceService := service.NewAttendanceService(attendanceRepo, schedule, logger)
	checkInOutService := service.NewCheckInOutService(attendanceRepo, schedule, cfg.CheckoutMinGap, logger)
	mealService := service.NewMealService(mealRepo, schedule, logger)
	scanService := service.NewScanService(
		service.NewDirectoryResolver(actorRepo),
		attendanceService,
		checkInOutService,
		mealService,
		scanFeed,
		validate,
		logger,
	)
	justificationService := service.NewJustificationService(attendanceRepo, storage, notificationService, activityService, cfg.MaxDocumentMB, validate, logger)
	statsService := service.NewStatsService(attendanceRepo, redisClient, cfg.StatsCacheTTL, validate, logger)
	sweepService := service.NewSweepService(actorRepo, attendanceService, activityService, schedule, validate, logger)
	queryService := service.NewAttendanceQueryService(attendanceRepo, validate)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	notificationService.Start(runCtx)
	scanFeed.Start(runCtx)

	scanHandler := handler.NewScanHandler(scanService, scanFeed, logger)
	attendanceHandler := handler.NewAttendanceHandler(handler.AttendanceHandlerDeps{
		Records:        queryService,
		Stats:          statsService,
		Sweep:          sweepService,
		Justifications: justificationService,
		Activity:       activityService,
	}, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger, cfg.SSEKeepAlive)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    (cfg.MaxDocumentMB + 1) * 1024 * 1024,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(app, cfg, router.Dependencies{
		ScanHandler:         scanHandler,
		AttendanceHandler:   attendanceHandler,
		NotificationHandler: notificationHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	logger.Info().
		Str("address", cfg.HTTPAddress()).
		Str("timezone", location.String()).
		Str("late_cutoff", cfg.LateCutoff).
		Msg("attendance engine started")

	waitForShutdown(app, stopRun)
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
