package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/playforge/esports-platform/config"
	"github.com/playforge/esports-platform/db"
	"github.com/playforge/esports-platform/events"
	"github.com/playforge/esports-platform/handlers"
	"github.com/playforge/esports-platform/notifications"
	"github.com/playforge/esports-platform/repositories"
	api "github.com/playforge/esports-platform/routes"
	"github.com/playforge/esports-platform/services"
	"github.com/playforge/esports-platform/storage"
)

const (
	statusSweepInterval    = 30 * time.Second
	notifyDispatchInterval = 15 * time.Second
	serverStatusCacheTTL   = 10 * time.Second
	serverStatusCacheSize  = 1024
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	clock := clockwork.NewRealClock()

	// Репозитории
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	registrationRepo := repositories.NewPostgresRegistrationRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)

	// Подписчики событий жизненного цикла
	hub := events.NewHub(logger)
	go hub.Run()

	emailSender := notifications.NewEmailSender(notifications.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})
	dispatcher := notifications.NewDispatcher(notificationRepo, emailSender, clock, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go dispatcher.RunWorker(workerCtx, notifyDispatchInterval)

	// Сервисы
	engine := services.NewStatusEngine(tournamentRepo, clock, logger)
	counter := services.NewCounterService(registrationRepo, tournamentRepo, logger)
	groups := services.NewGroupService(registrationRepo, tournamentRepo, logger)
	serverStatusCache := services.NewServerStatusCache(serverStatusCacheTTL, serverStatusCacheSize, clock)
	tournamentService := services.NewTournamentService(tournamentRepo, registrationRepo, engine, serverStatusCache, clock, logger)
	registrationService := services.NewRegistrationService(
		registrationRepo,
		engine,
		counter,
		groups,
		uploader,
		services.FanoutPublisher{dispatcher, hub},
		clock,
		logger,
	)
	logger.Info("services initialized")

	// Планировщик периодического обхода статусов
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(statusSweepInterval),
		gocron.NewTask(func() {
			updated, err := engine.SweepStatuses(context.Background())
			if err != nil {
				logger.Error("status sweep failed", slog.Any("error", err))
				return
			}
			if updated > 0 {
				logger.Info("status sweep complete", slog.Int("updated", updated))
			}
		}),
	)
	if err != nil {
		logger.Error("failed to schedule status sweep", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()
	logger.Info("status sweep scheduler started", slog.Duration("interval", statusSweepInterval))

	// HTTP
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, engine, groups)
	registrationHandler := handlers.NewRegistrationHandler(registrationService, groups)
	webSocketHandler := handlers.NewWebSocketHandler(hub)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey, tournamentHandler, registrationHandler, webSocketHandler)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
	}
	logger.Info("application exited")
}
