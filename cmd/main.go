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

	"github.com/debatearena/debate-platform/config"
	"github.com/debatearena/debate-platform/db"
	"github.com/debatearena/debate-platform/debates"
	"github.com/debatearena/debate-platform/handlers"
	"github.com/debatearena/debate-platform/repositories"
	api "github.com/debatearena/debate-platform/routes"
	"github.com/debatearena/debate-platform/services"
	"github.com/debatearena/debate-platform/storage"
	_ "github.com/lib/pq"
)

func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := db.Migrate(startupCtx, dbConn); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("database schema ready")

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	debateRepo := repositories.NewPostgresDebateRepository(dbConn)
	topicRepo := repositories.NewPostgresTopicRepository(dbConn)

	if err := topicRepo.EnsureDefaults(startupCtx); err != nil {
		logger.Error("failed to seed debate topics", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("repositories initialized")

	// Архивация расшифровок в Cloudflare R2 — опциональна.
	var archiver debates.TranscriptArchiver
	if cfg.ArchiveEnabled() {
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
		archiver = services.NewTranscriptService(uploader, logger)
		logger.Info("transcript archiving enabled")
	} else {
		logger.Info("transcript archiving disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := debates.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация сервисов
	authService := services.NewAuthService(userRepo)
	ratingService := services.NewRatingService(userRepo)

	registry := debates.NewRegistry(wsHub, ratingService, debateRepo, archiver, logger, debates.Config{
		PrepDuration:    cfg.PrepDuration,
		TurnDuration:    cfg.TurnDuration,
		TurnsPerSide:    cfg.TurnsPerSide,
		DisconnectGrace: cfg.DisconnectGrace,
	})
	wsHub.OnDisconnect = registry.HandleDisconnect
	wsHub.OnReconnect = registry.HandleReconnect

	matchmaking := services.NewMatchmakingService(registry, topicRepo, wsHub, logger, services.MatchmakingConfig{
		BandInitial:  cfg.MMRBandInitial,
		BandStep:     cfg.MMRBandStep,
		BandInterval: cfg.MMRBandInterval,
	})
	logger.Info("services initialized")

	// Периодические проходы подбора
	matchmakingCtx, stopMatchmaking := context.WithCancel(context.Background())
	defer stopMatchmaking()
	go matchmaking.Run(matchmakingCtx, cfg.MatchmakingInterval)
	logger.Info("matchmaking scheduler started", slog.Duration("interval", cfg.MatchmakingInterval))

	// Инициализация обработчиков HTTP
	dispatcher := handlers.NewDispatcher(wsHub, authService, matchmaking, registry, debateRepo, cfg.JWTSecretKey, logger)
	wsHandler := handlers.NewWebSocketHandler(wsHub, dispatcher, logger)
	debateHandler := handlers.NewDebateHandler(debateRepo)
	router := api.InitRoutes(cfg, wsHandler, debateHandler)
	logger.Info("routes configured")

	// Настройка и запуск HTTP-сервера
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

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopMatchmaking()

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		logger.Info("shutting down server", slog.Duration("timeout", 15*time.Second))
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}
