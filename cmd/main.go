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

	"github.com/caulonghn/club-manager/config"
	"github.com/caulonghn/club-manager/db"
	"github.com/caulonghn/club-manager/handlers"
	"github.com/caulonghn/club-manager/live"
	"github.com/caulonghn/club-manager/payment"
	"github.com/caulonghn/club-manager/repositories"
	api "github.com/caulonghn/club-manager/routes"
	"github.com/caulonghn/club-manager/services"
	"github.com/caulonghn/club-manager/storage"
	"github.com/go-chi/chi/v5"
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

	// Хранилище аватарок (Cloudflare R2). Без него работаем, просто без аватарок.
	var uploader storage.FileUploader
	if cfg.R2AccountID != "" {
		uploader, err = storage.NewR2Uploader(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, avatar uploads disabled")
	}

	// Инициализация WebSocket Hub
	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("WebSocket Hub started")

	// Инициализация репозиториев
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	memberRepo := repositories.NewPostgresMemberRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	gameParticipantRepo := repositories.NewPostgresGameParticipantRepository(dbConn)
	eventRepo := repositories.NewPostgresPersonalEventRepository(dbConn)
	eventParticipantRepo := repositories.NewPostgresPersonalEventParticipantRepository(dbConn)
	logger.Info("Repositories initialized")

	// Инициализация сервисов
	qrConfig := payment.QRConfig{
		BankID:      cfg.BankID,
		AccountNo:   cfg.BankAccountNo,
		AccountName: cfg.BankAccountName,
		Template:    cfg.VietQRTemplate,
	}

	authService := services.NewAuthService(userRepo)
	memberService := services.NewMemberService(memberRepo, uploader, logger)
	gameService := services.NewGameService(dbConn, gameRepo, gameParticipantRepo, wsHub, logger)
	eventService := services.NewPersonalEventService(dbConn, eventRepo, eventParticipantRepo, wsHub, logger)
	balanceService := services.NewBalanceService(memberRepo, gameParticipantRepo, eventParticipantRepo, qrConfig)
	reminderService := services.NewReminderService(cfg, userRepo, balanceService, logger)
	logger.Info("Services initialized")

	// Инициализация обработчиков HTTP
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	adminHandler := handlers.NewAdminHandler(authService)
	memberHandler := handlers.NewMemberHandler(memberService)
	gameHandler := handlers.NewGameHandler(gameService)
	eventHandler := handlers.NewPersonalEventHandler(eventService)
	balanceHandler := handlers.NewBalanceHandler(balanceService, reminderService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, logger)
	logger.Info("HTTP handlers initialized")

	// Настройка маршрутизатора
	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		cfg.CORSAllowedOrigins,
		authHandler,
		adminHandler,
		memberHandler,
		gameHandler,
		eventHandler,
		balanceHandler,
		webSocketHandler,
	)
	logger.Info("Routes configured")

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
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
