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

	_ "github.com/lib/pq"

	"github.com/sportsfinder/sports-finder/cache"
	"github.com/sportsfinder/sports-finder/chat"
	"github.com/sportsfinder/sports-finder/config"
	"github.com/sportsfinder/sports-finder/db"
	"github.com/sportsfinder/sports-finder/geo"
	"github.com/sportsfinder/sports-finder/handlers"
	"github.com/sportsfinder/sports-finder/repositories"
	"github.com/sportsfinder/sports-finder/routes"
	"github.com/sportsfinder/sports-finder/services"
	"github.com/sportsfinder/sports-finder/storage"
)

// dispatchInterval is how often the notification outbox is drained.
const dispatchInterval = 5 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

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

	var appCache cache.Cache
	if cfg.RedisURL != "" {
		redisClient, err := cache.Connect(cfg.RedisURL, 5*time.Second)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		appCache = cache.New(redisClient, cache.DefaultTTL)
		logger.Info("redis cache connected")
	} else {
		logger.Warn("REDIS_URL not set, running without cache")
	}

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
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
	} else {
		logger.Warn("object storage not configured, avatar and logo uploads disabled")
	}

	geocoder := geo.NewNominatim(cfg.GeocoderBaseURL)

	hub := chat.NewHub(logger)
	go hub.Run()
	logger.Info("chat hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	inviteRepo := repositories.NewPostgresInviteRepository(dbConn)
	gameRepo := repositories.NewPostgresGameRepository(dbConn)
	notificationRepo := repositories.NewPostgresNotificationRepository(dbConn)

	authService := services.NewAuthService(userRepo, geocoder, appCache, logger)
	userService := services.NewUserService(dbConn, userRepo, teamRepo, inviteRepo, gameRepo, geocoder, uploader, appCache, logger)
	teamService := services.NewTeamService(dbConn, teamRepo, userRepo, inviteRepo, gameRepo, notificationRepo, geocoder, uploader, appCache, logger)
	inviteService := services.NewInviteService(dbConn, inviteRepo, teamRepo, userRepo, notificationRepo, appCache, logger)
	gameService := services.NewGameService(gameRepo, teamRepo, geocoder, appCache, logger)
	notificationService := services.NewNotificationService(notificationRepo, hub, logger)

	dispatcherCtx, stopDispatcher := context.WithCancel(context.Background())
	defer stopDispatcher()
	go notificationService.Run(dispatcherCtx, dispatchInterval)
	logger.Info("notification dispatcher started", slog.Duration("interval", dispatchInterval))

	router := routes.InitRoutes(routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, cfg.JWTSecretKey),
		Users:     handlers.NewUserHandler(userService),
		Teams:     handlers.NewTeamHandler(teamService),
		Invites:   handlers.NewInviteHandler(inviteService),
		Games:     handlers.NewGameHandler(gameService),
		WebSocket: handlers.NewWebSocketHandler(hub, userService, teamService, gameService, logger),
	}, cfg.JWTSecretKey, cfg.AllowedOrigins)

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
		logger.Info("server stopped")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		stopDispatcher()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}
		logger.Info("server stopped gracefully")
	}
}
