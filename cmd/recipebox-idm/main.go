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

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/recipebox-idm/idm"
	"github.com/tendant/recipebox-idm/internal/config"
	"github.com/tendant/recipebox-idm/internal/http/features/google"
	"github.com/tendant/recipebox-idm/internal/metrics"
	"github.com/tendant/recipebox-idm/internal/notification"
	"github.com/tendant/recipebox-idm/pkg/auth"
	"github.com/tendant/recipebox-idm/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Connect to database
	db, err := repository.NewDB(ctx, repository.DBConfig{
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		Name:            cfg.DBName,
		SSLMode:         cfg.DBSSLMode,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("connected to database")

	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Signup codes go out by SMTP when configured, otherwise to the log
	emailCfg := notification.EmailConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
	}
	var notifier auth.Notifier
	if emailCfg.Configured() {
		notifier = notification.NewEmailService(emailCfg)
		logger.Info("email service enabled")
	} else {
		notifier = notification.NewLogSender(logger)
		logger.Warn("SMTP not configured, signup codes will be logged")
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.NewDefault()
	}

	idmCfg := idm.Config{
		DB:                    db,
		JWTSecret:             cfg.JWTSecret,
		JWTIssuer:             cfg.JWTIssuer,
		SessionTTL:            cfg.SessionTTL,
		AppName:               cfg.AppName,
		OTPTTL:                cfg.OTPTTL,
		StrictEmailValidation: cfg.StrictEmailValidation,
		BlockDisposableEmail:  cfg.BlockDisposableEmail,
		HashMaxConcurrent:     cfg.HashMaxConcurrent,
		FrontendURL:           cfg.FrontendURL,
		Notifier:              notifier,
		Metrics:               m,
		PasswordPolicy:        cfg.PasswordPolicy,
		RateLimit:             cfg.RateLimit,
		SecurityHeaders:       cfg.SecurityHeaders,
		Validation:            cfg.Validation,
		CORS:                  cfg.CORS,
		Logger:                logger,
	}

	// Initialize Google OAuth if configured
	if cfg.HasGoogleOAuth() {
		idmCfg.Google = &idm.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURI:  cfg.GoogleRedirectURI,
			StateTTL:     cfg.OAuthStateTTL,
		}
		if cfg.Redis.Enabled() {
			client := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer client.Close()
			if err := client.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("connect to redis: %w", err)
			}
			idmCfg.OAuthStates = google.NewRedisStateStore(client, cfg.OAuthStateTTL)
			logger.Info("Google OAuth: using redis state storage")
		}
		logger.Info("Google OAuth enabled")
	}

	ids, err := idm.New(ctx, idmCfg)
	if err != nil {
		return err
	}
	defer ids.Close()

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      ids.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
