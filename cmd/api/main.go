package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/background"
	"github.com/zia-mazari/go-auth/internal/config"
	"github.com/zia-mazari/go-auth/internal/database"
	"github.com/zia-mazari/go-auth/internal/handlers"
	"github.com/zia-mazari/go-auth/internal/middleware"
	"github.com/zia-mazari/go-auth/internal/repositories"
	"github.com/zia-mazari/go-auth/internal/routes"
	"github.com/zia-mazari/go-auth/internal/services"
	pkghttp "github.com/zia-mazari/go-auth/pkg/http"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	userDetailRepo := repositories.NewUserDetailRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)
	resetTokenRepo := repositories.NewPasswordResetRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)

	// Token manager and audit logging
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	// Rate limiters: progressive for login, flat for the reset flow
	loginLimiter := services.NewLoginRateLimiter(rateLimitRepo, cfg.RateLimit, logger)
	resetRequestLimiter := services.NewResetRequestLimiter(rateLimitRepo, cfg.PasswordReset, logger)
	resetFailureLimiter := services.NewResetFailureLimiter(rateLimitRepo, cfg.PasswordReset, logger)

	// AWS SES email delivery
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.AppName,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Services
	verificationService := services.NewEmailVerificationService(verificationRepo, userRepo, emailService, cfg.Verification, logger)
	authService := services.NewAuthService(userRepo, loginLimiter, verificationService, tokenManager, cfg.RateLimit.MaxBlockCount, logger, auditLogger)
	resetService := services.NewPasswordResetService(resetTokenRepo, userRepo, resetRequestLimiter, resetFailureLimiter, emailService, cfg.PasswordReset, logger, auditLogger)
	userService := services.NewUserService(userRepo, userDetailRepo, logger, auditLogger)

	// Handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, resetService, verificationService, ipConfig)
	userHandler := handlers.NewUserHandler(userService)
	healthHandler := handlers.NewHealthHandler(db)

	// Background cleanup of expired tokens, codes and stale counters
	cleanupManager := background.NewCleanupManager(
		resetTokenRepo,
		verificationRepo,
		rateLimitRepo,
		24*time.Hour,
		cfg.RateLimit.CleanupInterval,
		logger,
	)

	// Router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig(nil)))
	router.Use(middleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, userHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
