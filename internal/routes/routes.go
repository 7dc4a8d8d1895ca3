package routes

import (
	"github.com/go-chi/chi/v5"
	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/handlers"
	"github.com/zia-mazari/go-auth/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *auth.TokenManager,
) {
	rateLimitConfig := middleware.DefaultAuthRateLimit()
	throttled := middleware.RateLimitByIP(rateLimitConfig)

	router.Get("/health", healthHandler.Check)

	// Public routes - no authentication required
	router.With(throttled).Post("/auth/register", authHandler.Register)
	router.With(throttled).Post("/auth/login", authHandler.Login)
	router.With(throttled).Post("/auth/password-reset/request", authHandler.RequestPasswordReset)
	router.With(throttled).Post("/auth/password-reset/confirm", authHandler.ConfirmPasswordReset)
	router.With(throttled).Post("/auth/password-reset/validate", authHandler.ValidateResetCode)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(tokenManager.Middleware)

		r.Post("/auth/verify-email/request", authHandler.RequestEmailVerification)
		r.Post("/auth/verify-email/confirm", authHandler.ConfirmEmailVerification)

		r.Get("/users/me/profile", userHandler.GetProfile)
		r.Put("/users/me/profile", userHandler.UpdateProfile)
		r.Put("/users/me/password", userHandler.UpdatePassword)
	})
}
