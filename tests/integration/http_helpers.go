package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/config"
	"github.com/zia-mazari/go-auth/internal/database"
	"github.com/zia-mazari/go-auth/internal/handlers"
	"github.com/zia-mazari/go-auth/internal/repositories"
	"github.com/zia-mazari/go-auth/internal/routes"
	"github.com/zia-mazari/go-auth/internal/services"
	pkghttp "github.com/zia-mazari/go-auth/pkg/http"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

// SentEmail represents a captured email message
type SentEmail struct {
	To   string
	Code string
	Kind string
}

// MockEmailService captures sent emails for test assertions
type MockEmailService struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

func (m *MockEmailService) SendVerificationEmail(ctx context.Context, email, code string, expiryMinutes int) error {
	m.record(SentEmail{To: email, Code: code, Kind: "verification"})
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(ctx context.Context, email, code string, expiryMinutes int) error {
	m.record(SentEmail{To: email, Code: code, Kind: "password_reset"})
	return nil
}

func (m *MockEmailService) record(email SentEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, email)
}

// GetLastEmail returns the most recent email sent
func (m *MockEmailService) GetLastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentEmails) == 0 {
		return nil
	}
	return &m.SentEmails[len(m.SentEmails)-1]
}

// TestConfig returns the configuration the test server runs with
func TestConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:   "test-secret-32-characters-long-for-testing",
			TokenExpiry: 15 * time.Minute,
		},
		RateLimit: config.RateLimitConfig{
			MaxAttempts: 5,
			BlockDurations: []time.Duration{
				15 * time.Minute,
				30 * time.Minute,
				60 * time.Minute,
			},
			BlockDuration:   15 * time.Minute,
			MaxBlockCount:   2,
			CleanupInterval: 1 * time.Hour,
		},
		PasswordReset: config.PasswordResetConfig{
			MaxAttempts:          3,
			BlockDuration:        15 * time.Minute,
			MaxFailureAttempts:   5,
			FailureBlockDuration: 30 * time.Minute,
			MaxActiveTokens:      2,
			TokenExpiry:          15 * time.Minute,
		},
		Verification: config.VerificationConfig{
			CodeExpiry:  15 * time.Minute,
			MaxAttempts: 3,
		},
		Server: config.ServerConfig{
			Port: "0",
			Env:  "test",
		},
	}
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *MockEmailService
	Config       *config.Config
}

// NewTestServer initializes a complete HTTP server with real database + mocked email
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := TestConfig()

	userRepo := repositories.NewUserRepository(db)
	userDetailRepo := repositories.NewUserDetailRepository(db)
	rateLimitRepo := repositories.NewRateLimitRepository(db)
	resetTokenRepo := repositories.NewPasswordResetRepository(db)
	verificationRepo := repositories.NewEmailVerificationRepository(db)

	mockEmail := &MockEmailService{}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	auditLogger := pkglogger.NewAuditLogger(logger)

	loginLimiter := services.NewLoginRateLimiter(rateLimitRepo, cfg.RateLimit, logger)
	resetRequestLimiter := services.NewResetRequestLimiter(rateLimitRepo, cfg.PasswordReset, logger)
	resetFailureLimiter := services.NewResetFailureLimiter(rateLimitRepo, cfg.PasswordReset, logger)

	verificationService := services.NewEmailVerificationService(verificationRepo, userRepo, mockEmail, cfg.Verification, logger)
	authService := services.NewAuthService(userRepo, loginLimiter, verificationService, tokenManager, cfg.RateLimit.MaxBlockCount, logger, auditLogger)
	resetService := services.NewPasswordResetService(resetTokenRepo, userRepo, resetRequestLimiter, resetFailureLimiter, mockEmail, cfg.PasswordReset, logger, auditLogger)
	userService := services.NewUserService(userRepo, userDetailRepo, logger, auditLogger)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, resetService, verificationService, ipConfig)
	userHandler := handlers.NewUserHandler(userService)
	healthHandler := handlers.NewHealthHandler(db)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, userHandler, healthHandler, tokenManager)

	return &TestServer{
		Server:       httptest.NewServer(r),
		DB:           db,
		EmailService: mockEmail,
		Config:       cfg,
	}
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a bearer token
func (ts *TestServer) RequestWithAuth(method, path, token string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	return ts.Request(method, path, body, headers)
}

// ParseEnvelope parses the standard response envelope
func ParseEnvelope(resp *http.Response) (*pkghttp.Response, error) {
	defer resp.Body.Close()

	var envelope pkghttp.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}
