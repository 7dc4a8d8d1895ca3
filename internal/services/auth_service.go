package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/models"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

// UserRepository defines the interface for user persistence operations
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	MarkVerified(ctx context.Context, id string) error
}

// AuthService sequences rate-limit checks, credential verification and token
// issuance for login, and handles registration.
type AuthService struct {
	users         UserRepository
	limiter       *RateLimiter
	verification  *EmailVerificationService
	tm            *auth.TokenManager
	maxBlockCount int
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(users UserRepository, limiter *RateLimiter, verification *EmailVerificationService, tm *auth.TokenManager, maxBlockCount int, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *AuthService {
	return &AuthService{
		users:         users,
		limiter:       limiter,
		verification:  verification,
		tm:            tm,
		maxBlockCount: maxBlockCount,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// AuthResponse represents the response from a successful login
type AuthResponse struct {
	Token string        `json:"token"`
	User  *UserResponse `json:"user"`
}

// Login authenticates a user and returns a signed token.
//
// The ordering matters. Repeat offenders (block count at or above the
// ceiling) are rejected before any credential store access, so no bcrypt work
// is spent on them. For everyone else credentials are always verified, even
// during an active block: correct credentials while blocked reset the attempt
// counter but never grant a token until the block lapses.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*AuthResponse, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, models.ErrUnauthorized
	}

	decision := s.limiter.IsBlocked(ctx, clientIP, email)

	if decision.Blocked && decision.BlockCount >= s.maxBlockCount {
		s.limiter.RecordBlockedAttempt(ctx, clientIP, email)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			ClientIP:      clientIP,
			FailureReason: "repeat_offender",
			Success:       false,
		})
		return nil, blockedError(decision)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, s.recordLoginFailure(ctx, clientIP, email, decision)
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.recordLoginFailure(ctx, clientIP, email, decision)
	}

	if decision.Blocked {
		// Identity proven, but the block window still applies.
		s.limiter.ResetAttemptCount(ctx, clientIP, email)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_blocked",
			UserID:        user.ID,
			ClientIP:      clientIP,
			FailureReason: "active_block",
			Success:       false,
		})
		return nil, blockedError(decision)
	}

	token, err := s.tm.Generate(user.ID, user.Username, user.Email)
	if err != nil {
		s.logger.Error("failed to generate token", slog.String("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.limiter.Clear(ctx, clientIP, email)

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		ClientIP:  clientIP,
		Success:   true,
	})

	return &AuthResponse{
		Token: token,
		User:  userModelToResponse(user),
	}, nil
}

// recordLoginFailure applies block-aware failure recording. A failure during
// an active block counts toward the escalation ceiling; otherwise it counts
// normally and may itself trigger a block.
func (s *AuthService) recordLoginFailure(ctx context.Context, clientIP, email string, decision *models.BlockDecision) error {
	if decision.Blocked {
		s.limiter.RecordBlockedAttempt(ctx, clientIP, email)
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			ClientIP:      clientIP,
			FailureReason: "active_block",
			Success:       false,
		})
		return blockedError(decision)
	}

	result := s.limiter.RecordFailedAttempt(ctx, clientIP, email)

	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		ClientIP:      clientIP,
		FailureReason: "invalid_credentials",
		Success:       false,
	})

	if result.Blocked {
		return blockedError(result)
	}

	return models.ErrUnauthorized
}

// Register creates a new account and kicks off email verification.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*UserResponse, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" {
		return nil, models.ErrBadRequest
	}

	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.logger.Info("registration failed: email already registered")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		s.logger.Info("registration failed: username taken")
		return nil, models.ErrConflict
	} else if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check username availability", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.verification.RequestVerification(ctx, created.ID); err != nil {
		s.logger.Error("failed to start email verification",
			slog.String("user_id", created.ID), slog.Any("error", err))
	}

	s.logger.Info("user registered", slog.String("user_id", created.ID))
	s.auditLogger.LogAccountAction("user_registered", created.ID, "", nil)

	return userModelToResponse(created), nil
}

// blockedError converts a blocked decision into the typed error handlers map
// to a 429 response.
func blockedError(decision *models.BlockDecision) *models.BlockedError {
	return &models.BlockedError{
		Message:      decision.Message,
		BlockedUntil: decision.BlockedUntil,
		Duration:     decision.Duration,
	}
}

// userModelToResponse converts a user model to its response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		IsVerified: user.IsVerified,
		CreatedAt:  user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  user.UpdatedAt.Format(time.RFC3339),
	}
}
