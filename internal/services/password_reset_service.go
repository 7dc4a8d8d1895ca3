package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zia-mazari/go-auth/internal/config"
	"github.com/zia-mazari/go-auth/internal/models"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

// PasswordResetTokenRepository defines the persistence operations for the
// bounded reset-code pool.
type PasswordResetTokenRepository interface {
	Create(ctx context.Context, userID, email, code string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetActiveByCode(ctx context.Context, code string) (*models.PasswordResetToken, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string) error
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpiredByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

const (
	resetRequestedMessage = "If the email address is registered, a password reset code has been sent."
	resetDoneMessage      = "Password has been reset successfully."
)

// ResetTokenInfo reports the validity of a reset code without consuming it.
type ResetTokenInfo struct {
	Valid bool   `json:"valid"`
	Email string `json:"email"`
}

// PasswordResetService manages reset-code issuance and consumption under two
// independent limiters: one bounding how often codes may be requested, one
// bounding wrong-code submissions. Responses never reveal whether an email
// address is registered.
type PasswordResetService struct {
	tokens         PasswordResetTokenRepository
	users          UserRepository
	requestLimiter *RateLimiter
	failureLimiter *RateLimiter
	email          EmailService
	config         config.PasswordResetConfig
	logger         *slog.Logger
	auditLogger    *pkglogger.AuditLogger
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(tokens PasswordResetTokenRepository, users UserRepository, requestLimiter, failureLimiter *RateLimiter, email EmailService, cfg config.PasswordResetConfig, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *PasswordResetService {
	return &PasswordResetService{
		tokens:         tokens,
		users:          users,
		requestLimiter: requestLimiter,
		failureLimiter: failureLimiter,
		email:          email,
		config:         cfg,
		logger:         logger,
		auditLogger:    auditLogger,
	}
}

// RequestReset issues a fresh reset code for an account. The same generic
// message comes back whether or not the email is registered, and every
// request counts against the issuance limiter either way.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, clientIP string) (string, error) {
	decision := s.requestLimiter.IsBlocked(ctx, clientIP, email)
	if decision.Blocked {
		return "", blockedError(decision)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.requestLimiter.RecordFailedAttempt(ctx, clientIP, email)
			return resetRequestedMessage, nil
		}
		s.logger.Error("failed to get user for password reset", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.tokens.DeleteExpiredByUser(ctx, user.ID); err != nil {
		s.logger.Error("failed to purge expired reset tokens",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	if err := s.evictOldestTokens(ctx, user.ID); err != nil {
		return "", models.ErrInternalServer
	}

	code, err := s.createToken(ctx, user)
	if err != nil {
		return "", models.ErrInternalServer
	}

	// Delivery failures are swallowed so the error channel cannot leak
	// whether the account exists.
	expiryMinutes := int(s.config.TokenExpiry.Minutes())
	if err := s.email.SendPasswordResetEmail(ctx, user.Email, code, expiryMinutes); err != nil {
		s.logger.Error("failed to send password reset email",
			slog.String("user_id", user.ID), slog.Any("error", err))
	}

	s.requestLimiter.RecordFailedAttempt(ctx, clientIP, email)

	s.logger.Info("password reset code issued", slog.String("user_id", user.ID))
	return resetRequestedMessage, nil
}

// ResetPassword consumes a reset code and sets a new password. A successful
// reset destroys every outstanding code for the account and wipes all its
// rate-limit counters.
func (s *PasswordResetService) ResetPassword(ctx context.Context, code, newPassword, clientIP string) (string, error) {
	if _, err := s.tokens.DeleteExpired(ctx); err != nil {
		s.logger.Error("failed to purge expired reset tokens", slog.Any("error", err))
	}

	token, err := s.tokens.GetActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The email is unknown here, so failures against bogus codes
			// are tracked per client IP alone.
			return "", s.recordResetFailure(ctx, clientIP, "")
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	decision := s.failureLimiter.IsBlocked(ctx, clientIP, token.Email)
	if decision.Blocked {
		return "", blockedError(decision)
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return "", err
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, token.UserID, hashedPassword); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", token.UserID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.tokens.MarkUsed(ctx, token.ID); err != nil {
		s.logger.Error("failed to mark reset token used", slog.Any("error", err))
	}

	// A successful reset invalidates every other outstanding code too.
	if err := s.tokens.DeleteByUser(ctx, token.UserID); err != nil {
		s.logger.Error("failed to delete outstanding reset tokens",
			slog.String("user_id", token.UserID), slog.Any("error", err))
	}

	s.failureLimiter.ClearIdentity(ctx, token.Email)

	s.auditLogger.LogPasswordChange(token.UserID, clientIP, true)
	s.logger.Info("password reset completed", slog.String("user_id", token.UserID))

	return resetDoneMessage, nil
}

// ValidateResetToken reports whether a code is currently redeemable without
// consuming it or touching any counters.
func (s *PasswordResetService) ValidateResetToken(ctx context.Context, code string) (*ResetTokenInfo, error) {
	if _, err := s.tokens.DeleteExpired(ctx); err != nil {
		s.logger.Error("failed to purge expired reset tokens", slog.Any("error", err))
	}

	token, err := s.tokens.GetActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidResetCode
		}
		s.logger.Error("failed to look up reset token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &ResetTokenInfo{Valid: true, Email: token.Email}, nil
}

// recordResetFailure counts a wrong-code submission, honoring an existing
// block first.
func (s *PasswordResetService) recordResetFailure(ctx context.Context, clientIP, identity string) error {
	decision := s.failureLimiter.IsBlocked(ctx, clientIP, identity)
	if decision.Blocked {
		return blockedError(decision)
	}

	result := s.failureLimiter.RecordFailedAttempt(ctx, clientIP, identity)
	if result.Blocked {
		return blockedError(result)
	}

	return models.ErrInvalidResetCode
}

// evictOldestTokens enforces the bounded pool: before a new code is issued,
// the oldest active codes are purged so at most MaxActiveTokens remain after
// insertion.
func (s *PasswordResetService) evictOldestTokens(ctx context.Context, userID string) error {
	active, err := s.tokens.ListActiveByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list active reset tokens",
			slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	excess := len(active) - (s.config.MaxActiveTokens - 1)
	if excess <= 0 {
		return nil
	}

	ids := make([]string, 0, excess)
	for _, token := range active[:excess] {
		ids = append(ids, token.ID)
	}

	if err := s.tokens.DeleteByIDs(ctx, ids); err != nil {
		s.logger.Error("failed to evict oldest reset tokens",
			slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	return nil
}

// createToken generates a unique 6-digit code, retrying on the rare
// collision with an existing one.
func (s *PasswordResetService) createToken(ctx context.Context, user *models.User) (string, error) {
	expiresAt := time.Now().Add(s.config.TokenExpiry)

	for attempt := 0; attempt < 3; attempt++ {
		code, err := pkgauth.GenerateNumericCode(6)
		if err != nil {
			s.logger.Error("failed to generate reset code", slog.Any("error", err))
			return "", err
		}

		if _, err := s.tokens.Create(ctx, user.ID, user.Email, code, expiresAt); err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			s.logger.Error("failed to store reset token",
				slog.String("user_id", user.ID), slog.Any("error", err))
			return "", err
		}

		return code, nil
	}

	s.logger.Error("failed to generate unique reset code", slog.String("user_id", user.ID))
	return "", models.ErrInternalServer
}
