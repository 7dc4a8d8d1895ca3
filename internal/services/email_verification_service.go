package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zia-mazari/go-auth/internal/config"
	"github.com/zia-mazari/go-auth/internal/models"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
)

// EmailVerificationRepository defines the persistence operations for
// verification codes.
type EmailVerificationRepository interface {
	Create(ctx context.Context, userID, code string, expiresAt time.Time) (*models.EmailVerification, error)
	GetPendingByUser(ctx context.Context, userID string) (*models.EmailVerification, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// VerificationResult is the outcome of a code submission.
type VerificationResult struct {
	Success bool
	Message string
}

// EmailVerificationService manages the single outstanding verification code
// per account. Requesting a new code destroys any previous one, and a code is
// destroyed after success, attempt exhaustion, or expiry.
type EmailVerificationService struct {
	repo   EmailVerificationRepository
	users  UserRepository
	email  EmailService
	config config.VerificationConfig
	logger *slog.Logger
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(repo EmailVerificationRepository, users UserRepository, email EmailService, cfg config.VerificationConfig, logger *slog.Logger) *EmailVerificationService {
	return &EmailVerificationService{
		repo:   repo,
		users:  users,
		email:  email,
		config: cfg,
		logger: logger,
	}
}

// RequestVerification issues a fresh code for an unverified account and
// emails it. Any previously outstanding code is invalidated first.
func (s *EmailVerificationService) RequestVerification(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to load user for verification", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if user.IsVerified {
		return models.ErrConflict
	}

	if err := s.repo.DeleteByUser(ctx, userID); err != nil {
		s.logger.Error("failed to clear previous verification codes",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	code, err := pkgauth.GenerateNumericCode(6)
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.Any("error", err))
		return models.ErrInternalServer
	}

	expiresAt := time.Now().Add(s.config.CodeExpiry)
	if _, err := s.repo.Create(ctx, userID, code, expiresAt); err != nil {
		s.logger.Error("failed to store verification code",
			slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Delivery failures are logged but never surfaced to the caller.
	expiryMinutes := int(s.config.CodeExpiry.Minutes())
	if err := s.email.SendVerificationEmail(ctx, user.Email, code, expiryMinutes); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", userID), slog.Any("error", err))
	}

	s.logger.Info("verification code issued", slog.String("user_id", userID))
	return nil
}

// VerifyCode checks a submitted code against the outstanding one. Wrong
// submissions count toward a bounded attempt budget; exhausting it destroys
// the code.
func (s *EmailVerificationService) VerifyCode(ctx context.Context, userID, code string) (*VerificationResult, error) {
	v, err := s.repo.GetPendingByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &VerificationResult{
				Success: false,
				Message: "No verification code found. Please request a new one.",
			}, nil
		}
		s.logger.Error("failed to load verification code",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if v.IsExpired() {
		if err := s.repo.Delete(ctx, v.ID); err != nil {
			s.logger.Error("failed to delete expired verification code", slog.Any("error", err))
		}
		return &VerificationResult{
			Success: false,
			Message: "Verification code has expired. Please request a new one.",
		}, nil
	}

	if v.Code != code {
		attempts, err := s.repo.IncrementAttempts(ctx, v.ID)
		if err != nil {
			s.logger.Error("failed to count verification attempt", slog.Any("error", err))
			attempts = v.Attempts + 1
		}

		if attempts >= s.config.MaxAttempts {
			if err := s.repo.Delete(ctx, v.ID); err != nil {
				s.logger.Error("failed to delete exhausted verification code", slog.Any("error", err))
			}
			return &VerificationResult{
				Success: false,
				Message: "Too many invalid attempts. Please request a new verification code.",
			}, nil
		}

		remaining := s.config.MaxAttempts - attempts
		return &VerificationResult{
			Success: false,
			Message: fmt.Sprintf("Invalid verification code. %d attempts remaining.", remaining),
		}, nil
	}

	if err := s.users.MarkVerified(ctx, userID); err != nil {
		s.logger.Error("failed to mark user verified",
			slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.repo.Delete(ctx, v.ID); err != nil {
		s.logger.Error("failed to delete consumed verification code", slog.Any("error", err))
	}

	s.logger.Info("email verified", slog.String("user_id", userID))
	return &VerificationResult{Success: true, Message: "Email verified successfully."}, nil
}
