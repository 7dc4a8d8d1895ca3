package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zia-mazari/go-auth/internal/models"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

// UserDetailRepository defines the persistence operations for profile details
type UserDetailRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.UserDetail, error)
	Create(ctx context.Context, userID string) (*models.UserDetail, error)
	Update(ctx context.Context, detail *models.UserDetail) (*models.UserDetail, error)
}

// ProfileResponse combines the account with its optional detail record
type ProfileResponse struct {
	User           *UserResponse `json:"user"`
	FirstName      *string       `json:"first_name"`
	LastName       *string       `json:"last_name"`
	Gender         *string       `json:"gender"`
	DateOfBirth    *string       `json:"date_of_birth"`
	PhoneNumber    *string       `json:"phone_number"`
	ProfilePicture *string       `json:"profile_picture"`
}

// ProfileUpdateInput carries the updatable profile fields. Nil fields are
// left unchanged.
type ProfileUpdateInput struct {
	FirstName      *string
	LastName       *string
	Gender         *string
	DateOfBirth    *time.Time
	PhoneNumber    *string
	ProfilePicture *string
}

// UserService handles profile and password management for authenticated users
type UserService struct {
	users       UserRepository
	details     UserDetailRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewUserService creates a new UserService
func NewUserService(users UserRepository, details UserDetailRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *UserService {
	return &UserService{
		users:       users,
		details:     details,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// GetProfile returns the account together with its detail record, if one has
// been created yet.
func (s *UserService) GetProfile(ctx context.Context, userID string) (*ProfileResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp := &ProfileResponse{User: userModelToResponse(user)}

	detail, err := s.details.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return resp, nil
		}
		s.logger.Error("failed to get user detail", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	resp.FirstName = detail.FirstName
	resp.LastName = detail.LastName
	resp.Gender = detail.Gender
	resp.PhoneNumber = detail.PhoneNumber
	resp.ProfilePicture = detail.ProfilePicture
	if detail.DateOfBirth != nil {
		dob := detail.DateOfBirth.Format("2006-01-02")
		resp.DateOfBirth = &dob
	}

	return resp, nil
}

// UpdateProfile applies the given fields to the user's detail record,
// creating it on first update.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input ProfileUpdateInput) (*ProfileResponse, error) {
	detail, err := s.details.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to get user detail", slog.String("user_id", userID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}

		detail, err = s.details.Create(ctx, userID)
		if err != nil {
			s.logger.Error("failed to create user detail", slog.String("user_id", userID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}

	if input.FirstName != nil {
		detail.FirstName = input.FirstName
	}
	if input.LastName != nil {
		detail.LastName = input.LastName
	}
	if input.Gender != nil {
		detail.Gender = input.Gender
	}
	if input.DateOfBirth != nil {
		detail.DateOfBirth = input.DateOfBirth
	}
	if input.PhoneNumber != nil {
		detail.PhoneNumber = input.PhoneNumber
	}
	if input.ProfilePicture != nil {
		detail.ProfilePicture = input.ProfilePicture
	}

	if _, err := s.details.Update(ctx, detail); err != nil {
		s.logger.Error("failed to update user detail", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("profile updated", slog.String("user_id", userID))
	return s.GetProfile(ctx, userID)
}

// UpdatePassword changes the password for an authenticated user after
// verifying the current one.
func (s *UserService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		s.auditLogger.LogPasswordChange(userID, "", false)
		return models.ErrUnauthorized
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.users.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		s.logger.Error("failed to update password", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogPasswordChange(userID, "", true)
	s.logger.Info("password changed", slog.String("user_id", userID))
	return nil
}
