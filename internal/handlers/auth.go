package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/models"
	"github.com/zia-mazari/go-auth/internal/services"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
	pkghttp "github.com/zia-mazari/go-auth/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password, clientIP string) (*services.AuthResponse, error)
	Register(ctx context.Context, username, email, password string) (*services.UserResponse, error)
}

// PasswordResetServiceInterface defines the interface for the reset flow
type PasswordResetServiceInterface interface {
	RequestReset(ctx context.Context, email, clientIP string) (string, error)
	ResetPassword(ctx context.Context, code, newPassword, clientIP string) (string, error)
	ValidateResetToken(ctx context.Context, code string) (*services.ResetTokenInfo, error)
}

// EmailVerificationServiceInterface defines the interface for email verification
type EmailVerificationServiceInterface interface {
	RequestVerification(ctx context.Context, userID string) error
	VerifyCode(ctx context.Context, userID, code string) (*services.VerificationResult, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service      AuthServiceInterface
	reset        PasswordResetServiceInterface
	verification EmailVerificationServiceInterface
	ipConfig     *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, reset PasswordResetServiceInterface, verification EmailVerificationServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:      service,
		reset:        reset,
		verification: verification,
		ipConfig:     ipConfig,
	}
}

// Request DTOs

// LoginRequest represents the request body for login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents the request body for registration
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ResetRequestRequest represents the request body for requesting a reset code
type ResetRequestRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetConfirmRequest represents the request body for consuming a reset code
type ResetConfirmRequest struct {
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ResetValidateRequest represents the request body for checking a reset code
type ResetValidateRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyEmailRequest represents the request body for email verification
type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	authResp, err := h.service.Login(r.Context(), req.Email, req.Password, clientIP)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Login successful", authResp)
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "Username or email is already registered")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusCreated, "Account created. Please verify your email address.", user)
}

// RequestPasswordReset handles reset-code issuance
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	message, err := h.reset.RequestReset(r.Context(), email, clientIP)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, message, nil)
}

// ConfirmPasswordReset handles reset-code consumption
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req ResetConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	clientIP := pkghttp.ExtractClientIP(r, h.ipConfig)

	message, err := h.reset.ResetPassword(r.Context(), req.Code, req.NewPassword, clientIP)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, message, nil)
}

// ValidateResetCode reports whether a reset code is redeemable
func (h *AuthHandler) ValidateResetCode(w http.ResponseWriter, r *http.Request) {
	var req ResetValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	info, err := h.reset.ValidateResetToken(r.Context(), req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Reset code is valid", info)
}

// RequestEmailVerification issues a fresh verification code for the
// authenticated user
func (h *AuthHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.verification.RequestVerification(r.Context(), claims.UserID); err != nil {
		if errors.Is(err, models.ErrConflict) {
			pkghttp.WriteConflict(w, "Email is already verified")
			return
		}
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Verification code sent", nil)
}

// ConfirmEmailVerification checks a submitted verification code
func (h *AuthHandler) ConfirmEmailVerification(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req VerifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.verification.VerifyCode(r.Context(), claims.UserID, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !result.Success {
		pkghttp.WriteBadRequest(w, result.Message)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, result.Message, nil)
}

// writeServiceError maps service-level errors onto HTTP responses. Blocked
// outcomes become 429 with the block window attached; credential failures
// stay deliberately generic.
func writeServiceError(w http.ResponseWriter, err error) {
	var blocked *models.BlockedError
	if errors.As(err, &blocked) {
		pkghttp.WriteBlocked(w, blocked.Message, blocked.BlockedUntil, blocked.Duration)
		return
	}

	var pwErr *pkgauth.PasswordValidationError
	if errors.As(err, &pwErr) {
		pkghttp.WriteBadRequest(w, pwErr.Error())
		return
	}

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, models.ErrInvalidResetCode):
		pkghttp.WriteBadRequest(w, "Invalid or expired reset code")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
