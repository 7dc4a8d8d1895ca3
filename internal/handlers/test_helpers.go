package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/models"
	"github.com/zia-mazari/go-auth/internal/services"
	pkghttp "github.com/zia-mazari/go-auth/pkg/http"
)

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc    func(ctx context.Context, email, password, clientIP string) (*services.AuthResponse, error)
	RegisterFunc func(ctx context.Context, username, email, password string) (*services.UserResponse, error)
}

func (m *MockAuthService) Login(ctx context.Context, email, password, clientIP string) (*services.AuthResponse, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password, clientIP)
	}
	return nil, models.ErrUnauthorized
}

func (m *MockAuthService) Register(ctx context.Context, username, email, password string) (*services.UserResponse, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, username, email, password)
	}
	return nil, models.ErrInternalServer
}

// MockPasswordResetService implements PasswordResetServiceInterface for testing
type MockPasswordResetService struct {
	RequestResetFunc       func(ctx context.Context, email, clientIP string) (string, error)
	ResetPasswordFunc      func(ctx context.Context, code, newPassword, clientIP string) (string, error)
	ValidateResetTokenFunc func(ctx context.Context, code string) (*services.ResetTokenInfo, error)
}

func (m *MockPasswordResetService) RequestReset(ctx context.Context, email, clientIP string) (string, error) {
	if m.RequestResetFunc != nil {
		return m.RequestResetFunc(ctx, email, clientIP)
	}
	return "", models.ErrInternalServer
}

func (m *MockPasswordResetService) ResetPassword(ctx context.Context, code, newPassword, clientIP string) (string, error) {
	if m.ResetPasswordFunc != nil {
		return m.ResetPasswordFunc(ctx, code, newPassword, clientIP)
	}
	return "", models.ErrInternalServer
}

func (m *MockPasswordResetService) ValidateResetToken(ctx context.Context, code string) (*services.ResetTokenInfo, error) {
	if m.ValidateResetTokenFunc != nil {
		return m.ValidateResetTokenFunc(ctx, code)
	}
	return nil, models.ErrInvalidResetCode
}

// MockEmailVerificationService implements EmailVerificationServiceInterface for testing
type MockEmailVerificationService struct {
	RequestVerificationFunc func(ctx context.Context, userID string) error
	VerifyCodeFunc          func(ctx context.Context, userID, code string) (*services.VerificationResult, error)
}

func (m *MockEmailVerificationService) RequestVerification(ctx context.Context, userID string) error {
	if m.RequestVerificationFunc != nil {
		return m.RequestVerificationFunc(ctx, userID)
	}
	return nil
}

func (m *MockEmailVerificationService) VerifyCode(ctx context.Context, userID, code string) (*services.VerificationResult, error) {
	if m.VerifyCodeFunc != nil {
		return m.VerifyCodeFunc(ctx, userID, code)
	}
	return &services.VerificationResult{Success: true, Message: "Email verified successfully."}, nil
}

// MockUserService implements UserServiceInterface for testing
type MockUserService struct {
	GetProfileFunc     func(ctx context.Context, userID string) (*services.ProfileResponse, error)
	UpdateProfileFunc  func(ctx context.Context, userID string, input services.ProfileUpdateInput) (*services.ProfileResponse, error)
	UpdatePasswordFunc func(ctx context.Context, userID, currentPassword, newPassword string) error
}

func (m *MockUserService) GetProfile(ctx context.Context, userID string) (*services.ProfileResponse, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserService) UpdateProfile(ctx context.Context, userID string, input services.ProfileUpdateInput) (*services.ProfileResponse, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, input)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, userID, currentPassword, newPassword)
	}
	return nil
}

// NewTestRequest builds a JSON request for handler tests
func NewTestRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.168.1.1:54321"
	return req
}

// NewAuthenticatedTestRequest builds a request carrying token claims, as the
// auth middleware would have left them.
func NewAuthenticatedTestRequest(t *testing.T, method, path string, body interface{}, userID string) *http.Request {
	t.Helper()

	req := NewTestRequest(t, method, path, body)
	claims := &models.TokenClaims{UserID: userID, Username: "alice", Email: "alice@example.com"}
	return req.WithContext(auth.ContextWithClaims(req.Context(), claims))
}

// AssertEnvelope decodes the response envelope and checks the status code
func AssertEnvelope(t *testing.T, w *httptest.ResponseRecorder, wantStatus int) *pkghttp.Response {
	t.Helper()

	if w.Code != wantStatus {
		t.Fatalf("expected status %d, got %d (body: %s)", wantStatus, w.Code, w.Body.String())
	}

	var resp pkghttp.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response envelope: %v", err)
	}
	return &resp
}
