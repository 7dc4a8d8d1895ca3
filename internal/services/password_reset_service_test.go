package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zia-mazari/go-auth/internal/models"
	"github.com/zia-mazari/go-auth/internal/services"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

const genericResetMessage = "If the email address is registered, a password reset code has been sent."

type resetFixture struct {
	service *services.PasswordResetService
	store   *services.MemoryRateLimitStore
	tokens  *services.MockPasswordResetTokenRepository
	users   *services.MockUserRepository
	email   *services.MockEmailSender
}

func newResetFixture(tokens *services.MockPasswordResetTokenRepository, users *services.MockUserRepository) *resetFixture {
	logger := testLogger()
	store := services.NewMemoryRateLimitStore()
	email := &services.MockEmailSender{}
	cfg := testPasswordResetConfig()

	requestLimiter := services.NewResetRequestLimiter(store, cfg, logger)
	failureLimiter := services.NewResetFailureLimiter(store, cfg, logger)
	auditLogger := pkglogger.NewAuditLogger(logger)

	return &resetFixture{
		service: services.NewPasswordResetService(tokens, users, requestLimiter, failureLimiter, email, cfg, logger, auditLogger),
		store:   store,
		tokens:  tokens,
		users:   users,
		email:   email,
	}
}

func TestPasswordResetRequest_UnknownEmailReturnsGenericMessage(t *testing.T) {
	emailsSent := 0
	fixture := newResetFixture(&services.MockPasswordResetTokenRepository{}, &services.MockUserRepository{})
	fixture.email.SendPasswordResetEmailFunc = func(ctx context.Context, email, code string, expiryMinutes int) error {
		emailsSent++
		return nil
	}
	ctx := context.Background()

	message, err := fixture.service.RequestReset(ctx, "ghost@example.com", "192.168.1.1")

	require.NoError(t, err)
	assert.Equal(t, genericResetMessage, message)
	assert.Equal(t, 0, emailsSent)

	// Unknown addresses still consume the request budget.
	rec := fixture.store.Lookup(models.PurposeResetRequest, "192.168.1.1", "ghost@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
}

func TestPasswordResetRequest_IssuesCodeAndSendsEmail(t *testing.T) {
	user := services.NewTestUser("user_1", "alice", "alice@example.com")
	var storedCode, sentCode string

	tokens := &services.MockPasswordResetTokenRepository{
		CreateFunc: func(ctx context.Context, userID, email, code string, expiresAt time.Time) (*models.PasswordResetToken, error) {
			storedCode = code
			assert.Equal(t, "user_1", userID)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)
			return services.NewTestResetToken("token_1", userID, email, code), nil
		},
	}
	fixture := newResetFixture(tokens, &services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	fixture.email.SendPasswordResetEmailFunc = func(ctx context.Context, email, code string, expiryMinutes int) error {
		sentCode = code
		assert.Equal(t, "alice@example.com", email)
		assert.Equal(t, 15, expiryMinutes)
		return nil
	}
	ctx := context.Background()

	message, err := fixture.service.RequestReset(ctx, "alice@example.com", "192.168.1.1")

	require.NoError(t, err)
	assert.Equal(t, genericResetMessage, message)
	assert.Len(t, storedCode, 6)
	assert.Equal(t, storedCode, sentCode)

	rec := fixture.store.Lookup(models.PurposeResetRequest, "192.168.1.1", "alice@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
}

func TestPasswordResetRequest_EvictsOldestActiveTokens(t *testing.T) {
	user := services.NewTestUser("user_1", "alice", "alice@example.com")
	var evicted []string

	older := services.NewTestResetToken("token_old", "user_1", "alice@example.com", "111111")
	older.CreatedAt = time.Now().Add(-10 * time.Minute)
	newer := services.NewTestResetToken("token_new", "user_1", "alice@example.com", "222222")

	tokens := &services.MockPasswordResetTokenRepository{
		ListActiveByUserFunc: func(ctx context.Context, userID string) ([]*models.PasswordResetToken, error) {
			return []*models.PasswordResetToken{older, newer}, nil
		},
		DeleteByIDsFunc: func(ctx context.Context, ids []string) error {
			evicted = ids
			return nil
		},
	}
	fixture := newResetFixture(tokens, &services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	_, err := fixture.service.RequestReset(ctx, "alice@example.com", "192.168.1.1")

	require.NoError(t, err)
	// With two active tokens and a pool limit of two, exactly the oldest
	// one makes room for the new code.
	assert.Equal(t, []string{"token_old"}, evicted)
}

func TestPasswordResetRequest_BlockedAfterTooManyRequests(t *testing.T) {
	fixture := newResetFixture(&services.MockPasswordResetTokenRepository{}, &services.MockUserRepository{})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		message, err := fixture.service.RequestReset(ctx, "ghost@example.com", "192.168.1.1")
		require.NoError(t, err)
		assert.Equal(t, genericResetMessage, message)
	}

	_, err := fixture.service.RequestReset(ctx, "ghost@example.com", "192.168.1.1")

	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)
	assert.Contains(t, blockedErr.Message, "Too many password reset requests")
}

func TestPasswordResetRequest_DeliveryFailureStaysSilent(t *testing.T) {
	user := services.NewTestUser("user_1", "alice", "alice@example.com")
	fixture := newResetFixture(&services.MockPasswordResetTokenRepository{}, &services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	fixture.email.SendPasswordResetEmailFunc = func(ctx context.Context, email, code string, expiryMinutes int) error {
		return errors.New("ses unavailable")
	}
	ctx := context.Background()

	message, err := fixture.service.RequestReset(ctx, "alice@example.com", "192.168.1.1")

	require.NoError(t, err)
	assert.Equal(t, genericResetMessage, message)
}

func TestPasswordResetConfirm_Success(t *testing.T) {
	token := services.NewTestResetToken("token_1", "user_1", "alice@example.com", "123456")
	var updatedHash string
	markedUsed := false
	deletedAll := false

	tokens := &services.MockPasswordResetTokenRepository{
		GetActiveByCodeFunc: func(ctx context.Context, code string) (*models.PasswordResetToken, error) {
			if code == "123456" {
				return token, nil
			}
			return nil, models.ErrNotFound
		},
		MarkUsedFunc: func(ctx context.Context, id string) error {
			markedUsed = true
			assert.Equal(t, "token_1", id)
			return nil
		},
		DeleteByUserFunc: func(ctx context.Context, userID string) error {
			deletedAll = true
			assert.Equal(t, "user_1", userID)
			return nil
		},
	}
	fixture := newResetFixture(tokens, &services.MockUserRepository{
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
			assert.Equal(t, "user_1", id)
			updatedHash = passwordHash
			return nil
		},
	})
	ctx := context.Background()

	// Leftover counters for the account, accumulated from any IP and any
	// purpose, must all be wiped by a successful reset.
	fixture.store.Seed(models.PurposeLogin, "10.0.0.9", "alice@example.com", 4, 1, nil)
	fixture.store.Seed(models.PurposeResetFailure, "192.168.1.1", "alice@example.com", 2, 0, nil)

	message, err := fixture.service.ResetPassword(ctx, "123456", "BrandNewPassword7!", "192.168.1.1")

	require.NoError(t, err)
	assert.Equal(t, "Password has been reset successfully.", message)
	assert.True(t, markedUsed)
	assert.True(t, deletedAll)
	assert.NotEmpty(t, updatedHash)
	assert.NoError(t, pkgauth.ComparePassword(updatedHash, "BrandNewPassword7!"))

	assert.Nil(t, fixture.store.Lookup(models.PurposeLogin, "10.0.0.9", "alice@example.com"))
	assert.Nil(t, fixture.store.Lookup(models.PurposeResetFailure, "192.168.1.1", "alice@example.com"))
}

func TestPasswordResetConfirm_UnknownCode(t *testing.T) {
	fixture := newResetFixture(&services.MockPasswordResetTokenRepository{}, &services.MockUserRepository{})
	ctx := context.Background()

	_, err := fixture.service.ResetPassword(ctx, "000000", "BrandNewPassword7!", "192.168.1.1")

	assert.ErrorIs(t, err, models.ErrInvalidResetCode)

	// Without a token there is no account to attribute the failure to, so
	// it lands in the per-IP bucket.
	rec := fixture.store.Lookup(models.PurposeResetFailure, "192.168.1.1", "")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
}

func TestPasswordResetConfirm_BlocksAfterRepeatedUnknownCodes(t *testing.T) {
	fixture := newResetFixture(&services.MockPasswordResetTokenRepository{}, &services.MockUserRepository{})
	ctx := context.Background()

	var err error
	for i := 0; i < 4; i++ {
		_, err = fixture.service.ResetPassword(ctx, "000000", "BrandNewPassword7!", "192.168.1.1")
		assert.ErrorIs(t, err, models.ErrInvalidResetCode)
	}

	_, err = fixture.service.ResetPassword(ctx, "000000", "BrandNewPassword7!", "192.168.1.1")

	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)
	assert.Contains(t, blockedErr.Message, "Too many failed password reset attempts")

	// Still blocked on the next try, before any lookup work.
	_, err = fixture.service.ResetPassword(ctx, "000000", "BrandNewPassword7!", "192.168.1.1")
	require.ErrorAs(t, err, &blockedErr)
}

func TestPasswordResetConfirm_BlockedIdentityRejectedBeforeReset(t *testing.T) {
	token := services.NewTestResetToken("token_1", "user_1", "alice@example.com", "123456")
	passwordUpdates := 0

	tokens := &services.MockPasswordResetTokenRepository{
		GetActiveByCodeFunc: func(ctx context.Context, code string) (*models.PasswordResetToken, error) {
			return token, nil
		},
	}
	fixture := newResetFixture(tokens, &services.MockUserRepository{
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
			passwordUpdates++
			return nil
		},
	})
	ctx := context.Background()

	future := time.Now().Add(20 * time.Minute)
	fixture.store.Seed(models.PurposeResetFailure, "192.168.1.1", "alice@example.com", 5, 1, &future)

	_, err := fixture.service.ResetPassword(ctx, "123456", "BrandNewPassword7!", "192.168.1.1")

	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)
	assert.Equal(t, 0, passwordUpdates)
}

func TestPasswordResetConfirm_WeakPasswordRejected(t *testing.T) {
	token := services.NewTestResetToken("token_1", "user_1", "alice@example.com", "123456")
	passwordUpdates := 0

	tokens := &services.MockPasswordResetTokenRepository{
		GetActiveByCodeFunc: func(ctx context.Context, code string) (*models.PasswordResetToken, error) {
			return token, nil
		},
	}
	fixture := newResetFixture(tokens, &services.MockUserRepository{
		UpdatePasswordFunc: func(ctx context.Context, id, passwordHash string) error {
			passwordUpdates++
			return nil
		},
	})
	ctx := context.Background()

	_, err := fixture.service.ResetPassword(ctx, "123456", "weak", "192.168.1.1")

	var validationErr *pkgauth.PasswordValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 0, passwordUpdates)
}

func TestPasswordResetValidate_ValidCode(t *testing.T) {
	token := services.NewTestResetToken("token_1", "user_1", "alice@example.com", "123456")
	tokens := &services.MockPasswordResetTokenRepository{
		GetActiveByCodeFunc: func(ctx context.Context, code string) (*models.PasswordResetToken, error) {
			if code == "123456" {
				return token, nil
			}
			return nil, models.ErrNotFound
		},
	}
	fixture := newResetFixture(tokens, &services.MockUserRepository{})
	ctx := context.Background()

	info, err := fixture.service.ValidateResetToken(ctx, "123456")

	require.NoError(t, err)
	assert.True(t, info.Valid)
	assert.Equal(t, "alice@example.com", info.Email)
}

func TestPasswordResetValidate_UnknownCode(t *testing.T) {
	fixture := newResetFixture(&services.MockPasswordResetTokenRepository{}, &services.MockUserRepository{})
	ctx := context.Background()

	info, err := fixture.service.ValidateResetToken(ctx, "000000")

	assert.Nil(t, info)
	assert.ErrorIs(t, err, models.ErrInvalidResetCode)

	// Validation is read-only; no failure is recorded.
	assert.Nil(t, fixture.store.Lookup(models.PurposeResetFailure, "192.168.1.1", ""))
}
