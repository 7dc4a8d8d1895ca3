package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zia-mazari/go-auth/internal/auth"
	"github.com/zia-mazari/go-auth/internal/config"
	"github.com/zia-mazari/go-auth/internal/models"
	"github.com/zia-mazari/go-auth/internal/services"
	pkgauth "github.com/zia-mazari/go-auth/pkg/auth"
	pkglogger "github.com/zia-mazari/go-auth/pkg/logger"
)

const testPassword = "CorrectHorse9!"

var (
	testHashOnce     sync.Once
	testPasswordHash string
)

// hashedTestPassword hashes the shared test password once; bcrypt at cost 12
// is too slow to repeat per test.
func hashedTestPassword(t *testing.T) string {
	testHashOnce.Do(func() {
		hash, err := pkgauth.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("failed to hash test password: %v", err)
		}
		testPasswordHash = hash
	})
	return testPasswordHash
}

func testVerificationConfig() config.VerificationConfig {
	return config.VerificationConfig{
		CodeExpiry:  15 * time.Minute,
		MaxAttempts: 3,
	}
}

type authFixture struct {
	service *services.AuthService
	store   *services.MemoryRateLimitStore
	users   *services.MockUserRepository
	email   *services.MockEmailSender
}

func newAuthFixture(users *services.MockUserRepository) *authFixture {
	logger := testLogger()
	store := services.NewMemoryRateLimitStore()
	email := &services.MockEmailSender{}

	cfg := testRateLimitConfig()
	limiter := services.NewLoginRateLimiter(store, cfg, logger)
	verification := services.NewEmailVerificationService(&services.MockEmailVerificationRepository{}, users, email, testVerificationConfig(), logger)
	tokenManager := auth.NewTokenManager("test-secret-32-characters-long-!!", 15*time.Minute)
	auditLogger := pkglogger.NewAuditLogger(logger)

	return &authFixture{
		service: services.NewAuthService(users, limiter, verification, tokenManager, cfg.MaxBlockCount, logger, auditLogger),
		store:   store,
		users:   users,
		email:   email,
	}
}

func TestAuthServiceLogin_Success(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	resp, err := fixture.service.Login(ctx, "alice@example.com", testPassword, "192.168.1.1")

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "user_1", resp.User.ID)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestAuthServiceLogin_SuccessClearsRateLimitRecord(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	// Two failures first, then a successful login.
	_, err := fixture.service.Login(ctx, "alice@example.com", "wrong-password", "192.168.1.1")
	require.Error(t, err)
	_, err = fixture.service.Login(ctx, "alice@example.com", "wrong-password", "192.168.1.1")
	require.Error(t, err)

	_, err = fixture.service.Login(ctx, "alice@example.com", testPassword, "192.168.1.1")
	require.NoError(t, err)

	assert.Nil(t, fixture.store.Lookup(models.PurposeLogin, "192.168.1.1", "alice@example.com"))
}

func TestAuthServiceLogin_WrongPassword(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	resp, err := fixture.service.Login(ctx, "alice@example.com", "wrong-password", "192.168.1.1")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	rec := fixture.store.Lookup(models.PurposeLogin, "192.168.1.1", "alice@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
}

func TestAuthServiceLogin_UnknownEmailCountsAttempt(t *testing.T) {
	fixture := newAuthFixture(&services.MockUserRepository{})
	ctx := context.Background()

	resp, err := fixture.service.Login(ctx, "ghost@example.com", "whatever", "192.168.1.1")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	rec := fixture.store.Lookup(models.PurposeLogin, "192.168.1.1", "ghost@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AttemptCount)
}

func TestAuthServiceLogin_BlocksAfterMaxAttempts(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	var err error
	for i := 0; i < 4; i++ {
		_, err = fixture.service.Login(ctx, "alice@example.com", "wrong-password", "192.168.1.1")
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	}

	// The fifth failure crosses the threshold and opens the first block.
	_, err = fixture.service.Login(ctx, "alice@example.com", "wrong-password", "192.168.1.1")

	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)
	assert.Contains(t, blockedErr.Message, "15 minutes")
	assert.Equal(t, 15*time.Minute, blockedErr.Duration)
}

func TestAuthServiceLogin_CorrectPasswordDuringBlockStaysBlocked(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	future := time.Now().Add(10 * time.Minute)
	fixture.store.Seed(models.PurposeLogin, "192.168.1.1", "alice@example.com", 7, 1, &future)

	resp, err := fixture.service.Login(ctx, "alice@example.com", testPassword, "192.168.1.1")

	assert.Nil(t, resp)
	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)

	// Proven identity resets the counter but never lifts the window.
	rec := fixture.store.Lookup(models.PurposeLogin, "192.168.1.1", "alice@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 0, rec.AttemptCount)
	require.NotNil(t, rec.BlockedUntil)
}

func TestAuthServiceLogin_WrongPasswordDuringBlockCounts(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return user, nil
		},
	})
	ctx := context.Background()

	future := time.Now().Add(10 * time.Minute)
	fixture.store.Seed(models.PurposeLogin, "192.168.1.1", "alice@example.com", 5, 1, &future)

	_, err := fixture.service.Login(ctx, "alice@example.com", "wrong-password", "192.168.1.1")

	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)

	rec := fixture.store.Lookup(models.PurposeLogin, "192.168.1.1", "alice@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 6, rec.AttemptCount)
}

func TestAuthServiceLogin_RepeatOffenderSkipsCredentialCheck(t *testing.T) {
	credentialLookups := 0
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			credentialLookups++
			return nil, models.ErrNotFound
		},
	})
	ctx := context.Background()

	future := time.Now().Add(10 * time.Minute)
	fixture.store.Seed(models.PurposeLogin, "192.168.1.1", "alice@example.com", 10, 2, &future)

	resp, err := fixture.service.Login(ctx, "alice@example.com", testPassword, "192.168.1.1")

	assert.Nil(t, resp)
	var blockedErr *models.BlockedError
	require.ErrorAs(t, err, &blockedErr)
	assert.Equal(t, 0, credentialLookups)

	// At the block-count ceiling further attempts no longer accumulate.
	rec := fixture.store.Lookup(models.PurposeLogin, "192.168.1.1", "alice@example.com")
	require.NotNil(t, rec)
	assert.Equal(t, 10, rec.AttemptCount)
}

func TestAuthServiceLogin_EmailNormalized(t *testing.T) {
	user := services.NewTestUserWithPassword("user_1", "alice", "alice@example.com", hashedTestPassword(t))
	var lookedUp string
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			lookedUp = email
			return user, nil
		},
	})
	ctx := context.Background()

	_, err := fixture.service.Login(ctx, "  Alice@Example.COM ", testPassword, "192.168.1.1")

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", lookedUp)
}

func TestAuthServiceRegister_Success(t *testing.T) {
	var created *models.User
	verificationSent := false

	users := &services.MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created = services.NewTestUserUnverified("user_42", user.Username, user.Email)
			created.PasswordHash = user.PasswordHash
			return created, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			if created != nil && created.ID == id {
				return created, nil
			}
			return nil, models.ErrNotFound
		},
	}
	fixture := newAuthFixture(users)
	fixture.email.SendVerificationEmailFunc = func(ctx context.Context, email, code string, expiryMinutes int) error {
		verificationSent = true
		assert.Equal(t, "bob@example.com", email)
		assert.Len(t, code, 6)
		return nil
	}
	ctx := context.Background()

	resp, err := fixture.service.Register(ctx, "bob", "Bob@Example.com", "StrongPassword42!")

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "user_42", resp.ID)
	assert.Equal(t, "bob@example.com", resp.Email)
	assert.False(t, resp.IsVerified)
	assert.True(t, verificationSent)
	require.NotNil(t, created)
	assert.NotEqual(t, "StrongPassword42!", created.PasswordHash)
}

func TestAuthServiceRegister_DuplicateEmail(t *testing.T) {
	existing := services.NewTestUser("user_1", "alice", "alice@example.com")
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return existing, nil
		},
	})
	ctx := context.Background()

	resp, err := fixture.service.Register(ctx, "alice2", "alice@example.com", "StrongPassword42!")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthServiceRegister_DuplicateUsername(t *testing.T) {
	existing := services.NewTestUser("user_1", "alice", "alice@example.com")
	fixture := newAuthFixture(&services.MockUserRepository{
		GetByUsernameFunc: func(ctx context.Context, username string) (*models.User, error) {
			return existing, nil
		},
	})
	ctx := context.Background()

	resp, err := fixture.service.Register(ctx, "alice", "new@example.com", "StrongPassword42!")

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestAuthServiceRegister_WeakPasswordRejected(t *testing.T) {
	creates := 0
	fixture := newAuthFixture(&services.MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			creates++
			return user, nil
		},
	})
	ctx := context.Background()

	resp, err := fixture.service.Register(ctx, "bob", "bob@example.com", "weak")

	assert.Nil(t, resp)
	var validationErr *pkgauth.PasswordValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, 0, creates)
}

func TestAuthServiceRegister_EmailDeliveryFailureDoesNotFailRegistration(t *testing.T) {
	var created *models.User
	users := &services.MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created = services.NewTestUserUnverified("user_42", user.Username, user.Email)
			return created, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*models.User, error) {
			return created, nil
		},
	}
	fixture := newAuthFixture(users)
	fixture.email.SendVerificationEmailFunc = func(ctx context.Context, email, code string, expiryMinutes int) error {
		return errors.New("ses unavailable")
	}
	ctx := context.Background()

	resp, err := fixture.service.Register(ctx, "bob", "bob@example.com", "StrongPassword42!")

	require.NoError(t, err)
	assert.Equal(t, "user_42", resp.ID)
}
