package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zia-mazari/go-auth/internal/models"
)

const testSecret = "test-secret-32-characters-long-!!"

func TestTokenManager_GenerateAndValidate(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	token, err := tm.Generate("user_1", "alice", "alice@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := tm.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_UniqueJTIPerToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	first, err := tm.Generate("user_1", "alice", "alice@example.com")
	require.NoError(t, err)
	second, err := tm.Generate("user_1", "alice", "alice@example.com")
	require.NoError(t, err)

	firstClaims, err := tm.Validate(first)
	require.NoError(t, err)
	secondClaims, err := tm.Validate(second)
	require.NoError(t, err)

	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestTokenManager_RejectsExpiredToken(t *testing.T) {
	tm := NewTokenManager(testSecret, -1*time.Minute)

	token, err := tm.Generate("user_1", "alice", "alice@example.com")
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	other := NewTokenManager("a-completely-different-secret-key", 15*time.Minute)

	token, err := tm.Generate("user_1", "alice", "alice@example.com")
	require.NoError(t, err)

	_, err = other.Validate(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsUnsignedToken(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	claims := &models.TokenClaims{
		UserID: "user_1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = tm.Validate(token)
	assert.Error(t, err)
}

func TestTokenManager_RejectsMissingSubject(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	claims := &models.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = tm.Validate(signed)
	assert.Error(t, err)
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	_, err := tm.Validate("not.a.token")
	assert.Error(t, err)
}
