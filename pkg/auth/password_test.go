package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndComparePassword(t *testing.T) {
	hash, err := HashPassword("SuperSecret42!")
	require.NoError(t, err)
	assert.NotEqual(t, "SuperSecret42!", hash)

	assert.NoError(t, ComparePassword(hash, "SuperSecret42!"))
	assert.Error(t, ComparePassword(hash, "WrongPassword42!"))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}

func TestValidatePassword_AcceptsStrongPassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("SuperSecret42!"))
}

func TestValidatePassword_RejectsWeakPasswords(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"too short", "Ab1!", "at least 8 characters"},
		{"no uppercase", "lowercase42!", "uppercase letter"},
		{"no lowercase", "UPPERCASE42!", "lowercase letter"},
		{"no digit", "NoDigitsHere!", "digit"},
		{"no special", "NoSpecial42x", "special character"},
		{"too long", strings.Repeat("Aa1!", 40), "at most 128 characters"},
		{"common password", "Password123!", "too common"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			require.Error(t, err)

			var validationErr *PasswordValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestGenerateNumericCode_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(6)
		require.NoError(t, err)
		seen[code] = true
	}
	// 50 draws from a million values collide with negligible probability.
	assert.Greater(t, len(seen), 45)
}
