package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long-!!")
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 5, cfg.RateLimit.MaxAttempts)
	assert.Equal(t, 2, cfg.RateLimit.MaxBlockCount)
	assert.Equal(t, []time.Duration{
		15 * time.Minute,
		30 * time.Minute,
		60 * time.Minute,
	}, cfg.RateLimit.BlockDurations)
	assert.Equal(t, 3, cfg.PasswordReset.MaxAttempts)
	assert.Equal(t, 5, cfg.PasswordReset.MaxFailureAttempts)
	assert.Equal(t, 30*time.Minute, cfg.PasswordReset.FailureBlockDuration)
	assert.Equal(t, 2, cfg.PasswordReset.MaxActiveTokens)
	assert.Equal(t, 15*time.Minute, cfg.Verification.CodeExpiry)
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RequiresDBPassword(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-32-characters-long-!!")
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_CustomBlockDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_BLOCK_DURATIONS", "10, 20, 40")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{
		10 * time.Minute,
		20 * time.Minute,
		40 * time.Minute,
	}, cfg.RateLimit.BlockDurations)
}

func TestLoad_InvalidBlockDurationsFallBackToDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RATE_LIMIT_BLOCK_DURATIONS", "10,banana,40")

	cfg, err := Load()
	require.NoError(t, err)

	// A partially valid schedule is discarded rather than applied.
	assert.Equal(t, []time.Duration{
		15 * time.Minute,
		30 * time.Minute,
		60 * time.Minute,
	}, cfg.RateLimit.BlockDurations)
}

func TestLoad_MinuteConvention(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PWD_RESET_BLOCK_DURATION", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.PasswordReset.BlockDuration)
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		env     string
		wantErr bool
	}{
		{"long secret in development", "sixteen-chars-ok", "development", false},
		{"short secret in development", "too-short", "development", true},
		{"16 chars in production", "sixteen-chars-ok", "production", true},
		{"32 chars in production", "test-secret-32-characters-long-!", "production", false},
		{"weak value", "changeme", "development", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateJWTSecret(tt.secret, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseBlockDurations(t *testing.T) {
	assert.Nil(t, parseBlockDurations(""))
	assert.Nil(t, parseBlockDurations("15,-5"))
	assert.Nil(t, parseBlockDurations("abc"))
	assert.Equal(t, []time.Duration{15 * time.Minute}, parseBlockDurations("15"))
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "secret",
		Name:     "goauth",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=postgres password=secret dbname=goauth sslmode=disable",
		cfg.DSN(),
	)
}
