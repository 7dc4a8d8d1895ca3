package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	PasswordReset PasswordResetConfig
	Verification  VerificationConfig
	Email         EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret   string
	TokenExpiry time.Duration
}

// RateLimitConfig controls the progressive login brute-force protection.
// BlockDurations escalate per block count and saturate at the last entry;
// BlockDuration is the flat fallback when the list is empty.
type RateLimitConfig struct {
	MaxAttempts     int
	BlockDurations  []time.Duration
	BlockDuration   time.Duration
	MaxBlockCount   int
	CleanupInterval time.Duration
}

// PasswordResetConfig controls the two reset-flow limiters and the token pool.
type PasswordResetConfig struct {
	MaxAttempts          int
	BlockDuration        time.Duration
	MaxFailureAttempts   int
	FailureBlockDuration time.Duration
	MaxActiveTokens      int
	TokenExpiry          time.Duration
}

type VerificationConfig struct {
	CodeExpiry  time.Duration
	MaxAttempts int
}

type EmailConfig struct {
	AWSRegion   string
	FromAddress string
	AppName     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "goauth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:   jwtSecret,
			TokenExpiry: getEnvAsDuration("JWT_TOKEN_EXPIRY", 1*time.Hour),
		},
		RateLimit: RateLimitConfig{
			MaxAttempts:     getEnvAsInt("RATE_LIMIT_MAX_ATTEMPTS", 5),
			BlockDurations:  parseBlockDurations(getEnv("RATE_LIMIT_BLOCK_DURATIONS", "")),
			BlockDuration:   getEnvAsMinutes("RATE_LIMIT_BLOCK_DURATION", 15*time.Minute),
			MaxBlockCount:   getEnvAsInt("RATE_LIMIT_MAX_BLOCK_COUNT", 2),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP_INTERVAL", 1*time.Hour),
		},
		PasswordReset: PasswordResetConfig{
			MaxAttempts:          getEnvAsInt("PWD_RESET_MAX_ATTEMPTS", 3),
			BlockDuration:        getEnvAsMinutes("PWD_RESET_BLOCK_DURATION", 15*time.Minute),
			MaxFailureAttempts:   getEnvAsInt("PWD_RESET_MAX_FAILURE_ATTEMPTS", 5),
			FailureBlockDuration: getEnvAsMinutes("PWD_RESET_FAILURE_BLOCK_DURATION", 30*time.Minute),
			MaxActiveTokens:      getEnvAsInt("PWD_RESET_MAX_ACTIVE_TOKENS", 2),
			TokenExpiry:          getEnvAsMinutes("PWD_RESET_TOKEN_EXPIRY", 15*time.Minute),
		},
		Verification: VerificationConfig{
			CodeExpiry:  getEnvAsMinutes("EMAIL_VERIFICATION_CODE_EXPIRY", 15*time.Minute),
			MaxAttempts: getEnvAsInt("EMAIL_VERIFICATION_MAX_ATTEMPTS", 3),
		},
		Email: EmailConfig{
			AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			AppName:     getEnv("APP_NAME", "go-auth"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if cfg.RateLimit.MaxAttempts <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX_ATTEMPTS must be positive")
	}
	if len(cfg.RateLimit.BlockDurations) == 0 {
		cfg.RateLimit.BlockDurations = []time.Duration{
			15 * time.Minute,
			30 * time.Minute,
			60 * time.Minute,
		}
	}

	return cfg, nil
}

// validateJWTSecret enforces minimum security standards for the JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

// parseBlockDurations parses a comma-separated list of minutes ("15,30,60")
// into escalating block durations. Invalid entries invalidate the whole list
// so the configured defaults apply instead of a partially-parsed schedule.
func parseBlockDurations(raw string) []time.Duration {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	durations := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		minutes, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || minutes <= 0 {
			return nil
		}
		durations = append(durations, time.Duration(minutes)*time.Minute)
	}

	return durations
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// getEnvAsMinutes reads a bare integer as minutes, matching the legacy
// deployment convention for block and expiry windows.
func getEnvAsMinutes(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil && minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
