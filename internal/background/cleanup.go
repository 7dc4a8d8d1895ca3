package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/zia-mazari/go-auth/internal/repositories"
)

// CleanupManager periodically purges expired reset tokens, expired
// verification codes and stale rate-limit records. Stale means no active
// block and no update within the retention window.
type CleanupManager struct {
	resetTokens   *repositories.PasswordResetRepository
	verifications *repositories.EmailVerificationRepository
	rateLimits    *repositories.RateLimitRepository
	retention     time.Duration
	interval      time.Duration
	logger        *slog.Logger
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	resetTokens *repositories.PasswordResetRepository,
	verifications *repositories.EmailVerificationRepository,
	rateLimits *repositories.RateLimitRepository,
	retention time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		resetTokens:   resetTokens,
		verifications: verifications,
		rateLimits:    rateLimits,
		retention:     retention,
		interval:      interval,
		logger:        logger,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	tokens, err := cm.resetTokens.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired reset tokens", slog.Any("error", err))
	}

	codes, err := cm.verifications.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired verification codes", slog.Any("error", err))
	}

	counters, err := cm.rateLimits.CleanupStale(cleanupCtx, cm.retention)
	if err != nil {
		cm.logger.Error("failed to cleanup stale rate limit records", slog.Any("error", err))
	}

	if tokens > 0 || codes > 0 || counters > 0 {
		cm.logger.Info("cleanup completed",
			slog.Int64("reset_tokens", tokens),
			slog.Int64("verification_codes", codes),
			slog.Int64("rate_limit_records", counters))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
