package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/zia-mazari/go-auth/internal/config"
	"github.com/zia-mazari/go-auth/internal/models"
)

// RateLimitStore defines the persistence operations the limiter needs.
type RateLimitStore interface {
	Get(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error)
	IncrementAttempt(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error)
	IncrementAttemptBelow(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string, maxBlockCount int) (*models.RateLimitRecord, error)
	RaiseBlockCount(ctx context.Context, id string, blockCount int) error
	SetBlockedUntil(ctx context.Context, id string, until time.Time) error
	ResetAttempts(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error
	ExpireBlock(ctx context.Context, id string) error
	Delete(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error
	DeleteByIdentity(ctx context.Context, identity string) error
}

// LimiterConfig holds the thresholds for one limiter instance. A single-entry
// BlockDurations list gives flat (non-escalating) blocks.
type LimiterConfig struct {
	MaxAttempts    int
	BlockDurations []time.Duration
	MaxBlockCount  int
}

// blockMessageFunc renders the user-facing message for an active block.
// tier is the duration the current block count maps to.
type blockMessageFunc func(tier time.Duration, until time.Time) string

// RateLimiter tracks failed attempts per (client IP, identity) pair under one
// purpose and applies progressively escalating block windows. Every check
// re-reads the store, so multiple server instances share state safely.
//
// Mutating operations never surface storage errors to the caller. A limiter
// failure must not take down legitimate logins, so errors are logged and the
// operation degrades to "not blocked".
type RateLimiter struct {
	purpose models.RateLimitPurpose
	store   RateLimitStore
	config  LimiterConfig
	message blockMessageFunc
	logger  *slog.Logger
}

// NewLoginRateLimiter builds the progressive limiter guarding the login path.
func NewLoginRateLimiter(store RateLimitStore, cfg config.RateLimitConfig, logger *slog.Logger) *RateLimiter {
	durations := cfg.BlockDurations
	if len(durations) == 0 {
		durations = []time.Duration{cfg.BlockDuration}
	}

	return &RateLimiter{
		purpose: models.PurposeLogin,
		store:   store,
		config: LimiterConfig{
			MaxAttempts:    cfg.MaxAttempts,
			BlockDurations: durations,
			MaxBlockCount:  cfg.MaxBlockCount,
		},
		message: func(tier time.Duration, until time.Time) string {
			return fmt.Sprintf(
				"Too many failed login attempts. Your access is temporarily blocked for %d minutes (until %s).",
				int(tier.Minutes()), until.Format(time.RFC1123),
			)
		},
		logger: logger,
	}
}

// NewResetRequestLimiter builds the flat limiter bounding how often a pair may
// request a password reset code.
func NewResetRequestLimiter(store RateLimitStore, cfg config.PasswordResetConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		purpose: models.PurposeResetRequest,
		store:   store,
		config: LimiterConfig{
			MaxAttempts:    cfg.MaxAttempts,
			BlockDurations: []time.Duration{cfg.BlockDuration},
			MaxBlockCount:  1,
		},
		message: func(_ time.Duration, until time.Time) string {
			return fmt.Sprintf(
				"Too many password reset requests. Please wait %d minutes before trying again.",
				remainingMinutes(until),
			)
		},
		logger: logger,
	}
}

// NewResetFailureLimiter builds the flat limiter bounding wrong-code
// submissions during password reset.
func NewResetFailureLimiter(store RateLimitStore, cfg config.PasswordResetConfig, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		purpose: models.PurposeResetFailure,
		store:   store,
		config: LimiterConfig{
			MaxAttempts:    cfg.MaxFailureAttempts,
			BlockDurations: []time.Duration{cfg.FailureBlockDuration},
			MaxBlockCount:  1,
		},
		message: func(_ time.Duration, until time.Time) string {
			return fmt.Sprintf(
				"Too many failed password reset attempts. Please wait %d minutes before trying again.",
				remainingMinutes(until),
			)
		},
		logger: logger,
	}
}

// IsBlocked reports whether the pair is inside an active block window. A
// lapsed window is cleared lazily here: attempt_count returns to zero and
// blocked_until is removed, while block_count survives so the next block
// escalates. Storage errors fail open.
func (s *RateLimiter) IsBlocked(ctx context.Context, clientIP, identity string) *models.BlockDecision {
	rec, err := s.store.Get(ctx, s.purpose, clientIP, identity)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("rate limit lookup failed",
				slog.String("purpose", string(s.purpose)),
				slog.Any("error", err))
		}
		return &models.BlockDecision{Blocked: false}
	}

	if rec.BlockedUntil == nil {
		return &models.BlockDecision{Blocked: false}
	}

	if rec.BlockedUntil.After(time.Now()) {
		tier := s.blockDurationFor(rec.BlockCount)
		return &models.BlockDecision{
			Blocked:      true,
			Message:      s.message(tier, *rec.BlockedUntil),
			BlockedUntil: *rec.BlockedUntil,
			Duration:     tier,
			BlockCount:   rec.BlockCount,
		}
	}

	if err := s.store.ExpireBlock(ctx, rec.ID); err != nil {
		s.logger.Error("failed to expire lapsed block",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
	}

	return &models.BlockDecision{Blocked: false}
}

// RecordFailedAttempt counts one failure and triggers or extends a block when
// the attempt count reaches the threshold. The stored block count only ever
// rises, so penalties stay progressive across block cycles.
func (s *RateLimiter) RecordFailedAttempt(ctx context.Context, clientIP, identity string) *models.BlockDecision {
	rec, err := s.store.IncrementAttempt(ctx, s.purpose, clientIP, identity)
	if err != nil {
		s.logger.Error("failed to record failed attempt",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
		return &models.BlockDecision{Blocked: false}
	}

	rec = s.raiseBlockCount(ctx, rec)

	if rec.AttemptCount < s.config.MaxAttempts {
		return &models.BlockDecision{Blocked: false}
	}

	tier := s.blockDurationFor(rec.BlockCount)
	until := time.Now().Add(tier)

	if err := s.store.SetBlockedUntil(ctx, rec.ID, until); err != nil {
		s.logger.Error("failed to set block window",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
		return &models.BlockDecision{Blocked: false}
	}

	s.logger.Warn("block triggered",
		slog.String("purpose", string(s.purpose)),
		slog.String("client_ip", clientIP),
		slog.Int("attempt_count", rec.AttemptCount),
		slog.Int("block_count", rec.BlockCount),
		slog.Duration("duration", tier))

	return &models.BlockDecision{
		Blocked:      true,
		Message:      s.message(tier, until),
		BlockedUntil: until,
		Duration:     tier,
		BlockCount:   rec.BlockCount,
	}
}

// RecordBlockedAttempt counts an attempt arriving during an active block.
// Counting stops once block_count reaches the ceiling, so a determined
// attacker hammering a blocked pair cannot inflate the penalty without bound.
func (s *RateLimiter) RecordBlockedAttempt(ctx context.Context, clientIP, identity string) {
	rec, err := s.store.IncrementAttemptBelow(ctx, s.purpose, clientIP, identity, s.config.MaxBlockCount)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to record blocked attempt",
				slog.String("purpose", string(s.purpose)),
				slog.Any("error", err))
		}
		return
	}

	s.raiseBlockCount(ctx, rec)
}

// ResetAttemptCount zeroes the attempt counter while leaving any active block
// window in place. Used when correct credentials arrive during a block.
func (s *RateLimiter) ResetAttemptCount(ctx context.Context, clientIP, identity string) {
	if err := s.store.ResetAttempts(ctx, s.purpose, clientIP, identity); err != nil {
		s.logger.Error("failed to reset attempt count",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
	}
}

// Clear deletes the record for the pair entirely.
func (s *RateLimiter) Clear(ctx context.Context, clientIP, identity string) {
	if err := s.store.Delete(ctx, s.purpose, clientIP, identity); err != nil {
		s.logger.Error("failed to clear rate limit record",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
	}
}

// ClearIdentity removes every purpose's counters for an account identity,
// across all client IPs. Used after a successful password reset.
func (s *RateLimiter) ClearIdentity(ctx context.Context, identity string) {
	if err := s.store.DeleteByIdentity(ctx, identity); err != nil {
		s.logger.Error("failed to clear rate limit records for identity",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
	}
}

// GetStats returns the current counters for a pair, or nil when no record
// exists.
func (s *RateLimiter) GetStats(ctx context.Context, clientIP, identity string) (*models.RateLimitStats, error) {
	rec, err := s.store.Get(ctx, s.purpose, clientIP, identity)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &models.RateLimitStats{
		AttemptCount: rec.AttemptCount,
		BlockCount:   rec.BlockCount,
		BlockedUntil: rec.BlockedUntil,
	}, nil
}

// raiseBlockCount recomputes block_count from the attempt count and persists
// it only when it strictly exceeds the stored value.
func (s *RateLimiter) raiseBlockCount(ctx context.Context, rec *models.RateLimitRecord) *models.RateLimitRecord {
	candidate := rec.AttemptCount / s.config.MaxAttempts
	if candidate <= rec.BlockCount {
		return rec
	}

	if err := s.store.RaiseBlockCount(ctx, rec.ID, candidate); err != nil {
		s.logger.Error("failed to raise block count",
			slog.String("purpose", string(s.purpose)),
			slog.Any("error", err))
		return rec
	}

	rec.BlockCount = candidate
	return rec
}

// blockDurationFor maps a block count onto the escalating duration list,
// saturating at the last entry.
func (s *RateLimiter) blockDurationFor(blockCount int) time.Duration {
	idx := blockCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.config.BlockDurations) {
		idx = len(s.config.BlockDurations) - 1
	}
	return s.config.BlockDurations[idx]
}

func remainingMinutes(until time.Time) int {
	minutes := int(math.Ceil(time.Until(until).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
