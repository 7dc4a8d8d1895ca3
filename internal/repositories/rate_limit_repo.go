package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/zia-mazari/go-auth/internal/database"
	"github.com/zia-mazari/go-auth/internal/models"
)

// RateLimitRepository persists attempt counters keyed by an explicit
// (purpose, client_ip, identity) triple. Increments are single atomic
// statements so concurrent failures from the same pair cannot lose updates.
type RateLimitRepository struct {
	db *database.DB
}

func NewRateLimitRepository(db *database.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

func scanRateLimitRow(scanner rowScanner) (*models.RateLimitRecord, error) {
	var rec models.RateLimitRecord
	var blockedUntil *time.Time

	err := scanner.Scan(
		&rec.ID, &rec.Purpose, &rec.ClientIP, &rec.Identity,
		&rec.AttemptCount, &rec.BlockCount, &blockedUntil,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	rec.BlockedUntil = blockedUntil
	return &rec, nil
}

// Get returns the record for a key, or models.ErrNotFound.
func (r *RateLimitRepository) Get(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error) {
	query := `
		SELECT id, purpose, client_ip, identity, attempt_count, block_count, blocked_until, created_at, updated_at
		FROM rate_limits
		WHERE purpose = $1 AND client_ip = $2 AND identity = $3
	`

	return scanRateLimitRow(r.db.Pool.QueryRow(ctx, query, purpose, clientIP, identity))
}

// IncrementAttempt creates the record with attempt_count = 1 or atomically
// bumps the existing counter, returning the row as stored after the write.
func (r *RateLimitRepository) IncrementAttempt(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) (*models.RateLimitRecord, error) {
	query := `
		INSERT INTO rate_limits (purpose, client_ip, identity, attempt_count, block_count)
		VALUES ($1, $2, $3, 1, 0)
		ON CONFLICT (purpose, client_ip, identity)
		DO UPDATE SET attempt_count = rate_limits.attempt_count + 1, updated_at = NOW()
		RETURNING id, purpose, client_ip, identity, attempt_count, block_count, blocked_until, created_at, updated_at
	`

	rec, err := scanRateLimitRow(r.db.Pool.QueryRow(ctx, query, purpose, clientIP, identity))
	if err != nil {
		return nil, fmt.Errorf("failed to increment attempt count: %w", err)
	}

	return rec, nil
}

// IncrementAttemptBelow bumps the counter only while block_count is under the
// ceiling. Returns models.ErrNotFound when no record matches, which callers
// treat as "nothing to count".
func (r *RateLimitRepository) IncrementAttemptBelow(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string, maxBlockCount int) (*models.RateLimitRecord, error) {
	query := `
		UPDATE rate_limits
		SET attempt_count = attempt_count + 1, updated_at = NOW()
		WHERE purpose = $1 AND client_ip = $2 AND identity = $3 AND block_count < $4
		RETURNING id, purpose, client_ip, identity, attempt_count, block_count, blocked_until, created_at, updated_at
	`

	return scanRateLimitRow(r.db.Pool.QueryRow(ctx, query, purpose, clientIP, identity, maxBlockCount))
}

// RaiseBlockCount writes a new block count, guarded so the stored value can
// never decrease even under concurrent recomputation.
func (r *RateLimitRepository) RaiseBlockCount(ctx context.Context, id string, blockCount int) error {
	query := `
		UPDATE rate_limits
		SET block_count = $2, updated_at = NOW()
		WHERE id = $1 AND block_count < $2
	`

	_, err := r.db.Pool.Exec(ctx, query, id, blockCount)
	if err != nil {
		return fmt.Errorf("failed to raise block count: %w", err)
	}

	return nil
}

// SetBlockedUntil opens (or extends) a block window on a record.
func (r *RateLimitRepository) SetBlockedUntil(ctx context.Context, id string, until time.Time) error {
	query := `UPDATE rate_limits SET blocked_until = $2, updated_at = NOW() WHERE id = $1`

	_, err := r.db.Pool.Exec(ctx, query, id, until)
	if err != nil {
		return fmt.Errorf("failed to set blocked_until: %w", err)
	}

	return nil
}

// ResetAttempts zeroes attempt_count while leaving blocked_until untouched.
func (r *RateLimitRepository) ResetAttempts(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error {
	query := `
		UPDATE rate_limits
		SET attempt_count = 0, updated_at = NOW()
		WHERE purpose = $1 AND client_ip = $2 AND identity = $3
	`

	_, err := r.db.Pool.Exec(ctx, query, purpose, clientIP, identity)
	if err != nil {
		return fmt.Errorf("failed to reset attempt count: %w", err)
	}

	return nil
}

// ExpireBlock clears a lapsed block window: attempt_count goes back to zero,
// blocked_until is removed, block_count stays for progressive penalties.
func (r *RateLimitRepository) ExpireBlock(ctx context.Context, id string) error {
	query := `
		UPDATE rate_limits
		SET attempt_count = 0, blocked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to expire block: %w", err)
	}

	return nil
}

// Delete removes the record for a key entirely.
func (r *RateLimitRepository) Delete(ctx context.Context, purpose models.RateLimitPurpose, clientIP, identity string) error {
	query := `DELETE FROM rate_limits WHERE purpose = $1 AND client_ip = $2 AND identity = $3`

	_, err := r.db.Pool.Exec(ctx, query, purpose, clientIP, identity)
	if err != nil {
		return fmt.Errorf("failed to delete rate limit record: %w", err)
	}

	return nil
}

// DeleteByIdentity removes every purpose's counters for an account identity,
// regardless of client IP. Used after a successful password reset.
func (r *RateLimitRepository) DeleteByIdentity(ctx context.Context, identity string) error {
	query := `DELETE FROM rate_limits WHERE identity = $1`

	_, err := r.db.Pool.Exec(ctx, query, identity)
	if err != nil {
		return fmt.Errorf("failed to delete rate limit records for identity: %w", err)
	}

	return nil
}

// CleanupStale deletes records with no active block that have not been
// touched within the retention window.
func (r *RateLimitRepository) CleanupStale(ctx context.Context, retention time.Duration) (int64, error) {
	query := `
		DELETE FROM rate_limits
		WHERE (blocked_until IS NULL OR blocked_until < NOW())
		  AND updated_at < NOW() - make_interval(secs => $1)
	`

	result, err := r.db.Pool.Exec(ctx, query, retention.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup stale rate limit records: %w", err)
	}

	return result.RowsAffected(), nil
}
