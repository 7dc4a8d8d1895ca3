package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zia-mazari/go-auth/internal/database"
	"github.com/zia-mazari/go-auth/internal/models"
)

// EmailVerificationRepository handles verification-code data access.
type EmailVerificationRepository struct {
	pool *pgxpool.Pool
}

func NewEmailVerificationRepository(db *database.DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{pool: db.Pool}
}

func scanVerificationRow(scanner rowScanner) (*models.EmailVerification, error) {
	var v models.EmailVerification

	err := scanner.Scan(
		&v.ID, &v.UserID, &v.Code, &v.ExpiresAt,
		&v.Attempts, &v.Verified, &v.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &v, nil
}

func (r *EmailVerificationRepository) Create(ctx context.Context, userID, code string, expiresAt time.Time) (*models.EmailVerification, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO email_verifications (id, user_id, code, expires_at, attempts, verified)
		VALUES ($1, $2, $3, $4, 0, false)
		RETURNING id, user_id, code, expires_at, attempts, verified, created_at
	`

	v, err := scanVerificationRow(r.pool.QueryRow(ctx, query, id, userID, code, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create email verification: %w", err)
	}

	return v, nil
}

// GetPendingByUser returns the most recent unverified code for a user.
func (r *EmailVerificationRepository) GetPendingByUser(ctx context.Context, userID string) (*models.EmailVerification, error) {
	query := `
		SELECT id, user_id, code, expires_at, attempts, verified, created_at
		FROM email_verifications
		WHERE user_id = $1 AND verified = false
		ORDER BY created_at DESC
		LIMIT 1
	`

	return scanVerificationRow(r.pool.QueryRow(ctx, query, userID))
}

// IncrementAttempts atomically bumps the attempt counter and returns the new value.
func (r *EmailVerificationRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE email_verifications
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`

	var attempts int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		return 0, database.MapPostgresError(err)
	}

	return attempts, nil
}

func (r *EmailVerificationRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM email_verifications WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete email verification: %w", err)
	}

	return nil
}

// DeleteByUser removes every verification record for a user.
func (r *EmailVerificationRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM email_verifications WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete email verifications for user: %w", err)
	}

	return nil
}

// DeleteExpired purges lapsed codes globally.
func (r *EmailVerificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM email_verifications WHERE expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired email verifications: %w", err)
	}

	return result.RowsAffected(), nil
}
