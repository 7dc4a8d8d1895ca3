package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zia-mazari/go-auth/internal/database"
	"github.com/zia-mazari/go-auth/internal/models"
)

// PasswordResetRepository handles the outstanding reset-code pool.
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

func scanResetTokenRow(scanner rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken

	err := scanner.Scan(
		&token.ID, &token.UserID, &token.Email, &token.Code,
		&token.ExpiresAt, &token.Used, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &token, nil
}

func scanResetTokenRows(rows pgx.Rows) ([]*models.PasswordResetToken, error) {
	defer rows.Close()

	tokens := make([]*models.PasswordResetToken, 0)

	for rows.Next() {
		token, err := scanResetTokenRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan password reset token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token rows: %w", err)
	}

	return tokens, nil
}

func (r *PasswordResetRepository) Create(ctx context.Context, userID, email, code string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	id := uuid.New().String()

	query := `
		INSERT INTO password_reset_tokens (id, user_id, email, code, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, false)
		RETURNING id, user_id, email, code, expires_at, used, created_at
	`

	token, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, id, userID, email, code, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}

	return token, nil
}

// GetActiveByCode returns the unused, unexpired token matching a code.
func (r *PasswordResetRepository) GetActiveByCode(ctx context.Context, code string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, email, code, expires_at, used, created_at
		FROM password_reset_tokens
		WHERE code = $1 AND used = false AND expires_at > NOW()
	`

	return scanResetTokenRow(r.pool.QueryRow(ctx, query, code))
}

// ListActiveByUser returns unused, unexpired tokens oldest-first, the order
// the bounded-pool eviction consumes them in.
func (r *PasswordResetRepository) ListActiveByUser(ctx context.Context, userID string) ([]*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, email, code, expires_at, used, created_at
		FROM password_reset_tokens
		WHERE user_id = $1 AND used = false AND expires_at > NOW()
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query active reset tokens: %w", err)
	}

	return scanResetTokenRows(rows)
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE password_reset_tokens SET used = true WHERE id = $1 AND used = false`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (r *PasswordResetRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `DELETE FROM password_reset_tokens WHERE id = ANY($1)`

	_, err := r.pool.Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", err)
	}

	return nil
}

// DeleteByUser destroys every outstanding token for an account.
func (r *PasswordResetRepository) DeleteByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete reset tokens for user: %w", err)
	}

	return nil
}

// DeleteExpiredByUser purges only the lapsed tokens for an account.
func (r *PasswordResetRepository) DeleteExpiredByUser(ctx context.Context, userID string) error {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1 AND expires_at <= NOW()`

	_, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete expired reset tokens for user: %w", err)
	}

	return nil
}

// DeleteExpired purges lapsed tokens globally.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at <= NOW()`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired reset tokens: %w", err)
	}

	return result.RowsAffected(), nil
}
