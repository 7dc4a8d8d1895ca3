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

// UserDetailRepository handles the 1:1 profile-detail records.
type UserDetailRepository struct {
	pool *pgxpool.Pool
}

func NewUserDetailRepository(db *database.DB) *UserDetailRepository {
	return &UserDetailRepository{pool: db.Pool}
}

func scanUserDetailRow(scanner rowScanner) (*models.UserDetail, error) {
	var detail models.UserDetail

	err := scanner.Scan(
		&detail.ID, &detail.UserID,
		&detail.FirstName, &detail.LastName, &detail.Gender,
		&detail.DateOfBirth, &detail.PhoneNumber, &detail.ProfilePicture,
		&detail.CreatedAt, &detail.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &detail, nil
}

func (r *UserDetailRepository) GetByUserID(ctx context.Context, userID string) (*models.UserDetail, error) {
	query := `
		SELECT id, user_id, first_name, last_name, gender, date_of_birth, phone_number, profile_picture, created_at, updated_at
		FROM user_details WHERE user_id = $1
	`

	return scanUserDetailRow(r.pool.QueryRow(ctx, query, userID))
}

func (r *UserDetailRepository) Create(ctx context.Context, userID string) (*models.UserDetail, error) {
	id := uuid.New().String()
	now := time.Now()

	query := `
		INSERT INTO user_details (id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, first_name, last_name, gender, date_of_birth, phone_number, profile_picture, created_at, updated_at
	`

	detail, err := scanUserDetailRow(r.pool.QueryRow(ctx, query, id, userID, now, now))
	if err != nil {
		return nil, fmt.Errorf("failed to create user detail: %w", err)
	}

	return detail, nil
}

func (r *UserDetailRepository) Update(ctx context.Context, detail *models.UserDetail) (*models.UserDetail, error) {
	query := `
		UPDATE user_details
		SET first_name = $2, last_name = $3, gender = $4, date_of_birth = $5,
		    phone_number = $6, profile_picture = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING id, user_id, first_name, last_name, gender, date_of_birth, phone_number, profile_picture, created_at, updated_at
	`

	updated, err := scanUserDetailRow(r.pool.QueryRow(ctx, query,
		detail.ID, detail.FirstName, detail.LastName, detail.Gender,
		detail.DateOfBirth, detail.PhoneNumber, detail.ProfilePicture,
	))
	if err != nil {
		return nil, err
	}

	return updated, nil
}
