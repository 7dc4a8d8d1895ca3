package models

import (
	"time"
)

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsVerified   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserDetail holds optional profile fields. A user owns at most one detail
// record; it is created lazily on the first profile update.
type UserDetail struct {
	ID             string
	UserID         string
	FirstName      *string
	LastName       *string
	Gender         *string
	DateOfBirth    *time.Time
	PhoneNumber    *string
	ProfilePicture *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
