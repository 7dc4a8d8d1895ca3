package models

import "time"

// EmailVerification represents the single outstanding verification code for
// a user. Requesting a new code replaces any prior unverified one.
type EmailVerification struct {
	ID        string
	UserID    string
	Code      string
	ExpiresAt time.Time
	Attempts  int
	Verified  bool
	CreatedAt time.Time
}

func (v *EmailVerification) IsExpired() bool {
	return time.Now().After(v.ExpiresAt)
}
