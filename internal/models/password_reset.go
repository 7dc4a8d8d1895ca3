package models

import "time"

// PasswordResetToken represents one outstanding 6-digit reset code. At most
// a configured number of unused, unexpired tokens exist per user; the oldest
// are evicted when a new one is issued.
type PasswordResetToken struct {
	ID        string
	UserID    string
	Email     string
	Code      string
	ExpiresAt time.Time
	Used      bool
	CreatedAt time.Time
}

func (t *PasswordResetToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// IsActive reports whether the token can still be redeemed.
func (t *PasswordResetToken) IsActive() bool {
	return !t.Used && !t.IsExpired()
}
