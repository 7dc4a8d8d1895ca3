package models

import "time"

// RateLimitPurpose namespaces counters so that login, reset-request and
// reset-failure tracking for the same (ip, identity) pair never collide.
type RateLimitPurpose string

const (
	PurposeLogin        RateLimitPurpose = "login"
	PurposeResetRequest RateLimitPurpose = "pwd_reset_request"
	PurposeResetFailure RateLimitPurpose = "pwd_reset_failure"
)

// RateLimitRecord tracks failed attempts for a (purpose, client IP, identity)
// triple. BlockCount is monotonically non-decreasing: it counts how many times
// the pair has crossed the attempt threshold and drives progressive penalties.
type RateLimitRecord struct {
	ID           string
	Purpose      RateLimitPurpose
	ClientIP     string
	Identity     string
	AttemptCount int
	BlockCount   int
	BlockedUntil *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RateLimitStats is the read-only view returned by introspection.
type RateLimitStats struct {
	AttemptCount int
	BlockCount   int
	BlockedUntil *time.Time
}

// BlockDecision is the outcome of a rate-limit check or mutation. BlockCount
// lets callers spot repeat offenders without a second lookup.
type BlockDecision struct {
	Blocked      bool
	Message      string
	BlockedUntil time.Time
	Duration     time.Duration
	BlockCount   int
}
