package models

import (
	"errors"
	"time"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	ErrInvalidResetCode = errors.New("reset code is invalid or expired")
)

// BlockedError is returned when a rate-limit block is in effect. It carries
// the user-facing wait message plus the window bounds so handlers can surface
// blocked_until / duration_ms in the response body.
type BlockedError struct {
	Message      string
	BlockedUntil time.Time
	Duration     time.Duration
}

func (e *BlockedError) Error() string {
	return e.Message
}
