package http

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope every API endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// BlockedData carries the machine-readable block window alongside the
// human-readable message of a 429 response.
type BlockedData struct {
	BlockedUntil time.Time `json:"blocked_until"`
	DurationMs   int64     `json:"duration_ms"`
}

// WriteJSON writes an arbitrary payload with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteSuccess writes a successful envelope
func WriteSuccess(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	WriteJSON(w, statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// WriteError writes a failed envelope with the given status code
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// WriteBlocked writes the 429 envelope for an active rate-limit block
func WriteBlocked(w http.ResponseWriter, message string, blockedUntil time.Time, duration time.Duration) {
	WriteJSON(w, http.StatusTooManyRequests, Response{
		Success: false,
		Message: message,
		Data: BlockedData{
			BlockedUntil: blockedUntil,
			DurationMs:   duration.Milliseconds(),
		},
	})
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message)
}
