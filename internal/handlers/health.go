package handlers

import (
	"net/http"

	"github.com/zia-mazari/go-auth/internal/database"
	pkghttp "github.com/zia-mazari/go-auth/pkg/http"
)

// HealthHandler reports service and database health
type HealthHandler struct {
	db *database.DB
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check verifies database connectivity
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(r.Context()); err != nil {
		pkghttp.WriteError(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "OK", nil)
}
