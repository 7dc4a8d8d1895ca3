package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/zia-mazari/go-auth/internal/models"
	pkghttp "github.com/zia-mazari/go-auth/pkg/http"
)

type contextKey string

const claimsContextKey contextKey = "token_claims"

// ClaimsFromContext returns the token claims stored by Middleware.
func ClaimsFromContext(ctx context.Context) (*models.TokenClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*models.TokenClaims)
	return claims, ok
}

// ContextWithClaims stores token claims in a context.
func ContextWithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// Middleware validates the bearer token and stores its claims in the request
// context.
func (tm *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			pkghttp.WriteUnauthorized(w, "Authentication required")
			return
		}

		claims, err := tm.Validate(token)
		if err != nil {
			pkghttp.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
