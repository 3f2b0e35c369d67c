package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/taskbridge/intake-backend/v1/utils"
)

// AdminAuthConfig configures the bearer-token check for administrator-only
// operations
type AdminAuthConfig struct {
	// Secret is the HMAC signing secret shared with the admin portal
	Secret string
	// ExpectedIssuer is matched against the token's iss claim
	ExpectedIssuer string
	// RequiredRole is matched against the token's role claim
	RequiredRole string
}

// Validate checks required configuration fields
func (c *AdminAuthConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("admin auth secret is required")
	}
	if c.ExpectedIssuer == "" {
		return fmt.Errorf("admin auth expected issuer is required")
	}
	return nil
}

// AdminAuthMiddleware gates the approve/decline operations behind a signed
// admin token
type AdminAuthMiddleware struct {
	config AdminAuthConfig
}

// NewAdminAuthMiddleware creates the admin auth middleware
func NewAdminAuthMiddleware(config AdminAuthConfig) *AdminAuthMiddleware {
	if config.RequiredRole == "" {
		config.RequiredRole = "admin"
	}
	return &AdminAuthMiddleware{config: config}
}

// RequireAdmin verifies the bearer token and the admin role claim before
// calling the wrapped handler
func (m *AdminAuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing bearer token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return []byte(m.config.Secret), nil
		}, jwt.WithIssuer(m.config.ExpectedIssuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			slog.Warn("Admin token rejected", "error", err)
			utils.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		if role, _ := claims["role"].(string); role != m.config.RequiredRole {
			utils.RespondWithError(w, http.StatusForbidden, "Administrator role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}
