package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"
const testIssuer = "taskbridge-admin-portal"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":  testIssuer,
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func callProtected(t *testing.T, authHeader string) *httptest.ResponseRecorder {
	m := NewAdminAuthMiddleware(AdminAuthConfig{Secret: testSecret, ExpectedIssuer: testIssuer})
	handler := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submissions/g/approve", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthMiddleware(t *testing.T) {
	t.Run("Valid admin token passes", func(t *testing.T) {
		token := signToken(t, testSecret, adminClaims())
		rec := callProtected(t, "Bearer "+token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("Missing header is unauthorized", func(t *testing.T) {
		rec := callProtected(t, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Wrong secret is unauthorized", func(t *testing.T) {
		token := signToken(t, "other-secret", adminClaims())
		rec := callProtected(t, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Wrong issuer is unauthorized", func(t *testing.T) {
		claims := adminClaims()
		claims["iss"] = "someone-else"
		token := signToken(t, testSecret, claims)
		rec := callProtected(t, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Expired token is unauthorized", func(t *testing.T) {
		claims := adminClaims()
		claims["exp"] = time.Now().Add(-time.Hour).Unix()
		token := signToken(t, testSecret, claims)
		rec := callProtected(t, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Token without expiry is unauthorized", func(t *testing.T) {
		claims := adminClaims()
		delete(claims, "exp")
		token := signToken(t, testSecret, claims)
		rec := callProtected(t, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Non-admin role is forbidden", func(t *testing.T) {
		claims := adminClaims()
		claims["role"] = "support"
		token := signToken(t, testSecret, claims)
		rec := callProtected(t, "Bearer "+token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAdminAuthConfig_Validate(t *testing.T) {
	assert.Error(t, (&AdminAuthConfig{}).Validate())
	assert.Error(t, (&AdminAuthConfig{Secret: "s"}).Validate())
	assert.NoError(t, (&AdminAuthConfig{Secret: "s", ExpectedIssuer: "i"}).Validate())
}
