package middleware

import (
	"net/http"
	"os"
	"strings"
)

// NewCORSMiddleware builds a CORS handler wrapper. Allowed origins come
// from CORS_ALLOWED_ORIGINS (comma-separated); unset allows any origin.
func NewCORSMiddleware() func(http.Handler) http.Handler {
	var allowed []string
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed = append(allowed, origin)
		}
	}

	allowOrigin := func(origin string) string {
		if len(allowed) == 0 {
			return "*"
		}
		for _, a := range allowed {
			if a == origin {
				return origin
			}
		}
		return ""
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := allowOrigin(r.Header.Get("Origin")); origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
