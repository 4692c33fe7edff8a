package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/carepath-labs/skillverify/internal/api"
	"github.com/carepath-labs/skillverify/internal/domain"
)

// APIKeyAuth validates the Authorization bearer token against the configured
// service key. An empty configured key disables authentication, which is the
// local-development mode.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				api.Error(w, http.StatusUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				api.HandleError(w, domain.ErrInvalidAPIKey)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
