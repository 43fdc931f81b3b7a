package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/chefbook/internal/auth"
)

// BearerToken puts the shell's bearer token on the request context so backend
// calls can forward it. Requests without a token, or with an expired one, get
// an empty 401 so the shell sends the user back to login.
func BearerToken(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token == "" || auth.Expired(token, now()) {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithToken(r.Context(), token)))
		})
	}
}
