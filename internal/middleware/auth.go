package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"personastudio/internal/domain"
	"personastudio/internal/identity"
)

// TokenVerifier turns a bearer token into the user it was issued to.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}

// Authenticate rejects requests without a valid bearer token. The verified
// user and the token are attached to the request context for downstream
// clients.
func Authenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(v, true)
}

// MaybeAuthenticate attaches the user when a valid bearer token is present and
// lets anonymous requests through. A present but invalid token is rejected.
func MaybeAuthenticate(v TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(v, false)
}

func authenticate(v TokenVerifier, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				if required {
					writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization")
				return
			}
			token := strings.TrimSpace(parts[1])
			user, err := v.Verify(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			ctx := identity.WithBearer(r.Context(), *user, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user's subject, or "".
func UserIDFromContext(ctx context.Context) string {
	if user, ok := identity.UserFromContext(ctx); ok {
		return user.Sub
	}
	return ""
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var body errorBody
	body.Error.Code = code
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
