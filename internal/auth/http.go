// ABOUTME: HTTP middleware for JWT authentication on API and realtime endpoints
// ABOUTME: Extracts the token from the Authorization header or access_token query and adds the user to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/huddle/internal/store"
)

// UserFinder resolves a user id to a user, returning nil when unknown.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// requestToken prefers the Authorization header and falls back to the
// access_token query parameter, which browsers must use for WebSocket upgrades.
func requestToken(r *http.Request) (string, string) {
	if r.Header.Get("Authorization") == "" {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, ""
		}
	}
	return extractBearerToken(r.Header.Get("Authorization"))
}

// HTTPAuthMiddleware creates an HTTP middleware that validates JWT tokens and
// confirms the subject is still a registered user.
func HTTPAuthMiddleware(users UserFinder, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := requestToken(r)
			if errMsg != "" {
				writeUnauthorized(w, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, "invalid token")
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				return
			}
			if user == nil {
				writeUnauthorized(w, "user not found")
				return
			}

			authCtx := &AuthContext{UserID: user.ID, Username: user.Username}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
