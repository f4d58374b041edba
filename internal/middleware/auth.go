package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/ravin1227/photonix-sub000/internal/observability"
	"github.com/ravin1227/photonix-sub000/internal/repository"
)

type contextKey string

const UserContextKey contextKey = "user"

// apiKeyQueryParam carries the key for clients that cannot set headers,
// such as browser WebSocket connections
const apiKeyQueryParam = "api_key"

// GetUserFromContext retrieves the authenticated user from request context
func GetUserFromContext(ctx context.Context) *models.User {
	if user, ok := ctx.Value(UserContextKey).(*models.User); ok {
		return user
	}
	return nil
}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}

// UserAPIKeyAuth creates middleware that looks up users by API key hash.
// Paths in skipPaths pass through; a trailing * matches a prefix.
func UserAPIKeyAuth(userRepo repository.UserRepo, headerName string, skipPaths []string) func(http.Handler) http.Handler {
	skipSet := make(map[string]bool)
	for _, p := range skipPaths {
		skipSet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if skipSet[path] {
				next.ServeHTTP(w, r)
				return
			}
			for p := range skipSet {
				if strings.HasSuffix(p, "*") && strings.HasPrefix(path, strings.TrimSuffix(p, "*")) {
					next.ServeHTTP(w, r)
					return
				}
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				providedKey = r.URL.Query().Get(apiKeyQueryParam)
			}
			if providedKey == "" {
				writeError(w, http.StatusUnauthorized, "API key is required.")
				return
			}

			user, err := userRepo.GetByAPIKeyHash(r.Context(), models.HashAPIKey(providedKey))
			if err != nil {
				observability.WithContext(r.Context()).WithError(err).Error("API key lookup failed")
				writeError(w, http.StatusInternalServerError, "Internal server error.")
				return
			}
			if user == nil {
				writeError(w, http.StatusUnauthorized, "Invalid API key.")
				return
			}
			if !user.IsActive {
				writeError(w, http.StatusForbidden, "User account is disabled.")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}
