package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ravin1227/photonix-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUserRepo struct {
	users map[string]*models.User
	err   error
}

func (s *stubUserRepo) GetByAPIKeyHash(_ context.Context, hash string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.users[hash], nil
}

func (s *stubUserRepo) GetByEmail(context.Context, string) (*models.User, error) { return nil, nil }

func (s *stubUserRepo) Add(context.Context, *models.User) error { return nil }

func TestUserAPIKeyAuth(t *testing.T) {
	active, err := models.NewUser("a@example.com", "", "good-key")
	require.NoError(t, err)
	disabled, err := models.NewUser("b@example.com", "", "disabled-key")
	require.NoError(t, err)
	disabled.IsActive = false

	repo := &stubUserRepo{users: map[string]*models.User{
		active.APIKeyHash:   active,
		disabled.APIKeyHash: disabled,
	}}

	var seen *models.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := UserAPIKeyAuth(repo, "X-API-Key", []string{"/api/health", "/public/*"})(next)

	tests := []struct {
		name     string
		target   string
		key      string
		wantCode int
		wantUser *models.User
	}{
		{"valid header", "/api/photos", "good-key", http.StatusNoContent, active},
		{"missing key", "/api/photos", "", http.StatusUnauthorized, nil},
		{"unknown key", "/api/photos", "nope", http.StatusUnauthorized, nil},
		{"disabled user", "/api/photos", "disabled-key", http.StatusForbidden, nil},
		{"query parameter", "/api/ws?api_key=good-key", "", http.StatusNoContent, active},
		{"skipped path", "/api/health", "", http.StatusNoContent, nil},
		{"skipped prefix", "/public/logo.png", "", http.StatusNoContent, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}

	t.Run("lookup failure is a server error", func(t *testing.T) {
		failing := UserAPIKeyAuth(&stubUserRepo{err: errors.New("db down")}, "X-API-Key", nil)(next)
		req := httptest.NewRequest(http.MethodGet, "/api/photos", nil)
		req.Header.Set("X-API-Key", "good-key")
		rec := httptest.NewRecorder()

		failing.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
