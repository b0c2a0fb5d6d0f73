package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsers map[int64]*models.User

func (s stubUsers) GetUser(_ context.Context, id int64) (*models.User, error) {
	if id == 99 {
		return nil, errors.New("connection reset")
	}
	u, ok := s[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return u, nil
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestHTTPAuthWrap(t *testing.T) {
	cfg := config.APIConfig{
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "valid-key", Extra: "valid-extra", Permissions: []string{permReadReservations}},
				{Key: "full-key", Extra: "full-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
	auth := NewHTTPAuth(cfg, stubUsers{})
	handler := auth.Wrap(http.HandlerFunc(okHandler))

	do := func(method, path, key, extra string) int {
		req := httptest.NewRequest(method, path, nil)
		if key != "" {
			req.Header.Set("x-api-key", key)
		}
		if extra != "" {
			req.Header.Set("x-api-extra", extra)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("Success", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/reservations", "valid-key", "valid-extra"))
	})

	t.Run("HealthWithoutKeys", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/healthz", "", ""))
	})

	t.Run("MissingHeaders", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/reservations", "", ""))
	})

	t.Run("InvalidKey", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/reservations", "invalid", "valid-extra"))
	})

	t.Run("InvalidExtra", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodGet, "/api/v1/reservations", "valid-key", "invalid"))
	})

	t.Run("PermissionDenied", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, do(http.MethodPut, "/api/v1/reservations/1/status", "valid-key", "valid-extra"))
	})

	t.Run("EmptyPermissionsMeansFullAccess", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/reservations/export", "full-key", "full-extra"))
	})
}

func TestHTTPAuthRateLimit(t *testing.T) {
	cfg := config.APIConfig{
		Auth:      config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	}
	handler := NewHTTPAuth(cfg, stubUsers{}).Wrap(http.HandlerFunc(okHandler))

	send := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/stats", nil)
		req.Header.Set("x-api-key", "key1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// First request - ok
	assert.Equal(t, http.StatusOK, send())
	// Second request - blocked
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRequireActor(t *testing.T) {
	users := stubUsers{
		1: {ID: 1, Username: "anna", Role: models.RoleUser},
	}
	auth := NewHTTPAuth(config.APIConfig{}, users)

	var seen *models.User
	handler := auth.RequireActor(func(w http.ResponseWriter, r *http.Request) {
		seen = actorFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"Known", "1", http.StatusOK},
		{"Missing", "", http.StatusUnauthorized},
		{"NotANumber", "abc", http.StatusUnauthorized},
		{"Unknown", "7", http.StatusUnauthorized},
		{"LookupFailure", "99", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/reservations", nil)
			if tt.header != "" {
				req.Header.Set("x-actor-id", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "anna", seen.Username)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestRequiredPermission(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   string
	}{
		{http.MethodGet, "/api/v1/reservations/export", permExport},
		{http.MethodPut, "/api/v1/reservations/12/status", permReview},
		{http.MethodPost, "/api/v1/reservations", permWriteReservations},
		{http.MethodGet, "/api/v1/reservations", permReadReservations},
		{http.MethodGet, "/api/v1/conflicts", permReadReservations},
		{http.MethodGet, "/metrics", ""},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		assert.Equal(t, tt.want, requiredPermission(req), tt.path)
	}
}
