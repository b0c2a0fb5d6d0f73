package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"spacebook/internal/config"
	"spacebook/internal/database"
	"spacebook/internal/domain"
	"spacebook/internal/models"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"
	actorHeaderDefault    = "x-actor-id"
	permReadReservations  = "read:reservations"
	permWriteReservations = "write:reservations"
	permReview            = "review:reservations"
	permExport            = "export:reservations"
	clientKeyUnknown      = "unknown"
)

var (
	errMissingKey       = errors.New("missing api key headers")
	errInvalidKey       = errors.New("invalid api key")
	errInvalidExtra     = errors.New("invalid extra header")
	errPermissionDenied = errors.New("permission denied")
	errMissingActor     = errors.New("missing or invalid actor header")
	errUnknownActor     = errors.New("unknown actor")
)

type actorKey struct{}

// HTTPAuth checks the client API key pair, applies per-client rate limiting
// and resolves the acting user.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
	users   domain.UserDirectory
}

func NewHTTPAuth(cfg config.APIConfig, users domain.UserDirectory) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{
		cfg:     cfg,
		clients: m,
		limiter: newRateLimiter(cfg.RateLimit),
		users:   users,
	}
}

// Wrap authenticates the client application. Health checks pass through.
func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error(), "")
				return
			}
		}

		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireActor resolves the acting user from the actor header and stores it
// in the request context.
func (a *HTTPAuth) RequireActor(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderActor, actorHeaderDefault)))
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, errMissingActor.Error(), "")
			return
		}

		user, err := a.users.GetUser(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, errUnknownActor.Error(), "")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to resolve actor", "")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), actorKey{}, user)))
	}
}

func actorFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(actorKey{}).(*models.User)
	return u
}

func (a *HTTPAuth) header(configured, fallback string) string {
	h := strings.TrimSpace(strings.ToLower(configured))
	if h == "" {
		return fallback
	}
	return h
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)))
	extra := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderExtra, apiExtraHeaderDefault)))
	if apiKey == "" || extra == "" {
		return errMissingKey
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return errInvalidKey
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return errInvalidExtra
	}

	return checkPermissions(client, requiredPermission(r))
}

func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" {
		return nil
	}
	// Пустой список разрешений означает полный доступ
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case path == "/api/v1/reservations/export":
		return permExport
	case strings.HasPrefix(path, "/api/v1/reservations/") && strings.HasSuffix(path, "/status"):
		return permReview
	case path == "/api/v1/reservations" && r.Method == http.MethodPost:
		return permWriteReservations
	case strings.HasPrefix(path, "/api/v1/"):
		return permReadReservations
	default:
		return ""
	}
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.header(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault))); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
