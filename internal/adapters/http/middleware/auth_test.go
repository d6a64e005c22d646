package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ogurasousui/masters-service/internal/core/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims Claims) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(sub, role string, cities ...string) Claims {
	now := time.Now()
	return Claims{
		Role:   role,
		Cities: cities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func identityEcho(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := scope.IdentityFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_ = json.NewEncoder(w).Encode(identity)
	})
}

func TestAuthenticate_ValidToken(t *testing.T) {
	t.Parallel()

	auth := NewAuthenticator(testSecret, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	token := signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("d-1", "director", "Moscow", " ", "Kazan"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	auth.Authenticate(identityEcho(t)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got scope.Identity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "d-1", got.ID)
	assert.Equal(t, scope.RoleTenantAdmin, got.Role)
	assert.Equal(t, []string{"Moscow", "Kazan"}, got.Tenants)
}

func TestAuthenticate_Rejects(t *testing.T) {
	t.Parallel()

	expired := validClaims("d-1", "director")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims("d-1", "director")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name   string
		header func(t *testing.T) string
	}{
		{name: "missing header", header: func(*testing.T) string { return "" }},
		{name: "wrong scheme", header: func(*testing.T) string { return "Basic abc" }},
		{name: "wrong secret", header: func(t *testing.T) string {
			return "Bearer " + signToken(t, "another-secret-another-secret-xx", jwt.SigningMethodHS256, validClaims("d-1", "director"))
		}},
		{name: "wrong algorithm", header: func(t *testing.T) string {
			return "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS384, validClaims("d-1", "director"))
		}},
		{name: "expired", header: func(t *testing.T) string {
			return "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, expired)
		}},
		{name: "no expiry", header: func(t *testing.T) string {
			return "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, noExpiry)
		}},
		{name: "missing subject", header: func(t *testing.T) string {
			return "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("", "director"))
		}},
		{name: "missing role", header: func(t *testing.T) string {
			return "Bearer " + signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("d-1", ""))
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth := NewAuthenticator(testSecret, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if h := tt.header(t); h != "" {
				req.Header.Set("Authorization", h)
			}
			rec := httptest.NewRecorder()

			auth.Authenticate(identityEcho(t)).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}

func TestAuthenticate_UnknownRoleIsKeptRestricted(t *testing.T) {
	t.Parallel()

	auth := NewAuthenticator(testSecret, nil)
	identity, err := auth.Identify(signToken(t, testSecret, jwt.SigningMethodHS256, validClaims("op-1", "operator", "Moscow")))
	require.NoError(t, err)
	assert.Equal(t, scope.Role(""), identity.Role)
	assert.True(t, identity.SelfScoped())
}

func TestRequireRoles(t *testing.T) {
	t.Parallel()

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	guard := RequireRoles(scope.RoleGlobalAdmin, scope.RoleTenantAdmin)(ok)

	tests := []struct {
		name     string
		identity *scope.Identity
		want     int
	}{
		{name: "no identity", identity: nil, want: http.StatusUnauthorized},
		{name: "global admin", identity: &scope.Identity{ID: "a", Role: scope.RoleGlobalAdmin}, want: http.StatusNoContent},
		{name: "tenant admin", identity: &scope.Identity{ID: "d", Role: scope.RoleTenantAdmin}, want: http.StatusNoContent},
		{name: "worker", identity: &scope.Identity{ID: "m", Role: scope.RoleSelfWorker}, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.identity != nil {
				req = req.WithContext(scope.WithIdentity(req.Context(), *tt.identity))
			}
			rec := httptest.NewRecorder()
			guard.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
