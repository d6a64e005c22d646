package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ogurasousui/masters-service/internal/adapters/http/respond"
	"github.com/ogurasousui/masters-service/internal/core/scope"
)

var (
	// ErrMissingToken は Authorization ヘッダーに Bearer トークンがない場合に返却されます。
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken は署名や必須クレームの検証に失敗した場合に返却されます。
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims は認証サービスが発行するトークンのペイロードです。
type Claims struct {
	Login  string   `json:"login,omitempty"`
	Role   string   `json:"role"`
	Cities []string `json:"cities,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator は HS256 トークンを検証し、呼び出し元の Identity を組み立てます。
// トークンの発行は行いません。
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
	logger *slog.Logger
}

// NewAuthenticator は Authenticator を生成します。
func NewAuthenticator(secret string, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
		logger: logger,
	}
}

// Identify は生のトークン文字列を検証して Identity を返します。
func (a *Authenticator) Identify(raw string) (scope.Identity, error) {
	claims := &Claims{}
	token, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return scope.Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return scope.Identity{}, ErrInvalidToken
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return scope.Identity{}, fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	if strings.TrimSpace(claims.Role) == "" {
		return scope.Identity{}, fmt.Errorf("%w: role missing", ErrInvalidToken)
	}

	tenants := make([]string, 0, len(claims.Cities))
	for _, c := range claims.Cities {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			tenants = append(tenants, trimmed)
		}
	}

	return scope.Identity{
		ID:      subject,
		Role:    scope.ParseRole(claims.Role),
		Tenants: tenants,
	}, nil
}

// Authenticate は Bearer トークンを検証し、Identity をコンテキストへ格納します。
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		identity, err := a.Identify(raw)
		if err != nil {
			a.logger.WarnContext(r.Context(), "token rejected",
				slog.String("request_id", RequestIDFromContext(r.Context())),
				slog.String("error", err.Error()),
			)
			respond.Error(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(scope.WithIdentity(r.Context(), identity)))
	})
}

// RequireRoles は指定されたロール以外の呼び出し元を 403 で拒否します。
func RequireRoles(roles ...scope.Role) func(http.Handler) http.Handler {
	allowed := make(map[scope.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := scope.IdentityFromContext(r.Context())
			if !ok {
				respond.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if _, ok := allowed[identity.Role]; !ok {
				respond.Error(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMissingToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
