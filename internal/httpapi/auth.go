package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in access tokens. Admins may change the installed set;
// clinicians may read and run prompts.
const (
	RoleAdmin     = "admin"
	RoleClinician = "clinician"
)

// Claims is the HS256 access token payload.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

type ctxKey int

const claimsKey ctxKey = iota

// authSecret enables bearer-token checks on /local and /providers when non-empty.
var authSecret []byte

// SetAuthSecret installs the HMAC secret. An empty secret disables auth.
func SetAuthSecret(secret string) {
	if secret == "" {
		authSecret = nil
		return
	}
	authSecret = []byte(secret)
}

// IssueToken signs an access token for subject with the given role.
func IssueToken(secret, subject, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if role == "" {
		role = RoleClinician
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			Issuer:   "medmodeld",
			IssuedAt: jwt.NewNumericDate(now),
		},
		Role: role,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(raw string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ClaimsFromContext returns the verified claims of the request, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// requireAuth rejects requests without a valid bearer token. It is a
// pass-through while no secret is configured.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret := authSecret
		if len(secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		h := r.Header.Get("Authorization")
		scheme, raw, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
			writeFailure(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := parseToken(strings.TrimSpace(raw), secret)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// requireRole allows the request when auth is disabled or the token carries role.
func requireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(authSecret) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			c, ok := ClaimsFromContext(r.Context())
			if !ok || c.Role != role {
				writeFailure(w, http.StatusForbidden, "role "+role+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
