// Package auth resolves the tenant and user behind each request from an
// HS256 bearer token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLeeway is the clock skew tolerated on exp/nbf/iat.
const DefaultLeeway = 30 * time.Second

// DefaultTenantClaim names the claim carrying the tenant id.
const DefaultTenantClaim = "tenant_id"

// Dev mode headers, used when no secret is configured.
const (
	HeaderTenant = "X-Tenant-ID"
	HeaderUser   = "X-User-ID"
)

// Sentinel kinds for authentication failures.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrMissingToken = fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthorized)
	ErrExpiredToken = fmt.Errorf("%w: token has expired", ErrUnauthorized)
	ErrNoTenant     = fmt.Errorf("%w: no tenant", ErrUnauthorized)
)

// Principal is the caller of a request.
type Principal struct {
	UserID   string
	TenantID string
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal set by the middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator validates tokens. Tokens are signed with the current
// secret; the previous one is still accepted while secrets rotate.
type Authenticator struct {
	current     []byte
	previous    []byte
	leeway      time.Duration
	tenantClaim string
	now         func() time.Time
}

// New returns an Authenticator. An empty secret puts it in dev mode.
func New(secret string, opts ...Option) *Authenticator {
	a := &Authenticator{
		current:     []byte(secret),
		leeway:      DefaultLeeway,
		tenantClaim: DefaultTenantClaim,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DevMode reports whether tokens are ignored in favour of headers.
func (a *Authenticator) DevMode() bool { return len(a.current) == 0 }

// Sign issues a token for userID in tenantID valid for ttl.
func (a *Authenticator) Sign(userID, tenantID string, ttl time.Duration) (string, error) {
	if a.DevMode() {
		return "", errors.New("auth: no signing secret configured")
	}
	now := a.now()
	claims := jwt.MapClaims{
		"sub":         userID,
		"iat":         jwt.NewNumericDate(now),
		"exp":         jwt.NewNumericDate(now.Add(ttl)),
		a.tenantClaim: tenantID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.current)
}

// Validate parses a raw token into a Principal.
func (a *Authenticator) Validate(raw string) (Principal, error) {
	claims, err := a.parse(raw, a.current)
	if err != nil && a.previous != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = a.parse(raw, a.previous)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrExpiredToken
		}
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, _ := claims.GetSubject()
	tenant, _ := claims[a.tenantClaim].(string)
	if tenant == "" {
		return Principal{}, ErrNoTenant
	}
	return Principal{UserID: sub, TenantID: tenant}, nil
}

func (a *Authenticator) parse(raw string, secret []byte) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Authenticate resolves the principal of r.
func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	if a.DevMode() {
		p := Principal{
			TenantID: strings.TrimSpace(r.Header.Get(HeaderTenant)),
			UserID:   strings.TrimSpace(r.Header.Get(HeaderUser)),
		}
		if p.TenantID == "" {
			return Principal{}, ErrNoTenant
		}
		return p, nil
	}

	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		// browsers cannot set headers on a websocket upgrade
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	return a.Validate(strings.TrimSpace(token))
}

// Middleware rejects unauthenticated requests with onError and passes the
// principal down in the request context.
func (a *Authenticator) Middleware(next http.Handler, onError func(http.ResponseWriter, *http.Request, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r)
		if err != nil {
			onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
