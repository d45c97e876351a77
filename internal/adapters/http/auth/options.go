package auth

import "time"

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithPreviousSecret accepts tokens signed with a rotated-out secret.
func WithPreviousSecret(secret string) Option {
	return func(a *Authenticator) {
		if secret != "" {
			a.previous = []byte(secret)
		}
	}
}

// WithLeeway sets the tolerated clock skew.
func WithLeeway(d time.Duration) Option {
	return func(a *Authenticator) {
		if d >= 0 {
			a.leeway = d
		}
	}
}

// WithTenantClaim changes the claim read for the tenant id.
func WithTenantClaim(name string) Option {
	return func(a *Authenticator) {
		if name != "" {
			a.tenantClaim = name
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}
