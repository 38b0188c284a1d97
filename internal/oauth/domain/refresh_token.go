package domain

import (
	"time"
)

// RefreshToken is the long-lived credential record backing the refresh
// grant. The same token is reused until its own expiry or explicit
// revocation; there is no rotation.
type RefreshToken struct {
	ID        int64
	Token     string
	Email     string
	ClientID  string
	Scopes    []string
	IsRevoked bool
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the refresh token itself has run out. Exact
// equality counts as expired.
func (t RefreshToken) Expired(now time.Time) bool {
	return !now.UTC().Before(t.ExpiresAt)
}
