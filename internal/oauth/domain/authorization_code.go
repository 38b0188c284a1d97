package domain

import (
	"time"
)

// AuthorizationCodeLifetime is the fixed window between issuing a code and
// the last instant it can be redeemed.
const AuthorizationCodeLifetime = 10 * time.Minute

// AuthorizationCode is the single-use proof of a completed login. It is
// consumed (deleted) exactly once, on redemption or on expiry detection.
type AuthorizationCode struct {
	ID          int64
	Code        string
	ClientID    string
	Email       string
	Scopes      []string
	RedirectURI string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the code's redemption window has closed. Exact
// equality counts as expired.
func (c AuthorizationCode) Expired(now time.Time) bool {
	return !now.UTC().Before(c.ExpiresAt)
}
