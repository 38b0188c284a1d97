package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

// Kind distinguishes access tokens from refresh tokens inside the signed
// payload, so one can never be presented in place of the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the decoded content of a signed token. All timestamps are UTC
// with second precision, matching the wire representation.
type Claims struct {
	Subject   string
	Scopes    []string
	ClientID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
	Kind      Kind
}

// jwtClaims is the internal claims layout used for signing and parsing.
type jwtClaims struct {
	jwt.RegisteredClaims
	Scopes   []string `json:"scopes"`
	ClientID string   `json:"client_id"`
	Kind     string   `json:"type"`
}

// Codec mints and verifies HS256-signed self-contained tokens.
//
// Decode is a pure parse+verify step: it rejects tampering and structural
// garbage but does not check expiry or revocation. Those checks belong to
// the authorization engine, which layers them on top.
type Codec struct {
	secret []byte
	now    func() time.Time
}

func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// NewCodecWithClock is like NewCodec but with an injectable clock for tests.
func NewCodecWithClock(secret string, now func() time.Time) *Codec {
	return &Codec{
		secret: []byte(secret),
		now:    now,
	}
}

// Mint produces a signed token for the subject with expiry issued-at + ttl
// and a freshly generated unique id. The returned Claims mirror exactly what
// was embedded in the token.
func (c *Codec) Mint(subject string, scopes []string, clientID string, ttl time.Duration, kind Kind) (string, Claims, error) {
	issuedAt := c.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl)

	claims := Claims{
		Subject:   subject,
		Scopes:    scopes,
		ClientID:  clientID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		ID:        uuid.NewString(),
		Kind:      kind,
	}

	payload := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
			ID:        claims.ID,
		},
		Scopes:   claims.Scopes,
		ClientID: claims.ClientID,
		Kind:     string(claims.Kind),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(c.secret)
	if err != nil {
		return "", Claims{}, apperrors.InternalError("failed to sign token", err)
	}

	return signed, claims, nil
}

// Decode verifies the signature and structure of a token and returns its
// claims. It fails closed: any parse or signature problem comes back as a
// token-invalid error, never a panic or a partial result.
func (c *Codec) Decode(tokenString string) (Claims, error) {
	var parsed jwtClaims

	_, err := jwt.ParseWithClaims(tokenString, &parsed, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, apperrors.TokenInvalidError("invalid token", err)
	}

	claims := Claims{
		Subject:  parsed.Subject,
		Scopes:   parsed.Scopes,
		ClientID: parsed.ClientID,
		ID:       parsed.ID,
		Kind:     Kind(parsed.Kind),
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time.UTC()
	}

	return claims, nil
}

// Expired reports whether the claims have expired at the given instant.
// Exact equality counts as expired.
func (cl Claims) Expired(now time.Time) bool {
	return !now.UTC().Before(cl.ExpiresAt)
}

// TTLRemaining reports how long the claims stay valid from the given instant.
func (cl Claims) TTLRemaining(now time.Time) time.Duration {
	return cl.ExpiresAt.Sub(now.UTC())
}
