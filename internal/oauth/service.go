package oauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/etudehq/etude-auth/internal/account"
	"github.com/etudehq/etude-auth/internal/config"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth/clients"
	"github.com/etudehq/etude-auth/internal/oauth/domain"
	"github.com/etudehq/etude-auth/internal/oauth/revocation"
	"github.com/etudehq/etude-auth/internal/oauth/token"
)

// DefaultScope is granted when a client asks for no scopes at all.
const DefaultScope = "profile"

var (
	ErrInvalidClientCredentials = apperrors.InvalidClientError("invalid client credentials", nil)
)

// AccountStore is the slice of the account service the engine needs.
type AccountStore interface {
	Authenticate(ctx context.Context, email, password string) (account.User, error)
}

// AuthorizationCodeStore persists single-use authorization codes.
// ConsumeAuthorizationCode must be atomic: of any number of concurrent
// consumers of the same code, exactly one receives the row.
type AuthorizationCodeStore interface {
	NewAuthorizationCode(clientID, email string, scopes []string, redirectURI string) domain.AuthorizationCode
	CreateAuthorizationCode(ctx context.Context, authCode domain.AuthorizationCode) error
	ConsumeAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error)
}

// RefreshTokenStore persists refresh token records.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, refreshToken domain.RefreshToken) (domain.RefreshToken, error)
	GetRefreshTokenByToken(ctx context.Context, tokenValue string) (domain.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenValue string) error
}

// Service is the authorization engine: it drives the authorize → login →
// code-issue → code-redeem → token-issue flow, plus refresh, validation
// and revocation.
type Service struct {
	Logger        *slog.Logger
	Validator     *Validator
	Accounts      AccountStore
	Codes         AuthorizationCodeStore
	RefreshTokens RefreshTokenStore
	Codec         *token.Codec
	Revocations   revocation.Registry

	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	now             func() time.Time
}

func NewService(
	logger *slog.Logger,
	cfg config.OAuth,
	validator *Validator,
	accounts AccountStore,
	codes AuthorizationCodeStore,
	refreshTokens RefreshTokenStore,
	codec *token.Codec,
	revocations revocation.Registry,
) *Service {
	return &Service{
		Logger:          logger,
		Validator:       validator,
		Accounts:        accounts,
		Codes:           codes,
		RefreshTokens:   refreshTokens,
		Codec:           codec,
		Revocations:     revocations,
		accessTokenTTL:  cfg.AccessTokenTTL,
		refreshTokenTTL: cfg.RefreshTokenTTL,
		now:             time.Now,
	}
}

// AuthorizationRequest carries the query parameters of an authorization
// attempt. State is opaque to the engine and is echoed back on every
// outcome so the transport layer can round-trip it to the client.
type AuthorizationRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
}

// AuthorizationView is what the login page needs to render a validated
// authorization request.
type AuthorizationView struct {
	ClientID    string
	ClientName  string
	RedirectURI string
	Scope       string
	Scopes      []string
	State       string
}

// LoginRequest carries the submitted login form of an authorization attempt.
type LoginRequest struct {
	Email       string
	Password    string
	ClientID    string
	RedirectURI string
	Scope       string
	State       string
}

// CodeGrant is a freshly issued authorization code plus the redirect the
// user agent should be sent to.
type CodeGrant struct {
	Code        string
	State       string
	RedirectURI string
}

// RedirectURL builds the client callback URL carrying the code and, when
// present, the caller-supplied state.
func (g CodeGrant) RedirectURL() string {
	params := url.Values{}
	params.Set("code", g.Code)
	if g.State != "" {
		params.Set("state", g.State)
	}
	return g.RedirectURI + "?" + params.Encode()
}

// RedeemRequest carries the parameters of an authorization_code token
// exchange.
type RedeemRequest struct {
	ClientID     string
	ClientSecret string
	Code         string
	RedirectURI  string
}

// TokenPair is the result of a successful code redemption.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
	Scope        string
}

// AccessGrant is the result of a successful refresh.
type AccessGrant struct {
	AccessToken string
	ExpiresIn   int
	Scope       string
}

// parseScope splits a space-separated scope string, preserving the request
// order; joined back with spaces it reproduces the caller's positions.
func parseScope(scope string) []string {
	scopes := strings.Fields(scope)
	if len(scopes) == 0 {
		return []string{DefaultScope}
	}
	return scopes
}

// BeginAuthorization validates an incoming authorization request and
// returns the presentation view for the login page. It mutates nothing.
//
// The client and redirect URI are validated before anything else so that
// later rejections (response type, scopes) are only ever redirected to a
// registered callback.
func (s *Service) BeginAuthorization(ctx context.Context, req AuthorizationRequest) (AuthorizationView, error) {
	client, err := s.Validator.ValidateClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return AuthorizationView{}, err
	}

	if req.ResponseType != "code" {
		return AuthorizationView{}, apperrors.UnsupportedResponseTypeError("only the authorization_code flow is supported", nil)
	}

	scopes := parseScope(req.Scope)
	if err := s.Validator.ValidateScopes(client, scopes); err != nil {
		return AuthorizationView{}, err
	}

	return AuthorizationView{
		ClientID:    client.ID,
		ClientName:  client.DisplayName(),
		RedirectURI: req.RedirectURI,
		Scope:       strings.Join(scopes, " "),
		Scopes:      scopes,
		State:       req.State,
	}, nil
}

// CompleteLogin authenticates the submitted credentials and, on success,
// issues a single-use authorization code with a fixed ten-minute expiry.
// Authentication failures come back as one generic invalid-credentials
// rejection regardless of which check failed.
func (s *Service) CompleteLogin(ctx context.Context, req LoginRequest) (CodeGrant, error) {
	client, err := s.Validator.ValidateClient(ctx, req.ClientID, req.RedirectURI)
	if err != nil {
		return CodeGrant{}, err
	}

	scopes := parseScope(req.Scope)
	if err := s.Validator.ValidateScopes(client, scopes); err != nil {
		return CodeGrant{}, err
	}

	user, err := s.Accounts.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return CodeGrant{}, err
	}

	authCode := s.Codes.NewAuthorizationCode(client.ID, user.Email, scopes, req.RedirectURI)
	if err := s.Codes.CreateAuthorizationCode(ctx, authCode); err != nil {
		return CodeGrant{}, err
	}

	s.Logger.InfoContext(ctx, "authorization code issued",
		"client_id", client.ID,
		"email", user.Email,
		"scopes", scopes)

	return CodeGrant{
		Code:        authCode.Code,
		State:       req.State,
		RedirectURI: req.RedirectURI,
	}, nil
}

// RedeemAuthorizationCode exchanges a code for an access/refresh token
// pair. Client credentials are checked before any code lookup. The code is
// consumed atomically, so a concurrent duplicate redemption observes
// invalid_grant; a code found expired has already been removed by the
// consume step.
func (s *Service) RedeemAuthorizationCode(ctx context.Context, req RedeemRequest) (TokenPair, error) {
	client, err := s.authenticateClient(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		return TokenPair{}, err
	}

	authCode, err := s.Codes.ConsumeAuthorizationCode(ctx, req.Code)
	if err != nil {
		return TokenPair{}, err
	}

	if authCode.Expired(s.now()) {
		return TokenPair{}, apperrors.InvalidGrantError("authorization code expired", nil)
	}

	if authCode.RedirectURI != req.RedirectURI {
		return TokenPair{}, apperrors.InvalidGrantError("redirect_uri mismatch", nil)
	}

	if authCode.ClientID != client.ID {
		return TokenPair{}, apperrors.InvalidGrantError("client_id mismatch", nil)
	}

	accessToken, _, err := s.Codec.Mint(authCode.Email, authCode.Scopes, client.ID, s.accessTokenTTL, token.KindAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, refreshClaims, err := s.Codec.Mint(authCode.Email, authCode.Scopes, client.ID, s.refreshTokenTTL, token.KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	if _, err := s.RefreshTokens.CreateRefreshToken(ctx, domain.RefreshToken{
		Token:     refreshToken,
		Email:     authCode.Email,
		ClientID:  client.ID,
		Scopes:    authCode.Scopes,
		ExpiresAt: refreshClaims.ExpiresAt,
		CreatedAt: refreshClaims.IssuedAt,
	}); err != nil {
		return TokenPair{}, err
	}

	s.Logger.InfoContext(ctx, "authorization code redeemed",
		"client_id", client.ID,
		"email", authCode.Email)

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.accessTokenTTL / time.Second),
		Scope:        strings.Join(authCode.Scopes, " "),
	}, nil
}

// RefreshAccessToken mints a new access token from a stored refresh token.
// The refresh token itself is not rotated. Beyond the original flow, the
// stored record's own expiry and revoked flag are checked before minting.
func (s *Service) RefreshAccessToken(ctx context.Context, clientID, clientSecret, refreshTokenValue string) (AccessGrant, error) {
	client, err := s.authenticateClient(ctx, clientID, clientSecret)
	if err != nil {
		return AccessGrant{}, err
	}

	stored, err := s.RefreshTokens.GetRefreshTokenByToken(ctx, refreshTokenValue)
	if err != nil {
		return AccessGrant{}, err
	}

	if stored.ClientID != client.ID {
		return AccessGrant{}, apperrors.InvalidGrantError("client mismatch", nil)
	}

	if stored.IsRevoked {
		return AccessGrant{}, apperrors.InvalidGrantError("refresh token revoked", nil)
	}

	if stored.Expired(s.now()) {
		return AccessGrant{}, apperrors.InvalidGrantError("refresh token expired", nil)
	}

	accessToken, _, err := s.Codec.Mint(stored.Email, stored.Scopes, client.ID, s.accessTokenTTL, token.KindAccess)
	if err != nil {
		return AccessGrant{}, err
	}

	return AccessGrant{
		AccessToken: accessToken,
		ExpiresIn:   int(s.accessTokenTTL / time.Second),
		Scope:       strings.Join(stored.Scopes, " "),
	}, nil
}

// ValidateBearerToken verifies an access token end to end: signature,
// revocation, kind, expiry, and that every required scope was granted.
// All failures collapse to a single token-invalid outcome; the underlying
// reason is only kept on the error for logging.
func (s *Service) ValidateBearerToken(ctx context.Context, tokenValue string, requiredScopes []string) (token.Claims, error) {
	claims, err := s.Codec.Decode(tokenValue)
	if err != nil {
		return token.Claims{}, err
	}

	revoked, err := s.Revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return token.Claims{}, err
	}
	if revoked {
		return token.Claims{}, apperrors.TokenInvalidError("invalid token", errors.New("token has been revoked"))
	}

	if claims.Kind != token.KindAccess {
		return token.Claims{}, apperrors.TokenInvalidError("invalid token", errors.New("not an access token"))
	}

	if claims.Expired(s.now()) {
		return token.Claims{}, apperrors.TokenInvalidError("invalid token", errors.New("token has expired"))
	}

	for _, scope := range requiredScopes {
		if !slices.Contains(claims.Scopes, scope) {
			return token.Claims{}, apperrors.TokenInvalidError("invalid token", errors.New("missing required scope: "+scope))
		}
	}

	return claims, nil
}

// RevokeToken marks a token (access or refresh) as revoked by its unique
// id. It reports true when the token could be decoded and registered,
// false otherwise. The underlying refresh token row, if any, is not
// deleted; revocation is id-based.
func (s *Service) RevokeToken(ctx context.Context, clientID, clientSecret, tokenValue string) (bool, error) {
	if _, err := s.authenticateClient(ctx, clientID, clientSecret); err != nil {
		return false, err
	}

	claims, err := s.Codec.Decode(tokenValue)
	if err != nil {
		s.Logger.WarnContext(ctx, "revocation requested for undecodable token", "client_id", clientID)
		return false, nil
	}

	if err := s.Revocations.Revoke(ctx, claims.ID, claims.TTLRemaining(s.now())); err != nil {
		return false, err
	}

	s.Logger.InfoContext(ctx, "token revoked",
		"client_id", clientID,
		"token_id", claims.ID,
		"kind", claims.Kind)

	return true, nil
}

// authenticateClient resolves a client id and checks its secret. Unknown
// clients and wrong secrets both come back as the same invalid_client
// rejection; the secret comparison is constant-time.
func (s *Service) authenticateClient(ctx context.Context, clientID, clientSecret string) (clients.Client, error) {
	if clientID == "" || clientSecret == "" {
		return clients.Client{}, ErrInvalidClientCredentials
	}

	client, err := s.Clients().GetClientByID(ctx, clientID)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeStoreUnavailable) {
			return clients.Client{}, err
		}
		return clients.Client{}, ErrInvalidClientCredentials
	}

	if subtle.ConstantTimeCompare([]byte(client.Secret), []byte(clientSecret)) != 1 {
		return clients.Client{}, ErrInvalidClientCredentials
	}

	return client, nil
}

// Clients exposes the registry behind the validator.
func (s *Service) Clients() clients.Registry {
	return s.Validator.Clients
}
