package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/etudehq/etude-auth/internal/database"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth/domain"
)

var (
	ErrAuthorizationCodeNotFound = apperrors.InvalidGrantError("invalid authorization code", nil)
)

// AuthorizationCodeService persists authorization codes. Consumption is a
// single DELETE ... RETURNING so two concurrent redemptions of the same
// code can never both succeed.
type AuthorizationCodeService struct {
	DB *database.Database
}

func NewAuthorizationCodeService(db *database.Database) *AuthorizationCodeService {
	return &AuthorizationCodeService{
		DB: db,
	}
}

// NewAuthorizationCode mints an opaque single-use code bound to the login
// that just completed, valid for the fixed ten-minute window.
func (s *AuthorizationCodeService) NewAuthorizationCode(clientID, email string, scopes []string, redirectURI string) domain.AuthorizationCode {
	now := time.Now().UTC()

	return domain.AuthorizationCode{
		Code:        uuid.NewString(),
		ClientID:    clientID,
		Email:       email,
		Scopes:      scopes,
		RedirectURI: redirectURI,
		ExpiresAt:   now.Add(domain.AuthorizationCodeLifetime),
		CreatedAt:   now,
	}
}

func (s *AuthorizationCodeService) CreateAuthorizationCode(ctx context.Context, authCode domain.AuthorizationCode) error {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO authorization_codes (code, client_id, email, scopes, redirect_uri, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	if _, err := s.DB.Exec(ctx, query,
		authCode.Code,
		authCode.ClientID,
		authCode.Email,
		strings.Join(authCode.Scopes, ","),
		authCode.RedirectURI,
		authCode.ExpiresAt,
		authCode.CreatedAt,
	); err != nil {
		return apperrors.StoreUnavailableError("failed to save authorization code", err)
	}

	return nil
}

// ConsumeAuthorizationCode atomically deletes and returns the code row.
// Exactly one caller observes the row; every other caller gets not-found.
// The returned code may already be expired; the engine decides what that
// means, and either way the row is gone.
func (s *AuthorizationCodeService) ConsumeAuthorizationCode(ctx context.Context, code string) (domain.AuthorizationCode, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	var authCode domain.AuthorizationCode
	var scopes string

	query := `
		DELETE FROM authorization_codes
		WHERE code = $1
		RETURNING id, code, client_id, email, scopes, redirect_uri, expires_at, created_at
	`

	err := s.DB.QueryRow(ctx, query, code).Scan(
		&authCode.ID,
		&authCode.Code,
		&authCode.ClientID,
		&authCode.Email,
		&scopes,
		&authCode.RedirectURI,
		&authCode.ExpiresAt,
		&authCode.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return domain.AuthorizationCode{}, ErrAuthorizationCodeNotFound
		}
		return domain.AuthorizationCode{}, apperrors.StoreUnavailableError("failed to consume authorization code", err)
	}

	authCode.Scopes = splitScopes(scopes)
	return authCode, nil
}

// DeleteExpiredAuthorizationCodes clears out codes whose window has closed;
// run periodically so abandoned logins do not accumulate.
func (s *AuthorizationCodeService) DeleteExpiredAuthorizationCodes(ctx context.Context) (int64, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	tag, err := s.DB.Exec(ctx, `DELETE FROM authorization_codes WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired authorization codes: %w", err)
	}

	return tag.RowsAffected(), nil
}

func splitScopes(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}
