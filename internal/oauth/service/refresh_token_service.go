package service

import (
	"context"
	"errors"
	"strings"

	"github.com/etudehq/etude-auth/internal/database"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth/domain"
)

var (
	ErrRefreshTokenNotFound = apperrors.InvalidGrantError("invalid refresh token", nil)
)

// RefreshTokenService persists refresh token records. The token value
// itself is the signed string minted by the codec; the row carries the
// grant metadata the refresh flow checks against.
type RefreshTokenService struct {
	DB *database.Database
}

func NewRefreshTokenService(db *database.Database) *RefreshTokenService {
	return &RefreshTokenService{
		DB: db,
	}
}

func (s *RefreshTokenService) CreateRefreshToken(ctx context.Context, refreshToken domain.RefreshToken) (domain.RefreshToken, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO refresh_tokens (token, email, client_id, scopes, is_revoked, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if err := s.DB.QueryRow(ctx, query,
		refreshToken.Token,
		refreshToken.Email,
		refreshToken.ClientID,
		strings.Join(refreshToken.Scopes, ","),
		refreshToken.IsRevoked,
		refreshToken.ExpiresAt,
		refreshToken.CreatedAt,
	).Scan(&refreshToken.ID); err != nil {
		return domain.RefreshToken{}, apperrors.StoreUnavailableError("failed to save refresh token", err)
	}

	return refreshToken, nil
}

func (s *RefreshTokenService) GetRefreshTokenByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	var refreshToken domain.RefreshToken
	var scopes string

	query := `
		SELECT id, token, email, client_id, scopes, is_revoked, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1
	`

	err := s.DB.QueryRow(ctx, query, token).Scan(
		&refreshToken.ID,
		&refreshToken.Token,
		&refreshToken.Email,
		&refreshToken.ClientID,
		&scopes,
		&refreshToken.IsRevoked,
		&refreshToken.ExpiresAt,
		&refreshToken.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return domain.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return domain.RefreshToken{}, apperrors.StoreUnavailableError("failed to get refresh token", err)
	}

	refreshToken.Scopes = splitScopes(scopes)
	return refreshToken, nil
}

// RevokeRefreshToken flips the revoked flag; the row is kept for audit.
func (s *RefreshTokenService) RevokeRefreshToken(ctx context.Context, token string) error {
	ctx, cancel := s.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = $1`

	if _, err := s.DB.Exec(ctx, query, token); err != nil {
		return apperrors.StoreUnavailableError("failed to revoke refresh token", err)
	}

	return nil
}
