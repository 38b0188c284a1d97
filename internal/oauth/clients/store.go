package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/etudehq/etude-auth/internal/database"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

// StoreRegistry serves the client table from the oauth_clients table.
// Redirect URIs and scopes are persisted comma-joined, one row per client.
type StoreRegistry struct {
	DB *database.Database
}

func NewStoreRegistry(db *database.Database) *StoreRegistry {
	return &StoreRegistry{
		DB: db,
	}
}

func (r *StoreRegistry) GetClientByID(ctx context.Context, clientID string) (Client, error) {
	ctx, cancel := r.DB.WithQueryTimeout(ctx)
	defer cancel()

	var client Client
	var redirectURIs, allowedScopes string

	query := `SELECT client_id, client_secret, name, redirect_uris, allowed_scopes, created_at FROM oauth_clients WHERE client_id = $1`
	row := r.DB.QueryRow(ctx, query, clientID)
	if err := row.Scan(&client.ID, &client.Secret, &client.Name, &redirectURIs, &allowedScopes, &client.CreatedAt); err != nil {
		if errors.Is(err, database.ErrNoRows) {
			return Client{}, ErrClientNotFound
		}
		return Client{}, apperrors.StoreUnavailableError("failed to get client by id", err)
	}

	client.RedirectURIs = splitJoined(redirectURIs)
	client.AllowedScopes = splitJoined(allowedScopes)
	return client, nil
}

// CreateClient registers a client row; used by seeding and admin tooling.
func (r *StoreRegistry) CreateClient(ctx context.Context, client Client) (Client, error) {
	ctx, cancel := r.DB.WithQueryTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO oauth_clients (client_id, client_secret, name, redirect_uris, allowed_scopes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (client_id) DO NOTHING
		RETURNING created_at
	`

	err := r.DB.QueryRow(ctx, query,
		client.ID,
		client.Secret,
		client.Name,
		strings.Join(client.RedirectURIs, ","),
		strings.Join(client.AllowedScopes, ","),
	).Scan(&client.CreatedAt)
	if err != nil {
		if errors.Is(err, database.ErrNoRows) {
			// Already registered; not an error for idempotent seeding.
			return client, nil
		}
		return Client{}, fmt.Errorf("failed to save client: %w", err)
	}

	return client, nil
}

func splitJoined(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
