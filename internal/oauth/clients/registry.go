package clients

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

var (
	ErrClientNotFound = apperrors.InvalidClientError("unknown client", nil)
)

// Client is a registered relying application. The redirect URI and scope
// sets are fixed per client; the engine only ever reads them.
type Client struct {
	ID            string    `json:"client_id"`
	Secret        string    `json:"client_secret"`
	Name          string    `json:"name"`
	RedirectURIs  []string  `json:"redirect_uris"`
	AllowedScopes []string  `json:"allowed_scopes"`
	CreatedAt     time.Time `json:"-"`
}

// DisplayName is the human-readable name shown on the authorization page,
// falling back to the client id when no name was registered.
func (c Client) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Registry looks up registered clients. The deployment decides whether the
// table lives in configuration or in the database; both back the same
// capability.
type Registry interface {
	GetClientByID(ctx context.Context, clientID string) (Client, error)
}

// ConfigRegistry serves a static client table supplied by configuration.
type ConfigRegistry struct {
	clients map[string]Client
}

func NewConfigRegistry(registered []Client) *ConfigRegistry {
	clients := make(map[string]Client, len(registered))
	for _, client := range registered {
		clients[client.ID] = client
	}
	return &ConfigRegistry{clients: clients}
}

// NewConfigRegistryFromJSON parses the OAUTH_CLIENTS setting, a JSON object
// keyed by client id.
func NewConfigRegistryFromJSON(raw string) (*ConfigRegistry, error) {
	var table map[string]Client
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return nil, apperrors.ValidationError("invalid OAuth client table", err)
	}

	clients := make([]Client, 0, len(table))
	for id, client := range table {
		if client.ID == "" {
			client.ID = id
		}
		clients = append(clients, client)
	}
	return NewConfigRegistry(clients), nil
}

func (r *ConfigRegistry) GetClientByID(_ context.Context, clientID string) (Client, error) {
	client, ok := r.clients[clientID]
	if !ok {
		return Client{}, ErrClientNotFound
	}
	return client, nil
}
