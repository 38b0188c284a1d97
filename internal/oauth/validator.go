package oauth

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth/clients"
)

// Validator checks client registrations and scope requests. It is a pure
// lookup/check layer with no side effects.
type Validator struct {
	Clients clients.Registry
}

func NewValidator(registry clients.Registry) *Validator {
	return &Validator{
		Clients: registry,
	}
}

// ValidateClient resolves a client id and checks that the redirect URI is
// one of the client's registered set. Matching is exact string comparison,
// no normalization.
func (v *Validator) ValidateClient(ctx context.Context, clientID, redirectURI string) (clients.Client, error) {
	if clientID == "" {
		return clients.Client{}, apperrors.InvalidRequestError("missing client_id", nil)
	}
	if redirectURI == "" {
		return clients.Client{}, apperrors.InvalidRequestError("missing redirect_uri", nil)
	}

	client, err := v.Clients.GetClientByID(ctx, clientID)
	if err != nil {
		return clients.Client{}, err
	}

	if !slices.Contains(client.RedirectURIs, redirectURI) {
		return clients.Client{}, apperrors.InvalidRequestError("redirect_uri is not registered for this client", nil)
	}

	return client, nil
}

// ValidateScopes checks that every requested scope is allowed for the
// client. The whole request is rejected on any miss, and every invalid
// scope is reported by name, not just the first.
func (v *Validator) ValidateScopes(client clients.Client, requested []string) error {
	var invalid []string
	for _, scope := range requested {
		if !slices.Contains(client.AllowedScopes, scope) {
			invalid = append(invalid, scope)
		}
	}

	if len(invalid) > 0 {
		return apperrors.InvalidScopeError(
			fmt.Sprintf("scopes not allowed for this client: %s", strings.Join(invalid, ", ")),
			nil,
		)
	}

	return nil
}
