package main

import (
	"context"
	"log/slog"

	"github.com/etudehq/etude-auth/internal/account"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth/clients"
)

// seedDemoData creates a demo user and, when the client table is
// database-backed, a demo client. Both inserts are idempotent so repeated
// startups with seeding enabled are harmless.
func seedDemoData(ctx context.Context, logger *slog.Logger, accounts account.Service, registry clients.Registry) error {
	demoEmail := "demo@example.com"

	if _, err := accounts.GetUserByEmail(ctx, demoEmail); err != nil {
		if !apperrors.IsType(err, apperrors.CodeNotFound) {
			return err
		}

		if _, err := accounts.CreateUser(ctx, account.User{
			Email:      demoEmail,
			FullName:   "Demo User",
			Department: "Engineering",
		}, "demo-password"); err != nil {
			return err
		}

		logger.InfoContext(ctx, "seeded demo user", "email", demoEmail)
	}

	storeRegistry, ok := registry.(*clients.StoreRegistry)
	if !ok {
		return nil
	}

	if _, err := storeRegistry.CreateClient(ctx, clients.Client{
		ID:            "demo-client",
		Secret:        "demo-secret",
		Name:          "Demo Application",
		RedirectURIs:  []string{"http://localhost:3000/callback"},
		AllowedScopes: []string{"profile", "documents", "write"},
	}); err != nil {
		return err
	}

	logger.InfoContext(ctx, "seeded demo client", "client_id", "demo-client")
	return nil
}
