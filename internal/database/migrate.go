package database

import (
	"context"
	"fmt"
)

// Schema statements are idempotent so startup can run them unconditionally.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		department TEXT NOT NULL DEFAULT '',
		is_leader BOOLEAN NOT NULL DEFAULT FALSE,
		disabled BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS oauth_clients (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		client_id TEXT NOT NULL UNIQUE,
		client_secret TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		redirect_uris TEXT NOT NULL DEFAULT '',
		allowed_scopes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS authorization_codes (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		client_id TEXT NOT NULL,
		email TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '',
		redirect_uri TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		token TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		client_id TEXT NOT NULL,
		scopes TEXT NOT NULL DEFAULT '',
		is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		doc_type TEXT NOT NULL DEFAULT 'document',
		owner_email TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_authorization_codes_expires_at ON authorization_codes (expires_at)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_email ON refresh_tokens (email)`,
}

// Migrate creates the schema if it does not exist yet.
func (db *Database) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
