package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_URL", "postgres://localhost/etude_auth")
	t.Setenv("OAUTH_SIGNING_SECRET", "test-secret")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Server.Port != 8080 {
			t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
		}
		if cfg.Server.Environment != EnvDevelopment {
			t.Errorf("expected development environment, got %s", cfg.Server.Environment)
		}
		if cfg.OAuth.AccessTokenTTL != time.Hour {
			t.Errorf("expected 1h access TTL, got %v", cfg.OAuth.AccessTokenTTL)
		}
		if cfg.OAuth.RefreshTokenTTL != 720*time.Hour {
			t.Errorf("expected 720h refresh TTL, got %v", cfg.OAuth.RefreshTokenTTL)
		}
		if cfg.Cache.Enabled {
			t.Error("cache should default to disabled")
		}
		if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
			t.Errorf("expected wildcard origins, got %v", cfg.Server.AllowedOrigins)
		}
	})

	t.Run("missing signing secret fails", func(t *testing.T) {
		t.Setenv("DB_URL", "postgres://localhost/etude_auth")

		if _, err := Load(); err == nil {
			t.Fatal("expected error for missing OAUTH_SIGNING_SECRET")
		}
	})

	t.Run("missing database URL fails", func(t *testing.T) {
		t.Setenv("OAUTH_SIGNING_SECRET", "test-secret")

		if _, err := Load(); err == nil {
			t.Fatal("expected error for missing DB_URL")
		}
	})

	t.Run("overrides from environment", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("SERVER_ENVIRONMENT", "production")
		t.Setenv("OAUTH_ACCESS_TOKEN_TTL", "30m")
		t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.Server.Port != 9000 {
			t.Errorf("expected port 9000, got %d", cfg.Server.Port)
		}
		if !cfg.Server.IsProduction() {
			t.Error("expected production environment")
		}
		if cfg.OAuth.AccessTokenTTL != 30*time.Minute {
			t.Errorf("expected 30m TTL, got %v", cfg.OAuth.AccessTokenTTL)
		}
		if len(cfg.Server.AllowedOrigins) != 2 {
			t.Errorf("expected 2 origins, got %v", cfg.Server.AllowedOrigins)
		}
	})

	t.Run("invalid values are reported", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SERVER_PORT", "not-a-number")

		if _, err := Load(); err == nil {
			t.Fatal("expected error for invalid port")
		}
	})

	t.Run("invalid environment is rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SERVER_ENVIRONMENT", "staging")

		if _, err := Load(); err == nil {
			t.Fatal("expected error for unknown environment")
		}
	})
}

func TestOAuth_AccessTokenExpiresIn(t *testing.T) {
	cfg := OAuth{AccessTokenTTL: 90 * time.Minute}
	if got := cfg.AccessTokenExpiresIn(); got != 5400 {
		t.Fatalf("expected 5400 seconds, got %d", got)
	}
}
