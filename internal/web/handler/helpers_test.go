package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/etudehq/etude-auth/internal/account"
	"github.com/etudehq/etude-auth/internal/config"
	"github.com/etudehq/etude-auth/internal/documents"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth"
	"github.com/etudehq/etude-auth/internal/oauth/clients"
	"github.com/etudehq/etude-auth/internal/oauth/domain"
	"github.com/etudehq/etude-auth/internal/oauth/revocation"
	"github.com/etudehq/etude-auth/internal/oauth/token"
)

type stubAccounts struct {
	mutex sync.Mutex
	users map[string]stubUser
}

type stubUser struct {
	password string
	user     account.User
}

func (s *stubAccounts) Authenticate(_ context.Context, email, password string) (account.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored, ok := s.users[email]
	if !ok || stored.password != password || stored.user.Disabled {
		return account.User{}, account.ErrInvalidCredentials
	}
	return stored.user, nil
}

func (s *stubAccounts) GetUserByEmail(_ context.Context, email string) (account.User, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored, ok := s.users[email]
	if !ok {
		return account.User{}, account.ErrUserNotFound
	}
	return stored.user, nil
}

func (s *stubAccounts) disable(email string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored := s.users[email]
	stored.user.Disabled = true
	s.users[email] = stored
}

type stubCodeStore struct {
	mutex   sync.Mutex
	codes   map[string]domain.AuthorizationCode
	counter int
}

func (s *stubCodeStore) NewAuthorizationCode(clientID, email string, scopes []string, redirectURI string) domain.AuthorizationCode {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counter++
	now := time.Now().UTC()
	return domain.AuthorizationCode{
		Code:        fmt.Sprintf("test-code-%d", s.counter),
		ClientID:    clientID,
		Email:       email,
		Scopes:      scopes,
		RedirectURI: redirectURI,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.AuthorizationCodeLifetime),
	}
}

func (s *stubCodeStore) CreateAuthorizationCode(_ context.Context, authCode domain.AuthorizationCode) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.codes[authCode.Code] = authCode
	return nil
}

func (s *stubCodeStore) ConsumeAuthorizationCode(_ context.Context, code string) (domain.AuthorizationCode, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	authCode, ok := s.codes[code]
	if !ok {
		return domain.AuthorizationCode{}, apperrors.InvalidGrantError("invalid authorization code", nil)
	}
	delete(s.codes, code)
	return authCode, nil
}

type stubRefreshStore struct {
	mutex  sync.Mutex
	tokens map[string]domain.RefreshToken
}

func (s *stubRefreshStore) CreateRefreshToken(_ context.Context, refreshToken domain.RefreshToken) (domain.RefreshToken, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tokens[refreshToken.Token] = refreshToken
	return refreshToken, nil
}

func (s *stubRefreshStore) GetRefreshTokenByToken(_ context.Context, tokenValue string) (domain.RefreshToken, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored, ok := s.tokens[tokenValue]
	if !ok {
		return domain.RefreshToken{}, apperrors.InvalidGrantError("invalid refresh token", nil)
	}
	return stored, nil
}

func (s *stubRefreshStore) RevokeRefreshToken(_ context.Context, tokenValue string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	stored, ok := s.tokens[tokenValue]
	if !ok {
		return apperrors.InvalidGrantError("invalid refresh token", nil)
	}
	stored.IsRevoked = true
	s.tokens[tokenValue] = stored
	return nil
}

type stubDocuments struct {
	mutex   sync.Mutex
	docs    map[int64]documents.Document
	counter int64
}

func (s *stubDocuments) ListDocuments(_ context.Context) ([]documents.Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	list := make([]documents.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		doc.Content = ""
		list = append(list, doc)
	}
	return list, nil
}

func (s *stubDocuments) GetDocumentByID(_ context.Context, id int64) (documents.Document, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return documents.Document{}, documents.ErrDocumentNotFound
	}
	return doc, nil
}

func (s *stubDocuments) CreateDocument(_ context.Context, doc documents.Document) (documents.Document, error) {
	if doc.Title == "" {
		return documents.Document{}, apperrors.ValidationError("document title cannot be empty", nil)
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.counter++
	doc.ID = s.counter
	doc.CreatedAt = time.Now().UTC()
	s.docs[doc.ID] = doc
	return doc, nil
}

type testEnv struct {
	mux      *http.ServeMux
	service  *oauth.Service
	accounts *stubAccounts
	docs     *stubDocuments
}

func newTestEnv() *testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := &stubAccounts{users: map[string]stubUser{
		"alice@example.com": {
			password: "secret",
			user: account.User{
				ID:       1,
				Email:    "alice@example.com",
				FullName: "Alice Example",
			},
		},
	}}

	registry := clients.NewConfigRegistry([]clients.Client{
		{
			ID:            "c1",
			Secret:        "s1",
			Name:          "Test App",
			RedirectURIs:  []string{"https://a/cb"},
			AllowedScopes: []string{"profile", "documents", "write"},
		},
	})

	service := oauth.NewService(
		logger,
		config.OAuth{
			SigningSecret:   "test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 720 * time.Hour,
		},
		oauth.NewValidator(registry),
		accounts,
		&stubCodeStore{codes: make(map[string]domain.AuthorizationCode)},
		&stubRefreshStore{tokens: make(map[string]domain.RefreshToken)},
		token.NewCodec("test-secret"),
		revocation.NewMemoryRegistry(),
	)

	docs := &stubDocuments{docs: make(map[int64]documents.Document)}

	cfg := &config.Config{}
	oauthHandler := NewOAuthHandler(cfg, logger, service)
	apiHandler := NewAPIHandler(logger, service, accounts, docs)

	mux := http.NewServeMux()
	oauthHandler.RegisterRoutes(mux)
	apiHandler.RegisterRoutes(mux)

	return &testEnv{
		mux:      mux,
		service:  service,
		accounts: accounts,
		docs:     docs,
	}
}

// issueCode runs the login step directly against the engine and returns a
// redeemable authorization code.
func (env *testEnv) issueCode(scope string) (string, error) {
	grant, err := env.service.CompleteLogin(context.Background(), oauth.LoginRequest{
		Email:       "alice@example.com",
		Password:    "secret",
		ClientID:    "c1",
		RedirectURI: "https://a/cb",
		Scope:       scope,
	})
	if err != nil {
		return "", err
	}
	return grant.Code, nil
}

// issueTokens redeems a fresh code and returns the token pair.
func (env *testEnv) issueTokens(scope string) (oauth.TokenPair, error) {
	code, err := env.issueCode(scope)
	if err != nil {
		return oauth.TokenPair{}, err
	}
	return env.service.RedeemAuthorizationCode(context.Background(), oauth.RedeemRequest{
		ClientID:     "c1",
		ClientSecret: "s1",
		Code:         code,
		RedirectURI:  "https://a/cb",
	})
}
