package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func postForm(mux *http.ServeMux, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleAuthorize(t *testing.T) {
	t.Run("renders login page for valid request", func(t *testing.T) {
		env := newTestEnv()

		req := httptest.NewRequest(http.MethodGet,
			"/oauth/authorize?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fa%2Fcb&scope=profile+documents&state=xyz", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Test App") {
			t.Error("expected client display name on the page")
		}
		if !strings.Contains(body, `value="xyz"`) {
			t.Error("expected state carried in the form")
		}
	})

	t.Run("unknown client gets an error page, not a redirect", func(t *testing.T) {
		env := newTestEnv()

		req := httptest.NewRequest(http.MethodGet,
			"/oauth/authorize?response_type=code&client_id=ghost&redirect_uri=https%3A%2F%2Fa%2Fcb", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if rec.Header().Get("Location") != "" {
			t.Fatal("must not redirect for an unvalidated client")
		}
	})

	t.Run("unregistered redirect gets an error page", func(t *testing.T) {
		env := newTestEnv()

		req := httptest.NewRequest(http.MethodGet,
			"/oauth/authorize?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fevil%2Fcb", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if rec.Header().Get("Location") != "" {
			t.Fatal("must not redirect to an unregistered URI")
		}
	})

	t.Run("unsupported response type redirects with error and state", func(t *testing.T) {
		env := newTestEnv()

		req := httptest.NewRequest(http.MethodGet,
			"/oauth/authorize?response_type=token&client_id=c1&redirect_uri=https%3A%2F%2Fa%2Fcb&state=xyz", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rec.Code)
		}

		location, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if location.Host != "a" {
			t.Fatalf("redirect must go to the registered callback, got %s", location.Host)
		}
		if location.Query().Get("error") != "unsupported_response_type" {
			t.Errorf("expected unsupported_response_type, got %s", location.Query().Get("error"))
		}
		if location.Query().Get("state") != "xyz" {
			t.Error("state not echoed on error redirect")
		}
	})

	t.Run("invalid scope redirects with error", func(t *testing.T) {
		env := newTestEnv()

		req := httptest.NewRequest(http.MethodGet,
			"/oauth/authorize?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fa%2Fcb&scope=admin", nil)
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rec.Code)
		}
		location, _ := url.Parse(rec.Header().Get("Location"))
		if location.Query().Get("error") != "invalid_scope" {
			t.Errorf("expected invalid_scope, got %s", location.Query().Get("error"))
		}
	})

	t.Run("rejects non-GET", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/authorize", url.Values{})
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
	})
}

func TestHandleLogin(t *testing.T) {
	loginForm := func(password string) url.Values {
		return url.Values{
			"email":        {"alice@example.com"},
			"password":     {password},
			"client_id":    {"c1"},
			"redirect_uri": {"https://a/cb"},
			"scope":        {"profile"},
			"state":        {"xyz"},
		}
	}

	t.Run("success redirects with code and state", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/login", loginForm("secret"))
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("expected 303, got %d", rec.Code)
		}

		location, err := url.Parse(rec.Header().Get("Location"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if location.Query().Get("code") == "" {
			t.Error("expected code in redirect")
		}
		if location.Query().Get("state") != "xyz" {
			t.Error("expected state in redirect")
		}
	})

	t.Run("bad credentials re-render the form with a generic message", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/login", loginForm("wrong"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		body := rec.Body.String()
		if !strings.Contains(body, "Invalid email or password") {
			t.Error("expected generic credentials message")
		}
		if !strings.Contains(body, `name="email"`) {
			t.Error("expected the login form to be re-rendered")
		}
	})

	t.Run("disabled user is rejected like a wrong password", func(t *testing.T) {
		env := newTestEnv()
		env.accounts.disable("alice@example.com")

		rec := postForm(env.mux, "/oauth/login", loginForm("secret"))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid email or password") {
			t.Error("disabled accounts must get the same generic message")
		}
	})
}

func TestHandleToken(t *testing.T) {
	t.Run("authorization_code grant returns a token pair", func(t *testing.T) {
		env := newTestEnv()
		code, err := env.issueCode("profile documents")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := postForm(env.mux, "/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {"c1"},
			"client_secret": {"s1"},
			"code":          {code},
			"redirect_uri":  {"https://a/cb"},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.AccessToken == "" || resp.RefreshToken == "" {
			t.Fatal("expected both tokens")
		}
		if resp.TokenType != "bearer" {
			t.Errorf("expected token_type bearer, got %s", resp.TokenType)
		}
		if resp.ExpiresIn != 3600 {
			t.Errorf("expected expires_in 3600, got %d", resp.ExpiresIn)
		}
		if resp.Scope != "profile documents" {
			t.Errorf("expected granted scope, got %q", resp.Scope)
		}
	})

	t.Run("client credentials accepted via basic auth", func(t *testing.T) {
		env := newTestEnv()
		code, err := env.issueCode("profile")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		form := url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {code},
			"redirect_uri": {"https://a/cb"},
		}
		req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("c1:s1")))
		rec := httptest.NewRecorder()
		env.mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("refresh_token grant returns a new access token without rotation", func(t *testing.T) {
		env := newTestEnv()
		pair, err := env.issueTokens("profile")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := postForm(env.mux, "/oauth/token", url.Values{
			"grant_type":    {"refresh_token"},
			"client_id":     {"c1"},
			"client_secret": {"s1"},
			"refresh_token": {pair.RefreshToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp TokenResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.AccessToken == "" {
			t.Fatal("expected access token")
		}
		if resp.RefreshToken != "" {
			t.Error("refresh grant must not rotate the refresh token")
		}
	})

	t.Run("invalid client credentials get 401", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {"c1"},
			"client_secret": {"wrong"},
			"code":          {"whatever"},
			"redirect_uri":  {"https://a/cb"},
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}

		var resp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Error != "invalid_client" {
			t.Errorf("expected invalid_client, got %s", resp.Error)
		}
	})

	t.Run("unknown code gets 400 invalid_grant", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/token", url.Values{
			"grant_type":    {"authorization_code"},
			"client_id":     {"c1"},
			"client_secret": {"s1"},
			"code":          {"no-such-code"},
			"redirect_uri":  {"https://a/cb"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		var resp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Error != "invalid_grant" {
			t.Errorf("expected invalid_grant, got %s", resp.Error)
		}
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/token", url.Values{
			"grant_type":    {"password"},
			"client_id":     {"c1"},
			"client_secret": {"s1"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "unsupported_grant_type") {
			t.Error("expected unsupported_grant_type")
		}
	})
}

func TestHandleRevoke(t *testing.T) {
	t.Run("revokes a live token", func(t *testing.T) {
		env := newTestEnv()
		pair, err := env.issueTokens("profile")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := postForm(env.mux, "/oauth/revoke", url.Values{
			"client_id":     {"c1"},
			"client_secret": {"s1"},
			"token":         {pair.AccessToken},
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp RevokeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.Success {
			t.Fatal("expected success true")
		}
	})

	t.Run("undecodable token reports failure with 400", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/revoke", url.Values{
			"client_id":     {"c1"},
			"client_secret": {"s1"},
			"token":         {"garbage"},
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}

		var resp RevokeResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.Success {
			t.Fatal("expected success false")
		}
	})

	t.Run("bad client credentials get 401", func(t *testing.T) {
		env := newTestEnv()

		rec := postForm(env.mux, "/oauth/revoke", url.Values{
			"client_id":     {"c1"},
			"client_secret": {"wrong"},
			"token":         {"whatever"},
		})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}
