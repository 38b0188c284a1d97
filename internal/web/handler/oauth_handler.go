package handler

import (
	"encoding/base64"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/etudehq/etude-auth/internal/config"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth"
	"github.com/etudehq/etude-auth/internal/web/response"
	"github.com/etudehq/etude-auth/web"
)

// TokenResponse is the success shape of the token endpoint for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// RevokeResponse is the shape of the revocation endpoint.
type RevokeResponse struct {
	Success bool `json:"success"`
}

type loginPageData struct {
	ClientID    string
	ClientName  string
	RedirectURI string
	Scope       string
	Scopes      []string
	State       string
	Error       string
}

type OAuthHandler struct {
	Config       *config.Config
	Logger       *slog.Logger
	OAuthService *oauth.Service

	templates *template.Template
}

func NewOAuthHandler(cfg *config.Config, logger *slog.Logger, oauthService *oauth.Service) OAuthHandler {
	return OAuthHandler{
		Config:       cfg,
		Logger:       logger,
		OAuthService: oauthService,
		templates:    template.Must(template.ParseFS(web.GetTemplateFS(), "*.html")),
	}
}

func (h *OAuthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/oauth/authorize", h.HandleAuthorize)
	mux.HandleFunc("/oauth/login", h.HandleLogin)
	mux.HandleFunc("/oauth/token", h.HandleToken)
	mux.HandleFunc("/oauth/revoke", h.HandleRevoke)
}

// HandleAuthorize validates the authorization request and shows the login
// page. Requests with an unknown client or unregistered redirect URI get an
// error page; once the client checks out, later rejections are redirected
// back to the callback with the state echoed.
func (h *OAuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	queryParams := r.URL.Query()

	req := oauth.AuthorizationRequest{
		ResponseType: queryParams.Get("response_type"),
		ClientID:     queryParams.Get("client_id"),
		RedirectURI:  queryParams.Get("redirect_uri"),
		Scope:        queryParams.Get("scope"),
		State:        queryParams.Get("state"),
	}

	view, err := h.OAuthService.BeginAuthorization(ctx, req)
	if err != nil {
		h.rejectAuthorization(w, r, req, err)
		return
	}

	h.renderLoginPage(w, http.StatusOK, loginPageData{
		ClientID:    view.ClientID,
		ClientName:  view.ClientName,
		RedirectURI: view.RedirectURI,
		Scope:       view.Scope,
		Scopes:      view.Scopes,
		State:       view.State,
	})
}

// HandleLogin processes the submitted login form. Success redirects the
// user agent to the client callback with the fresh authorization code;
// failed credentials re-render the login page with one generic message.
func (h *OAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.Logger.ErrorContext(ctx, "failed to parse login form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	req := oauth.LoginRequest{
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password"),
		ClientID:    r.FormValue("client_id"),
		RedirectURI: r.FormValue("redirect_uri"),
		Scope:       r.FormValue("scope"),
		State:       r.FormValue("state"),
	}

	grant, err := h.OAuthService.CompleteLogin(ctx, req)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeAccessDenied) {
			h.Logger.WarnContext(ctx, "login rejected", "client_id", req.ClientID)

			view, viewErr := h.OAuthService.BeginAuthorization(ctx, oauth.AuthorizationRequest{
				ResponseType: "code",
				ClientID:     req.ClientID,
				RedirectURI:  req.RedirectURI,
				Scope:        req.Scope,
				State:        req.State,
			})
			if viewErr != nil {
				h.renderErrorPage(w, apperrors.GetHTTPCode(viewErr), "Invalid authorization request")
				return
			}

			h.renderLoginPage(w, http.StatusBadRequest, loginPageData{
				ClientID:    view.ClientID,
				ClientName:  view.ClientName,
				RedirectURI: view.RedirectURI,
				Scope:       view.Scope,
				Scopes:      view.Scopes,
				State:       view.State,
				Error:       "Invalid email or password",
			})
			return
		}

		h.rejectAuthorization(w, r, oauth.AuthorizationRequest{
			ClientID:    req.ClientID,
			RedirectURI: req.RedirectURI,
			State:       req.State,
		}, err)
		return
	}

	response.Redirect(w, http.StatusSeeOther, grant.RedirectURL())
}

// HandleToken processes token requests for the authorization_code and
// refresh_token grants. Client credentials may arrive as form fields or as
// HTTP Basic auth.
func (h *OAuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.Logger.ErrorContext(ctx, "failed to parse token form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	grantType := r.FormValue("grant_type")
	clientID := r.FormValue("client_id")
	clientSecret := r.FormValue("client_secret")

	// Check for client credentials in the Authorization header (Basic auth)
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Basic "); ok {
		credentials, err := base64.StdEncoding.DecodeString(after)
		if err != nil {
			response.JSONResponse(w, http.StatusBadRequest, response.OAuthError{
				Error:            "invalid_request",
				ErrorDescription: "Failed to decode authorization header",
			})
			return
		}

		parts := strings.SplitN(string(credentials), ":", 2)
		if len(parts) != 2 {
			response.JSONResponse(w, http.StatusUnauthorized, response.OAuthError{
				Error:            "invalid_client",
				ErrorDescription: "Invalid client credentials",
			})
			return
		}

		clientID = parts[0]
		clientSecret = parts[1]
	}

	switch grantType {
	case "authorization_code":
		pair, err := h.OAuthService.RedeemAuthorizationCode(ctx, oauth.RedeemRequest{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Code:         r.FormValue("code"),
			RedirectURI:  r.FormValue("redirect_uri"),
		})
		if err != nil {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}

		response.JSONResponse(w, http.StatusOK, TokenResponse{
			AccessToken:  pair.AccessToken,
			TokenType:    "bearer",
			ExpiresIn:    pair.ExpiresIn,
			RefreshToken: pair.RefreshToken,
			Scope:        pair.Scope,
		})

	case "refresh_token":
		grant, err := h.OAuthService.RefreshAccessToken(ctx, clientID, clientSecret, r.FormValue("refresh_token"))
		if err != nil {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}

		response.JSONResponse(w, http.StatusOK, TokenResponse{
			AccessToken: grant.AccessToken,
			TokenType:   "bearer",
			ExpiresIn:   grant.ExpiresIn,
			Scope:       grant.Scope,
		})

	default:
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthError{
			Error:            "unsupported_grant_type",
			ErrorDescription: "Unsupported grant type",
		})
	}
}

// HandleRevoke marks the presented token as revoked. Bad client credentials
// get a 401; an undecodable token is reported as success=false.
func (h *OAuthHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.Logger.ErrorContext(ctx, "failed to parse revoke form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	revoked, err := h.OAuthService.RevokeToken(ctx,
		r.FormValue("client_id"),
		r.FormValue("client_secret"),
		r.FormValue("token"),
	)
	if err != nil {
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	if !revoked {
		response.JSONResponse(w, http.StatusBadRequest, RevokeResponse{Success: false})
		return
	}

	response.JSONResponse(w, http.StatusOK, RevokeResponse{Success: true})
}

// rejectAuthorization routes an authorization failure to the right surface:
// client/redirect problems and infrastructure faults render an error page,
// everything after a validated client is redirected back to the callback
// with the error code and the caller's state.
func (h *OAuthHandler) rejectAuthorization(w http.ResponseWriter, r *http.Request, req oauth.AuthorizationRequest, err error) {
	ctx := r.Context()

	switch {
	case apperrors.IsType(err, apperrors.CodeUnsupportedResponseType),
		apperrors.IsType(err, apperrors.CodeInvalidScope):
		h.Logger.WarnContext(ctx, "authorization request rejected", "client_id", req.ClientID, "error", err)
		params := url.Values{}
		params.Set("error", errorCode(err))
		if req.State != "" {
			params.Set("state", req.State)
		}
		response.Redirect(w, http.StatusSeeOther, req.RedirectURI+"?"+params.Encode())

	case apperrors.IsType(err, apperrors.CodeStoreUnavailable):
		h.Logger.ErrorContext(ctx, "authorization request failed", "error", err)
		h.renderErrorPage(w, http.StatusServiceUnavailable, "The authorization server is temporarily unavailable")

	default:
		h.Logger.WarnContext(ctx, "authorization request rejected", "client_id", req.ClientID, "error", err)
		h.renderErrorPage(w, apperrors.GetHTTPCode(err), rejectionMessage(err))
	}
}

func (h *OAuthHandler) renderLoginPage(w http.ResponseWriter, status int, data loginPageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "login.html", data); err != nil {
		h.Logger.Error("failed to render login page", "error", err)
	}
}

func (h *OAuthHandler) renderErrorPage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, "error.html", map[string]string{"Message": message}); err != nil {
		h.Logger.Error("failed to render error page", "error", err)
	}
}

func errorCode(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "server_error"
}

func rejectionMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Invalid authorization request"
}
