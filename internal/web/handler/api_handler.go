package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/etudehq/etude-auth/internal/account"
	"github.com/etudehq/etude-auth/internal/documents"
	apperrors "github.com/etudehq/etude-auth/internal/errors"
	"github.com/etudehq/etude-auth/internal/oauth"
	"github.com/etudehq/etude-auth/internal/oauth/token"
	"github.com/etudehq/etude-auth/internal/web/middleware"
	"github.com/etudehq/etude-auth/internal/web/response"
)

// ValidateResponse is the shape of the token introspection endpoint. It
// always travels with a 200; Valid carries the verdict and Reason says why
// a token was rejected.
type ValidateResponse struct {
	Valid     bool      `json:"valid"`
	Reason    string    `json:"reason,omitempty"`
	User      *UserInfo `json:"user,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt int64     `json:"expires_at,omitempty"`
}

type UserInfo struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// UserProfileResponse is the shape of the /api/user/me endpoint.
type UserProfileResponse struct {
	Email      string   `json:"email"`
	FullName   string   `json:"full_name"`
	Department string   `json:"department,omitempty"`
	Scopes     []string `json:"scopes"`
}

type CreateDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// UserDirectory is the slice of the account service the API needs.
type UserDirectory interface {
	GetUserByEmail(ctx context.Context, email string) (account.User, error)
}

// DocumentStore is the slice of the document service the API needs.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]documents.Document, error)
	GetDocumentByID(ctx context.Context, id int64) (documents.Document, error)
	CreateDocument(ctx context.Context, doc documents.Document) (documents.Document, error)
}

type APIHandler struct {
	Logger       *slog.Logger
	OAuthService *oauth.Service
	Accounts     UserDirectory
	Documents    DocumentStore
}

func NewAPIHandler(logger *slog.Logger, oauthService *oauth.Service, accounts UserDirectory, docs DocumentStore) APIHandler {
	return APIHandler{
		Logger:       logger,
		OAuthService: oauthService,
		Accounts:     accounts,
		Documents:    docs,
	}
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	profileGuard := middleware.RequireBearerToken(h.Logger, h.OAuthService, "profile")
	documentsGuard := middleware.RequireBearerToken(h.Logger, h.OAuthService, "documents")

	mux.HandleFunc("/api/token/validate", h.HandleValidateToken)
	mux.Handle("/api/user/me", profileGuard(http.HandlerFunc(h.HandleUserProfile)))
	mux.Handle("/api/documents", documentsGuard(http.HandlerFunc(h.HandleDocuments)))
	mux.Handle("/api/documents/{document_id}", documentsGuard(http.HandlerFunc(h.HandleDocument)))
}

// HandleValidateToken lets relying services check a token out of band. The
// verdict always comes back as a 200; only client errors (bad form) and
// store faults use other status codes. Beyond the token itself, the owning
// user must still exist and not be disabled.
func (h *APIHandler) HandleValidateToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		h.Logger.ErrorContext(ctx, "failed to parse validate form", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	tokenValue := r.FormValue("token")
	requiredScopes := strings.Fields(r.FormValue("required_scopes"))

	claims, err := h.OAuthService.ValidateBearerToken(ctx, tokenValue, requiredScopes)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeStoreUnavailable) {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}
		response.JSONResponse(w, http.StatusOK, ValidateResponse{
			Valid:  false,
			Reason: "Invalid token",
		})
		return
	}

	user, err := h.Accounts.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeStoreUnavailable) {
			response.OAuthErrorResponse(w, err, h.Logger)
			return
		}
		response.JSONResponse(w, http.StatusOK, ValidateResponse{
			Valid:  false,
			Reason: "User not found or disabled",
		})
		return
	}
	if user.Disabled {
		response.JSONResponse(w, http.StatusOK, ValidateResponse{
			Valid:  false,
			Reason: "User not found or disabled",
		})
		return
	}

	response.JSONResponse(w, http.StatusOK, ValidateResponse{
		Valid: true,
		User: &UserInfo{
			Email:    user.Email,
			FullName: user.FullName,
		},
		Scopes:    claims.Scopes,
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
}

// HandleUserProfile returns the profile of the token's subject.
func (h *APIHandler) HandleUserProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	user, claims, ok := h.resolveUser(ctx, w)
	if !ok {
		return
	}

	response.JSONResponse(w, http.StatusOK, UserProfileResponse{
		Email:      user.Email,
		FullName:   user.FullName,
		Department: user.Department,
		Scopes:     claims.Scopes,
	})
}

func (h *APIHandler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListDocuments(w, r)
	case http.MethodPost:
		h.handleCreateDocument(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *APIHandler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.Documents.ListDocuments(ctx)
	if err != nil {
		h.Logger.ErrorContext(ctx, "failed to list documents", "error", err)
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}
	if docs == nil {
		docs = []documents.Document{}
	}

	response.JSONResponse(w, http.StatusOK, docs)
}

// handleCreateDocument requires the write scope on top of the documents
// scope already enforced by the route guard.
func (h *APIHandler) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if !slices.Contains(claims.Scopes, "write") {
		w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
		response.JSONResponse(w, http.StatusForbidden, response.OAuthError{
			Error:            "insufficient_scope",
			ErrorDescription: "The write scope is required to create documents",
		})
		return
	}

	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthError{
			Error:            "invalid_request",
			ErrorDescription: "Invalid request body",
		})
		return
	}

	doc, err := h.Documents.CreateDocument(ctx, documents.Document{
		Title:      req.Title,
		Content:    req.Content,
		Type:       req.Type,
		OwnerEmail: claims.Subject,
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeValidationFailed) {
			response.JSONResponse(w, http.StatusBadRequest, response.OAuthError{
				Error:            "invalid_request",
				ErrorDescription: "Document title is required",
			})
			return
		}
		h.Logger.ErrorContext(ctx, "failed to create document", "error", err)
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	response.JSONResponse(w, http.StatusCreated, doc)
}

func (h *APIHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	documentID, err := strconv.ParseInt(r.PathValue("document_id"), 10, 64)
	if err != nil {
		response.JSONResponse(w, http.StatusBadRequest, response.OAuthError{
			Error:            "invalid_request",
			ErrorDescription: "Invalid document id",
		})
		return
	}

	doc, err := h.Documents.GetDocumentByID(ctx, documentID)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeNotFound) {
			response.JSONResponse(w, http.StatusNotFound, response.OAuthError{
				Error:            "not_found",
				ErrorDescription: "Document not found",
			})
			return
		}
		h.Logger.ErrorContext(ctx, "failed to get document", "error", err)
		response.OAuthErrorResponse(w, err, h.Logger)
		return
	}

	response.JSONResponse(w, http.StatusOK, doc)
}

// resolveUser loads the user behind the request's validated claims and
// re-checks existence and the disabled flag.
func (h *APIHandler) resolveUser(ctx context.Context, w http.ResponseWriter) (account.User, token.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return account.User{}, token.Claims{}, false
	}

	user, err := h.Accounts.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if apperrors.IsType(err, apperrors.CodeStoreUnavailable) {
			response.OAuthErrorResponse(w, err, h.Logger)
			return account.User{}, token.Claims{}, false
		}
		h.unauthorizedUser(w)
		return account.User{}, token.Claims{}, false
	}
	if user.Disabled {
		h.unauthorizedUser(w)
		return account.User{}, token.Claims{}, false
	}

	return user, claims, true
}

func (h *APIHandler) unauthorizedUser(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	response.JSONResponse(w, http.StatusUnauthorized, response.OAuthError{
		Error:            "invalid_token",
		ErrorDescription: "User not found or disabled",
	})
}
