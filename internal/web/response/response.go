package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/etudehq/etude-auth/internal/errors"
)

// OAuthError is the RFC 6749 error shape returned by the token, authorize
// and revoke endpoints.
type OAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func Redirect(w http.ResponseWriter, status int, url string) {
	w.Header().Set("Location", url)
	w.WriteHeader(status)
}

func JSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// OAuthErrorResponse maps an application error onto the RFC 6749 wire
// shape, logging internal faults without exposing their details.
func OAuthErrorResponse(w http.ResponseWriter, err error, logger *slog.Logger) {
	var appErr *apperrors.AppError

	if !errors.As(err, &appErr) || appErr.Code == apperrors.CodeInternalError {
		if logger != nil {
			logger.Error("internal server error", slog.String("error", err.Error()))
		}
		JSONResponse(w, http.StatusInternalServerError, OAuthError{
			Error:            "server_error",
			ErrorDescription: "An internal error occurred",
		})
		return
	}

	if appErr.Code == apperrors.CodeStoreUnavailable {
		if logger != nil {
			logger.Error("store unavailable", slog.String("error", appErr.Error()))
		}
		JSONResponse(w, appErr.HTTPCode, OAuthError{
			Error:            "temporarily_unavailable",
			ErrorDescription: "The authorization server is temporarily unavailable",
		})
		return
	}

	if logger != nil {
		logger.Warn("request rejected",
			slog.String("code", appErr.Code),
			slog.String("message", appErr.Message),
			slog.String("cause", appErr.Error()))
	}

	JSONResponse(w, appErr.HTTPCode, OAuthError{
		Error:            oauthCode(appErr.Code),
		ErrorDescription: appErr.Message,
	})
}

// oauthCode maps internal error codes onto the RFC 6749 vocabulary. RFC
// codes pass through unchanged.
func oauthCode(code string) string {
	switch code {
	case apperrors.CodeInvalidRequest, apperrors.CodeValidationFailed, apperrors.CodeNotFound:
		return "invalid_request"
	case apperrors.CodeUnauthorized, apperrors.CodeTokenInvalid:
		return "invalid_token"
	default:
		return code
	}
}
