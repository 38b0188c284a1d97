package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/etudehq/etude-auth/internal/oauth/token"
	"github.com/etudehq/etude-auth/internal/web/response"
)

type contextKey string

// ClaimsContextKey carries the validated token claims through the request
// context.
const ClaimsContextKey contextKey = "token_claims"

// BearerValidator is the slice of the authorization engine the middleware
// needs.
type BearerValidator interface {
	ValidateBearerToken(ctx context.Context, tokenValue string, requiredScopes []string) (token.Claims, error)
}

// ClaimsFromContext returns the claims placed by RequireBearerToken.
func ClaimsFromContext(ctx context.Context) (token.Claims, bool) {
	claims, ok := ctx.Value(ClaimsContextKey).(token.Claims)
	return claims, ok
}

// RequireBearerToken guards an endpoint with a bearer access token carrying
// the required scopes. All token failures produce the same 401; the
// specific reason is only logged.
func RequireBearerToken(logger *slog.Logger, validator BearerValidator, requiredScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			authHeader := r.Header.Get("Authorization")
			tokenValue, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenValue == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				response.JSONResponse(w, http.StatusUnauthorized, response.OAuthError{
					Error:            "invalid_token",
					ErrorDescription: "Invalid authorization header",
				})
				return
			}

			claims, err := validator.ValidateBearerToken(ctx, tokenValue, requiredScopes)
			if err != nil {
				logger.WarnContext(ctx, "bearer token rejected", "error", err)
				w.Header().Set("WWW-Authenticate", "Bearer")
				response.JSONResponse(w, http.StatusUnauthorized, response.OAuthError{
					Error:            "invalid_token",
					ErrorDescription: "Invalid or expired token",
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ClaimsContextKey, claims)))
		})
	}
}
