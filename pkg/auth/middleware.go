package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	appErrors "github.com/mahaj/supportdesk/pkg/errors"
)

type contextKey string

const claimsKey contextKey = "claims"

// FromContext returns the claims stored by Middleware.
func FromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter for websocket clients.
func BearerToken(r *http.Request) string {
	tokenString := r.Header.Get("Authorization")
	if tokenString == "" {
		tokenString = r.URL.Query().Get("token")
	}
	return strings.TrimPrefix(tokenString, "Bearer ")
}

func Middleware(issuer *Issuer, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := BearerToken(r)
			if tokenString == "" {
				unauthorized(w, "Authorization header required")
				return
			}

			claims, err := issuer.Validate(tokenString)
			if err != nil {
				logger.Debug("rejected token", "error", err)
				unauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(appErrors.AppError{Code: appErrors.CodeUnauthenticated, Message: msg})
}
