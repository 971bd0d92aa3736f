package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	authproviders "github.com/catjump/catjump/pkg/auth/providers"
	"github.com/catjump/catjump/pkg/log"
	"github.com/gorilla/mux"
)

type ContextKey int

const (
	// UIDContextKey is the key used to store the verified uid in the request context
	UIDContextKey ContextKey = iota
)

// UIDFromContext returns the verified uid set by the auth middleware.
func UIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UIDContextKey).(string)
	return uid, ok
}

func NewAuthMiddleware(authProvider authproviders.AuthProvider) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bearerToken, err := parseBearerToken(r)
			if err != nil {
				log.Debug("failed to parse bearer token: %v", err)
				writeUnauthorized(w, "failed to parse bearer token")
				return
			}

			claims, err := authProvider.VerifyToken(r.Context(), bearerToken)
			if err != nil {
				log.Debug("failed to verify ID token: %v", err)
				writeUnauthorized(w, "failed to verify ID token")
				return
			}

			ctx := context.WithValue(r.Context(), UIDContextKey, claims.UID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":%q}", message)
}

// parseBearerToken parses the bearer token from the Authorization header
func parseBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is missing")
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	return parts[1], nil
}
