// Package providers defines the token verification boundary. The API
// server only ever sees a verified uid; which identity service issued the
// token is a deployment choice.
package providers

import "context"

type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

type TokenClaims struct {
	UID string `json:"uid"`
}
