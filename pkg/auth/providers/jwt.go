package providers

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var _ AuthProvider = &JWTAuthProvider{}

// JWTAuthProvider verifies HS256 tokens signed with a shared secret. It is
// meant for local development and tests, where standing up a Firebase
// project is not worth the trouble.
type JWTAuthProvider struct {
	secret []byte
}

func NewJWTAuthProvider(secret string) *JWTAuthProvider {
	return &JWTAuthProvider{
		secret: []byte(secret),
	}
}

// VerifyToken verifies the token signature and returns the subject claim
// as the uid.
func (p *JWTAuthProvider) VerifyToken(_ context.Context, idToken string) (*TokenClaims, error) {
	token, err := jwt.Parse(idToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error parsing token: %v", err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return nil, fmt.Errorf("error getting subject claim: %v", err)
	}
	if subject == "" {
		return nil, fmt.Errorf("token has no subject claim")
	}

	return &TokenClaims{
		UID: subject,
	}, nil
}

// IssueToken signs a token for uid. Test and development helper.
func (p *JWTAuthProvider) IssueToken(uid string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("error signing token: %v", err)
	}
	return signed, nil
}
