package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried inside a session token.
type Claims struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenSigner issues and validates the provider's session tokens.
type TokenSigner struct {
	secret   []byte
	lifetime time.Duration
}

func NewTokenSigner(secret string, lifetime time.Duration) TokenSigner {
	return TokenSigner{secret: []byte(secret), lifetime: lifetime}
}

// Sign creates an HS256 token for the given identity.
func (s TokenSigner) Sign(uid, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UID:   uid,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			Issuer:    "campuschat",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Validate parses a token string and returns its claims if the signature
// and expiry check out.
func (s TokenSigner) Validate(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}
