// Package auth - jwt.go verifies HS256 tokens signed with a shared secret. It is meant for
// service-to-service calls and local development, where the `token` command issues tokens.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

// minSecretLength is the shortest accepted HS256 secret
const minSecretLength = 32

// Claims represents the JWT claims structure
type Claims struct {
	Login  string   `json:"login,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier validates shared-secret HS256 tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
}

// NewJWTVerifier creates a verifier for cfg.
func NewJWTVerifier(cfg config.JWTConfig) (*JWTVerifier, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	}
	return &JWTVerifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}, nil
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	id, err := v.verify(token)
	recordVerification("jwt", err)
	return id, err
}

func (v *JWTVerifier) verify(token string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return &Identity{
		UserID:    claims.Subject,
		Login:     claims.Login,
		Scopes:    claims.Scopes,
		ExpiresIn: time.Until(claims.ExpiresAt.Time),
	}, nil
}

// Issue signs a token for userID valid for ttl.
func (v *JWTVerifier) Issue(userID, login string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Login: login,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
