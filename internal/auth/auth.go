// Package auth verifies bearer tokens against the configured identity provider. Every provider
// implements Verifier; CachingVerifier wraps any of them so repeated requests with the same token
// skip the provider round trip.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"
)

var (
	// ErrMissingToken is returned when a request carries no usable bearer token
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken is returned when the identity provider rejects the token
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller resolved from a token.
type Identity struct {
	UserID    string        `json:"user_id"`
	Login     string        `json:"login"`
	Scopes    []string      `json:"scopes"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Verifier resolves a bearer token to an Identity. Rejected tokens yield an error
// wrapping ErrInvalidToken.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("%w: authorization header must use the Bearer scheme", ErrMissingToken)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty bearer token", ErrMissingToken)
	}
	return token, nil
}

// recordVerification counts a provider call by outcome.
func recordVerification(provider string, err error) {
	result := "valid"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidToken):
		result = "invalid"
	default:
		result = "error"
	}
	telemetry.TokenVerificationsTotal.WithLabelValues(provider, result).Inc()
}

// NewVerifier builds the verifier for cfg.Provider, wrapped in a CachingVerifier when the
// identity cache is enabled. rdb is only required for the redis cache backend.
func NewVerifier(ctx context.Context, cfg *config.AuthConfig, rdb *redis.Client) (Verifier, error) {
	var (
		v   Verifier
		err error
	)
	switch cfg.Provider {
	case "twitch":
		v = NewIntrospectionVerifier(cfg.Twitch)
	case "oidc":
		v, err = NewOIDCVerifier(ctx, cfg.OIDC)
	case "jwt":
		v, err = NewJWTVerifier(cfg.JWT)
	default:
		return nil, fmt.Errorf("unsupported auth provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enabled {
		return v, nil
	}

	var cache IdentityCache
	switch cfg.Cache.Backend {
	case "memory", "":
		cache = NewMemoryCache(cfg.Cache.Size, cfg.Cache.TTL)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis identity cache requires a redis client")
		}
		cache = NewRedisCache(rdb)
	default:
		return nil, fmt.Errorf("unsupported identity cache backend: %s", cfg.Cache.Backend)
	}

	return NewCachingVerifier(v, cache, cfg.Cache.TTL), nil
}
