// cache.go implements the identity cache used by CachingVerifier. Entries are keyed by a
// BLAKE2b-256 fingerprint of the token so raw tokens never leave the verifier.
package auth

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/plugin-registry/plugin-registry/internal/telemetry"
)

const redisKeyPrefix = "plugin-registry:identity:"

// IdentityCache stores verified identities by token fingerprint.
type IdentityCache interface {
	Get(ctx context.Context, key string) (*Identity, bool, error)
	Set(ctx context.Context, key string, id *Identity, ttl time.Duration) error
}

// Fingerprint returns the hex BLAKE2b-256 digest of token.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// tokenExpiry returns when the token behind id expires, or the zero time when it does
// not report a lifetime.
func tokenExpiry(id *Identity, now time.Time) time.Time {
	if id.ExpiresIn <= 0 {
		return time.Time{}
	}
	return now.Add(id.ExpiresIn)
}

// remaining returns a copy of id whose ExpiresIn counts down to tokenExpiresAt.
func remaining(id Identity, tokenExpiresAt, now time.Time) *Identity {
	if !tokenExpiresAt.IsZero() {
		id.ExpiresIn = tokenExpiresAt.Sub(now)
	}
	return &id
}

type memoryEntry struct {
	identity       Identity
	expiresAt      time.Time
	tokenExpiresAt time.Time
}

// MemoryCache is an in-process expirable LRU. The LRU evicts at the configured TTL;
// shorter per-token lifetimes are enforced on read.
type MemoryCache struct {
	lru *lru.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryCache creates a cache holding at most size identities for at most ttl.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 10000
	}
	return &MemoryCache{lru: lru.NewLRU[string, memoryEntry](size, nil, ttl), now: time.Now}
}

// Get implements IdentityCache.
func (c *MemoryCache) Get(ctx context.Context, key string) (*Identity, bool, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	now := c.now()
	if now.After(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return remaining(entry.identity, entry.tokenExpiresAt, now), true, nil
}

// Set implements IdentityCache.
func (c *MemoryCache) Set(ctx context.Context, key string, id *Identity, ttl time.Duration) error {
	now := c.now()
	c.lru.Add(key, memoryEntry{identity: *id, expiresAt: now.Add(ttl), tokenExpiresAt: tokenExpiry(id, now)})
	return nil
}

// redisEntry is the JSON document stored per token.
type redisEntry struct {
	Identity       Identity  `json:"identity"`
	TokenExpiresAt time.Time `json:"token_expires_at,omitempty"`
}

// RedisCache shares identities between replicas through Redis.
type RedisCache struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCache creates a cache backed by client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, now: time.Now}
}

// Get implements IdentityCache.
func (c *RedisCache) Get(ctx context.Context, key string) (*Identity, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read identity cache: %w", err)
	}

	var entry redisEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached identity: %w", err)
	}
	now := c.now()
	if !entry.TokenExpiresAt.IsZero() && !now.Before(entry.TokenExpiresAt) {
		return nil, false, nil
	}
	return remaining(entry.Identity, entry.TokenExpiresAt, now), true, nil
}

// Set implements IdentityCache.
func (c *RedisCache) Set(ctx context.Context, key string, id *Identity, ttl time.Duration) error {
	raw, err := json.Marshal(redisEntry{Identity: *id, TokenExpiresAt: tokenExpiry(id, c.now())})
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write identity cache: %w", err)
	}
	return nil
}

// CachingVerifier serves repeat tokens from an IdentityCache. Only successful verifications
// are cached; cache failures fall through to the wrapped verifier.
type CachingVerifier struct {
	next  Verifier
	cache IdentityCache
	ttl   time.Duration
}

// NewCachingVerifier wraps next with cache. Entries live for at most ttl.
func NewCachingVerifier(next Verifier, cache IdentityCache, ttl time.Duration) *CachingVerifier {
	return &CachingVerifier{next: next, cache: cache, ttl: ttl}
}

// Verify implements Verifier.
func (v *CachingVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	key := Fingerprint(token)

	id, ok, err := v.cache.Get(ctx, key)
	switch {
	case err != nil:
		telemetry.TokenCacheTotal.WithLabelValues("error").Inc()
		slog.Warn("identity cache lookup failed", "error", err)
	case ok:
		telemetry.TokenCacheTotal.WithLabelValues("hit").Inc()
		return id, nil
	default:
		telemetry.TokenCacheTotal.WithLabelValues("miss").Inc()
	}

	id, err = v.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	ttl := v.ttl
	if id.ExpiresIn > 0 && id.ExpiresIn < ttl {
		ttl = id.ExpiresIn
	}
	if ttl > 0 {
		if err := v.cache.Set(ctx, key, id, ttl); err != nil {
			slog.Warn("identity cache write failed", "error", err)
		}
	}
	return id, nil
}
