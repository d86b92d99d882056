package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisClient() error: %v", err)
	}
	defer client.Close()

	if err := client.Set(context.Background(), "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("stored value = %q, want v", got)
	}
}

func TestNewRedisClient_Errors(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), config.RedisConfig{}); err == nil {
		t.Error("expected error for empty address")
	}

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisClient(context.Background(), config.RedisConfig{Addr: addr}); err == nil {
		t.Error("expected error for unreachable redis")
	}
}

func TestNeeded(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		want bool
	}{
		{"nothing enabled", config.Config{}, false},
		{"memory cache", config.Config{Auth: config.AuthConfig{Cache: config.AuthCacheConfig{Enabled: true, Backend: "memory"}}}, false},
		{"redis cache", config.Config{Auth: config.AuthConfig{Cache: config.AuthCacheConfig{Enabled: true, Backend: "redis"}}}, true},
		{"redis cache disabled", config.Config{Auth: config.AuthConfig{Cache: config.AuthCacheConfig{Backend: "redis"}}}, false},
		{"redis limiter", config.Config{Security: config.SecurityConfig{RateLimiting: config.RateLimitingConfig{Enabled: true, Backend: "redis"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Needed(&tt.cfg); got != tt.want {
				t.Errorf("Needed() = %v, want %v", got, tt.want)
			}
		})
	}
}
