package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTVerifier_RoundTrip(t *testing.T) {
	v, err := NewJWTVerifier(config.JWTConfig{Secret: testSecret, Issuer: "plugin-registry"})
	if err != nil {
		t.Fatal(err)
	}

	token, err := v.Issue("U1", "publisher", time.Hour)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if id.UserID != "U1" || id.Login != "publisher" {
		t.Errorf("identity = %+v", id)
	}
	if id.ExpiresIn <= 0 || id.ExpiresIn > time.Hour {
		t.Errorf("ExpiresIn = %v, want (0, 1h]", id.ExpiresIn)
	}
}

func TestJWTVerifier_Rejections(t *testing.T) {
	v, _ := NewJWTVerifier(config.JWTConfig{Secret: testSecret, Issuer: "plugin-registry"})
	other, _ := NewJWTVerifier(config.JWTConfig{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "plugin-registry"})
	wrongIssuer, _ := NewJWTVerifier(config.JWTConfig{Secret: testSecret, Issuer: "elsewhere"})

	expired, _ := v.Issue("U1", "", -time.Minute)
	foreign, _ := other.Issue("U1", "", time.Hour)
	misissued, _ := wrongIssuer.Issue("U1", "", time.Hour)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "plugin-registry",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "U1", Issuer: "plugin-registry"},
	}).SignedString([]byte(testSecret))

	tests := map[string]string{
		"expired":        expired,
		"wrong secret":   foreign,
		"wrong issuer":   misissued,
		"no subject":     noSubject,
		"no expiry":      noExpiry,
		"not a jwt":      "opaque-token",
		"none algorithm": "eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0.eyJzdWIiOiJVMSJ9.",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestNewJWTVerifier_ShortSecret(t *testing.T) {
	if _, err := NewJWTVerifier(config.JWTConfig{Secret: "too-short"}); err == nil {
		t.Error("NewJWTVerifier() expected error for short secret")
	}
}
