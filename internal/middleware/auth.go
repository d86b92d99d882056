// Package middleware provides Gin HTTP middleware for authentication, authorization,
// rate limiting, security headers, and audit logging.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RateLimit(ip) → Auth → RateLimit(user) → RequireAdmin → Audit → Handler
//
// Security headers run first so they appear on all responses including errors.
// The per-ip limiter runs before auth so floods of bad tokens never reach the
// identity provider. Auth populates the caller identity; the per-user limiter keys
// its buckets on it and RequireAdmin and the handlers read it.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/auth"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey   = "user_id"
	LoginKey    = "login"
	IdentityKey = "identity"
)

// AuthMiddleware resolves the bearer token through verifier and stores the
// caller's identity in the gin context. Requests without a valid token are
// rejected with 401.
func AuthMiddleware(verifier auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ParseBearer(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed bearer token",
			})
			return
		}

		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				slog.Warn("token verification failed", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		c.Set(UserIDKey, identity.UserID)
		c.Set(LoginKey, identity.Login)
		c.Set(IdentityKey, identity)

		c.Next()
	}
}

// UserID returns the authenticated caller's id, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
