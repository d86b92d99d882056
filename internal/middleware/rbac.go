// rbac.go restricts administrative routes to the identities listed in auth.admin_users.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminPolicy decides whether a user id has administrative rights.
type AdminPolicy interface {
	IsAdmin(userID string) bool
}

// RequireAdmin aborts with 403 unless the authenticated caller is an admin.
// It must run after AuthMiddleware.
func RequireAdmin(policy AdminPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		if !policy.IsAdmin(userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}
