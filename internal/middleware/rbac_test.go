package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/config"
)

func newAdminRouter(userID string) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if userID != "" {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	})
	r.Use(RequireAdmin(&config.AuthConfig{AdminUsers: []string{"admin-1"}}))
	r.GET("/admin", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

// ---------------------------------------------------------------------------
// RequireAdmin tests
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		userID string
		want   int
	}{
		{"admin", "admin-1", http.StatusOK},
		{"regular user", "U1", http.StatusForbidden},
		{"unauthenticated", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newAdminRouter(tt.userID).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
