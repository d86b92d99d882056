// audit.go provides Gin middleware that records mutations of plugins and overlays to the
// audit log. Records are written in the background so a slow audit table never delays
// the response.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/safego"
)

// ResourceIDKey lets a handler report the id of a resource it created, which is not
// part of the request path.
const ResourceIDKey = "resource_id"

const auditWriteTimeout = 5 * time.Second

// AuditWriter persists audit records.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// auditedKinds maps the first route segment to the audited resource type.
var auditedKinds = map[string]string{
	"plugins":  "plugin",
	"overlays": "overlay",
}

// AuditMiddleware records successful POST, PUT and DELETE requests on registry
// entries. Failed requests are recorded only when cfg.LogFailedRequests is set.
func AuditMiddleware(writer AuditWriter, cfg config.AuditConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if !cfg.Enabled {
			return
		}
		if c.Writer.Status() >= 400 && !cfg.LogFailedRequests {
			return
		}

		resourceType, action, ok := auditAction(c.Request.Method, c.FullPath())
		if !ok {
			return
		}

		entry := &models.AuditLog{
			Action:       action,
			ResourceType: &resourceType,
			CreatedAt:    time.Now().UTC(),
			Metadata: map[string]interface{}{
				"status_code": c.Writer.Status(),
			},
		}

		if userID := UserID(c); userID != "" {
			entry.UserID = &userID
		}
		if login := c.GetString(LoginKey); login != "" {
			entry.Metadata["login"] = login
		}
		if requestID := c.GetString(RequestIDKey); requestID != "" {
			entry.Metadata["request_id"] = requestID
		}

		resourceID := c.Param("id")
		if resourceID == "" {
			resourceID = c.GetString(ResourceIDKey)
		}
		if resourceID != "" {
			entry.ResourceID = &resourceID
		}

		ip := c.ClientIP()
		entry.IPAddress = &ip

		safego.Go("audit-log", func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if err := writer.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "action", entry.Action, "error", err)
			}
		})
	}
}

// auditAction derives the resource type and action from the matched route.
func auditAction(method, route string) (resourceType, action string, ok bool) {
	segments := strings.Split(strings.Trim(route, "/"), "/")
	resourceType, ok = auditedKinds[segments[0]]
	if !ok {
		return "", "", false
	}

	switch {
	case len(segments) == 1 && method == http.MethodPost:
		return resourceType, "create", true
	case len(segments) == 2 && method == http.MethodPut:
		return resourceType, "update", true
	case len(segments) == 2 && method == http.MethodDelete:
		return resourceType, "delete", true
	case len(segments) == 3 && segments[2] == "votes" && method == http.MethodPost:
		return resourceType, "vote", true
	case len(segments) == 3 && segments[2] == "votes" && method == http.MethodDelete:
		return resourceType, "retract_vote", true
	}
	return "", "", false
}
