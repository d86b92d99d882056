// audit.go serves the admin-only audit log listing.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
)

const (
	defaultAuditPageSize = 50
	maxAuditPageSize     = 500
)

// AuditLogReader lists audit records.
type AuditLogReader interface {
	ListAuditLogs(ctx context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error)
}

// @Summary      List audit logs
// @Description  Lists audit records newest first. Admins only.
// @Tags         Admin
// @Security     Bearer
// @Produce      json
// @Param        user_id        query  string  false  "Filter by caller"
// @Param        action         query  string  false  "Filter by action, e.g. plugin.create"
// @Param        resource_type  query  string  false  "plugin or overlay"
// @Param        resource_id    query  string  false  "Filter by entry id"
// @Param        start_date     query  string  false  "RFC3339 lower bound"
// @Param        end_date       query  string  false  "RFC3339 upper bound"
// @Param        limit          query  int     false  "Page size (default 50, max 500)"
// @Param        offset         query  int     false  "Offset"
// @Success      200  {object}  map[string]interface{}  "logs, total, limit, offset"
// @Failure      400  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Router       /admin/audit-logs [get]
func listAuditLogsHandler(reader AuditLogReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", defaultAuditPageSize)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if limit > maxAuditPageSize {
			limit = maxAuditPageSize
		}
		offset, err := queryInt(c, "offset", 0)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be a non-negative integer"})
			return
		}

		filters := repositories.AuditFilters{
			UserID:       queryString(c, "user_id"),
			Action:       queryString(c, "action"),
			ResourceType: queryString(c, "resource_type"),
			ResourceID:   queryString(c, "resource_id"),
		}
		if filters.StartDate, err = queryTime(c, "start_date"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be RFC3339"})
			return
		}
		if filters.EndDate, err = queryTime(c, "end_date"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be RFC3339"})
			return
		}

		logs, total, err := reader.ListAuditLogs(c.Request.Context(), filters, limit, offset)
		if err != nil {
			slog.Error("failed to list audit logs", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audit logs"})
			return
		}
		if logs == nil {
			logs = []*models.AuditLog{}
		}

		c.JSON(http.StatusOK, gin.H{
			"logs":   logs,
			"total":  total,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func queryString(c *gin.Context, key string) *string {
	if v := c.Query(key); v != "" {
		return &v
	}
	return nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
