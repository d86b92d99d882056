// entries.go implements the HTTP handlers shared by every entry kind: list, get, create,
// update, delete, vote, retract vote and archived version lookup.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/middleware"
	"github.com/plugin-registry/plugin-registry/internal/services"
)

// EntryService is the service surface the entry handlers depend on. T is the entry type
// and PV the patch value type accepted on update.
type EntryService[T any, PV any] interface {
	Kind() string
	List(ctx context.Context) ([]*models.Listing, error)
	Get(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, userID string, entry *T) (*T, error)
	Update(ctx context.Context, userID, id string, patch *PV) (*T, error)
	Delete(ctx context.Context, userID, id string) (int64, error)
	Vote(ctx context.Context, userID, id string, vote int) (models.Votes, error)
	RetractVote(ctx context.Context, userID, id string) (models.Votes, error)
	Version(ctx context.Context, id string, version int) (*T, error)
}

// VoteRequest is the body of a vote. It is accepted as JSON or as a form.
type VoteRequest struct {
	Vote int `json:"vote" form:"vote" binding:"required,oneof=-1 1"`
}

// EntryHandlers serves one entry kind.
type EntryHandlers[T any, PV any] struct {
	svc      EntryService[T, PV]
	notFound string
}

// NewEntryHandlers creates handlers for svc.
func NewEntryHandlers[T any, PV any](svc EntryService[T, PV]) *EntryHandlers[T, PV] {
	kind := svc.Kind()
	return &EntryHandlers[T, PV]{
		svc:      svc,
		notFound: strings.ToUpper(kind[:1]) + kind[1:] + " not found",
	}
}

// Register mounts the handlers on group, which is expected to be authenticated.
func (h *EntryHandlers[T, PV]) Register(group *gin.RouterGroup) {
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
	group.POST("/:id/votes", h.Vote)
	group.DELETE("/:id/votes", h.RetractVote)
	group.GET("/:id/versions/:version", h.Version)
}

// @Summary      List entries
// @Description  Returns every entry without its payload.
// @Security     Bearer
// @Produce      json
// @Success      200  {array}   models.Listing
// @Failure      401  {object}  map[string]interface{}
// @Router       /plugins [get]
// @Router       /overlays [get]
func (h *EntryHandlers[T, PV]) List(c *gin.Context) {
	listings, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

// @Summary      Get entry
// @Description  Returns the full entry and counts the fetch as an import.
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /plugins/{id} [get]
// @Router       /overlays/{id} [get]
func (h *EntryHandlers[T, PV]) Get(c *gin.Context) {
	entry, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": h.notFound})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// @Summary      Create entry
// @Description  Publishes a new entry at version 1 owned by the caller.
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      409  {object}  map[string]interface{}
// @Router       /plugins [post]
// @Router       /overlays [post]
func (h *EntryHandlers[T, PV]) Create(c *gin.Context) {
	var entry T
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), middleware.UserID(c), &entry)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if id := entryID(created); id != "" {
		c.Set(middleware.ResourceIDKey, id)
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary      Update entry
// @Description  Applies the patch as a new version. Only the publisher may update.
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /plugins/{id} [put]
// @Router       /overlays/{id} [put]
func (h *EntryHandlers[T, PV]) Update(c *gin.Context) {
	var patch PV
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.svc.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), &patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// @Summary      Delete entry
// @Description  Removes the entry and its votes. Only the publisher or an admin may delete.
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  map[string]interface{}  "affected: number of deleted rows"
// @Failure      403  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /plugins/{id} [delete]
// @Router       /overlays/{id} [delete]
func (h *EntryHandlers[T, PV]) Delete(c *gin.Context) {
	affected, err := h.svc.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

// @Summary      Vote on entry
// @Description  Records the caller's up (1) or down (-1) vote, replacing an earlier one.
// @Security     Bearer
// @Accept       json
// @Accept       x-www-form-urlencoded
// @Produce      json
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  map[string]interface{}  "votes: the entry's vote list"
// @Failure      400  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /plugins/{id}/votes [post]
// @Router       /overlays/{id}/votes [post]
func (h *EntryHandlers[T, PV]) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vote must be 1 or -1"})
		return
	}

	votes, err := h.svc.Vote(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Vote)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

// @Summary      Retract vote
// @Description  Removes the caller's vote. Retracting a vote that does not exist succeeds.
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "Entry ID"
// @Success      200  {object}  map[string]interface{}  "votes: the entry's vote list"
// @Failure      404  {object}  map[string]interface{}
// @Router       /plugins/{id}/votes [delete]
// @Router       /overlays/{id}/votes [delete]
func (h *EntryHandlers[T, PV]) RetractVote(c *gin.Context) {
	votes, err := h.svc.RetractVote(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

// @Summary      Get archived version
// @Description  Returns the stored snapshot of the entry at the given version.
// @Security     Bearer
// @Produce      json
// @Param        id       path  string  true  "Entry ID"
// @Param        version  path  int     true  "Version number"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]interface{}
// @Router       /plugins/{id}/versions/{version} [get]
// @Router       /overlays/{id}/versions/{version} [get]
func (h *EntryHandlers[T, PV]) Version(c *gin.Context) {
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
		return
	}

	entry, err := h.svc.Version(c.Request.Context(), c.Param("id"), version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// writeError maps service errors onto HTTP responses. Unexpected errors are logged
// and reported without detail.
func (h *EntryHandlers[T, PV]) writeError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "violations": verr.Violations})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the publisher may modify this " + h.svc.Kind()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": h.notFound})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "An entry with this name and version already exists"})
	default:
		slog.Error("request failed",
			"kind", h.svc.Kind(),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", c.GetString(middleware.RequestIDKey),
			"error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// entryID extracts the id from an entry that embeds models.Listing.
func entryID(entry interface{}) string {
	if l, ok := entry.(interface{ GetID() string }); ok {
		return l.GetID()
	}
	return ""
}
