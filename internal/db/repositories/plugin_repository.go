// plugin_repository.go implements PluginRepository, providing database queries for plugin
// CRUD, the atomic import counter and per-user votes.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

// PluginRepository handles database operations for plugins
type PluginRepository struct {
	store entityStore[models.Plugin]
}

// NewPluginRepository creates a new plugin repository
func NewPluginRepository(db *sqlx.DB) *PluginRepository {
	return &PluginRepository{store: entityStore[models.Plugin]{
		db: db,
		t: entityTable{
			table:     "plugin",
			voteTable: "plugin_vote",
			voteFK:    "pluginId",
			payload:   []string{"plugin"},
		},
	}}
}

// ListPlugins returns every plugin without its payload, newest first
func (r *PluginRepository) ListPlugins(ctx context.Context) ([]*models.Listing, error) {
	return r.store.list(ctx)
}

// GetPlugin retrieves a plugin by id, or nil if not found
func (r *PluginRepository) GetPlugin(ctx context.Context, id string) (*models.Plugin, error) {
	return r.store.get(ctx, r.store.db, id)
}

// IncrementImportedCount atomically bumps importedCount and returns the updated plugin,
// or nil if not found
func (r *PluginRepository) IncrementImportedCount(ctx context.Context, id string) (*models.Plugin, error) {
	return r.store.incrementImported(ctx, id)
}

// CreatePlugin inserts a new plugin row
func (r *PluginRepository) CreatePlugin(ctx context.Context, plugin *models.Plugin) error {
	return r.store.create(ctx, plugin)
}

// UpdatePlugin applies mutate to the locked plugin row and stores it with version+1.
// Returns nil if the plugin does not exist.
func (r *PluginRepository) UpdatePlugin(ctx context.Context, id string, mutate func(*models.Plugin) error) (*models.Plugin, error) {
	return r.store.update(ctx, id, mutate)
}

// DeletePlugin deletes a plugin and, through the foreign key, its votes
func (r *PluginRepository) DeletePlugin(ctx context.Context, id string) (int64, error) {
	return r.store.delete(ctx, id)
}

// CastVote records userID's vote, replacing any earlier vote by the same user
func (r *PluginRepository) CastVote(ctx context.Context, pluginID, userID string, vote int) error {
	return r.store.castVote(ctx, pluginID, userID, vote)
}

// RetractVote removes userID's vote. Removing a vote that does not exist is not an error.
func (r *PluginRepository) RetractVote(ctx context.Context, pluginID, userID string) (int64, error) {
	return r.store.retractVote(ctx, pluginID, userID)
}

// ListVotes returns the plugin's votes, or nil if the plugin does not exist
func (r *PluginRepository) ListVotes(ctx context.Context, pluginID string) (models.Votes, error) {
	return r.store.listVotes(ctx, pluginID)
}
