// plugin.go binds the registry operations to the plugin repository.
package services

import (
	"context"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
)

// PluginService implements the plugin operations.
type PluginService = Registry[models.Plugin, *models.PluginPatch]

// NewPluginService creates the plugin service. archive may be nil to disable snapshots.
func NewPluginService(repo *repositories.PluginRepository, archive *Archiver, admins AdminPolicy) *PluginService {
	return newRegistry[models.Plugin, *models.PluginPatch]("plugin", pluginStore{repo}, pluginEnvelope, archive, admins)
}

func pluginEnvelope(p *models.Plugin) *models.Listing { return &p.Listing }

// pluginStore adapts PluginRepository to Store.
type pluginStore struct {
	repo *repositories.PluginRepository
}

func (s pluginStore) List(ctx context.Context) ([]*models.Listing, error) {
	return s.repo.ListPlugins(ctx)
}

func (s pluginStore) Get(ctx context.Context, id string) (*models.Plugin, error) {
	return s.repo.GetPlugin(ctx, id)
}

func (s pluginStore) IncrementImportedCount(ctx context.Context, id string) (*models.Plugin, error) {
	return s.repo.IncrementImportedCount(ctx, id)
}

func (s pluginStore) Create(ctx context.Context, p *models.Plugin) error {
	return s.repo.CreatePlugin(ctx, p)
}

func (s pluginStore) Update(ctx context.Context, id string, mutate func(*models.Plugin) error) (*models.Plugin, error) {
	return s.repo.UpdatePlugin(ctx, id, mutate)
}

func (s pluginStore) Delete(ctx context.Context, id string) (int64, error) {
	return s.repo.DeletePlugin(ctx, id)
}

func (s pluginStore) CastVote(ctx context.Context, id, userID string, vote int) error {
	return s.repo.CastVote(ctx, id, userID, vote)
}

func (s pluginStore) RetractVote(ctx context.Context, id, userID string) (int64, error) {
	return s.repo.RetractVote(ctx, id, userID)
}

func (s pluginStore) ListVotes(ctx context.Context, id string) (models.Votes, error) {
	return s.repo.ListVotes(ctx, id)
}
