// overlay.go binds the registry operations to the overlay repository.
package services

import (
	"context"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
)

// OverlayService implements the overlay operations.
type OverlayService = Registry[models.Overlay, *models.OverlayPatch]

// NewOverlayService creates the overlay service. archive may be nil to disable snapshots.
func NewOverlayService(repo *repositories.OverlayRepository, archive *Archiver, admins AdminPolicy) *OverlayService {
	return newRegistry[models.Overlay, *models.OverlayPatch]("overlay", overlayStore{repo}, overlayEnvelope, archive, admins)
}

func overlayEnvelope(o *models.Overlay) *models.Listing { return &o.Listing }

// overlayStore adapts OverlayRepository to Store.
type overlayStore struct {
	repo *repositories.OverlayRepository
}

func (s overlayStore) List(ctx context.Context) ([]*models.Listing, error) {
	return s.repo.ListOverlays(ctx)
}

func (s overlayStore) Get(ctx context.Context, id string) (*models.Overlay, error) {
	return s.repo.GetOverlay(ctx, id)
}

func (s overlayStore) IncrementImportedCount(ctx context.Context, id string) (*models.Overlay, error) {
	return s.repo.IncrementImportedCount(ctx, id)
}

func (s overlayStore) Create(ctx context.Context, o *models.Overlay) error {
	return s.repo.CreateOverlay(ctx, o)
}

func (s overlayStore) Update(ctx context.Context, id string, mutate func(*models.Overlay) error) (*models.Overlay, error) {
	return s.repo.UpdateOverlay(ctx, id, mutate)
}

func (s overlayStore) Delete(ctx context.Context, id string) (int64, error) {
	return s.repo.DeleteOverlay(ctx, id)
}

func (s overlayStore) CastVote(ctx context.Context, id, userID string, vote int) error {
	return s.repo.CastVote(ctx, id, userID, vote)
}

func (s overlayStore) RetractVote(ctx context.Context, id, userID string) (int64, error) {
	return s.repo.RetractVote(ctx, id, userID)
}

func (s overlayStore) ListVotes(ctx context.Context, id string) (models.Votes, error) {
	return s.repo.ListVotes(ctx, id)
}
