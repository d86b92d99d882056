// overlay_repository.go implements OverlayRepository, providing database queries for overlay
// CRUD, the atomic import counter and per-user votes.
package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
)

// OverlayRepository handles database operations for overlays
type OverlayRepository struct {
	store entityStore[models.Overlay]
}

// NewOverlayRepository creates a new overlay repository
func NewOverlayRepository(db *sqlx.DB) *OverlayRepository {
	return &OverlayRepository{store: entityStore[models.Overlay]{
		db: db,
		t: entityTable{
			table:     "overlay",
			voteTable: "overlay_vote",
			voteFK:    "overlayId",
			payload:   []string{"items", "data"},
		},
	}}
}

// ListOverlays returns every overlay without its payload, newest first
func (r *OverlayRepository) ListOverlays(ctx context.Context) ([]*models.Listing, error) {
	return r.store.list(ctx)
}

// GetOverlay retrieves an overlay by id, or nil if not found
func (r *OverlayRepository) GetOverlay(ctx context.Context, id string) (*models.Overlay, error) {
	return r.store.get(ctx, r.store.db, id)
}

// IncrementImportedCount atomically bumps importedCount and returns the updated overlay,
// or nil if not found
func (r *OverlayRepository) IncrementImportedCount(ctx context.Context, id string) (*models.Overlay, error) {
	return r.store.incrementImported(ctx, id)
}

// CreateOverlay inserts a new overlay row
func (r *OverlayRepository) CreateOverlay(ctx context.Context, overlay *models.Overlay) error {
	return r.store.create(ctx, overlay)
}

// UpdateOverlay applies mutate to the locked overlay row and stores it with version+1.
// Returns nil if the overlay does not exist.
func (r *OverlayRepository) UpdateOverlay(ctx context.Context, id string, mutate func(*models.Overlay) error) (*models.Overlay, error) {
	return r.store.update(ctx, id, mutate)
}

// DeleteOverlay deletes an overlay and, through the foreign key, its votes
func (r *OverlayRepository) DeleteOverlay(ctx context.Context, id string) (int64, error) {
	return r.store.delete(ctx, id)
}

// CastVote records userID's vote, replacing any earlier vote by the same user
func (r *OverlayRepository) CastVote(ctx context.Context, overlayID, userID string, vote int) error {
	return r.store.castVote(ctx, overlayID, userID, vote)
}

// RetractVote removes userID's vote. Removing a vote that does not exist is not an error.
func (r *OverlayRepository) RetractVote(ctx context.Context, overlayID, userID string) (int64, error) {
	return r.store.retractVote(ctx, overlayID, userID)
}

// ListVotes returns the overlay's votes, or nil if the overlay does not exist
func (r *OverlayRepository) ListVotes(ctx context.Context, overlayID string) (models.Votes, error) {
	return r.store.listVotes(ctx, overlayID)
}
