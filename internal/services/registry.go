// registry.go implements the entry lifecycle shared by plugins and overlays: list, get with the
// import counter, create, owner-only update and delete, and per-user votes.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"
	"github.com/plugin-registry/plugin-registry/internal/validation"
)

// Store is the persistence contract of one entry kind. A missing entry is reported as a
// nil result with a nil error.
type Store[T any] interface {
	List(ctx context.Context) ([]*models.Listing, error)
	Get(ctx context.Context, id string) (*T, error)
	IncrementImportedCount(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, entry *T) error
	Update(ctx context.Context, id string, mutate func(*T) error) (*T, error)
	Delete(ctx context.Context, id string) (int64, error)
	CastVote(ctx context.Context, id, userID string, vote int) error
	RetractVote(ctx context.Context, id, userID string) (int64, error)
	ListVotes(ctx context.Context, id string) (models.Votes, error)
}

// Patch is an allow-listed partial update of T.
type Patch[T any] interface {
	Apply(*T)
}

// AdminPolicy reports whether a user may delete entries they do not own.
type AdminPolicy interface {
	IsAdmin(userID string) bool
}

// Registry implements the operations of one entry kind on top of its Store.
type Registry[T any, P Patch[T]] struct {
	kind     string
	store    Store[T]
	envelope func(*T) *models.Listing
	archive  *Archiver
	admins   AdminPolicy
	now      func() time.Time
}

func newRegistry[T any, P Patch[T]](kind string, store Store[T], envelope func(*T) *models.Listing, archive *Archiver, admins AdminPolicy) *Registry[T, P] {
	return &Registry[T, P]{
		kind:     kind,
		store:    store,
		envelope: envelope,
		archive:  archive,
		admins:   admins,
		now:      time.Now,
	}
}

// Kind returns the entry kind handled by the registry ("plugin" or "overlay").
func (r *Registry[T, P]) Kind() string {
	return r.kind
}

// validID reports whether id is a well-formed uuid. Malformed ids can never match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// List returns every entry without its payload.
func (r *Registry[T, P]) List(ctx context.Context) ([]*models.Listing, error) {
	return r.store.List(ctx)
}

// Get returns the full entry and counts the fetch as an import. A missing entry, including a
// malformed id, is (nil, nil).
func (r *Registry[T, P]) Get(ctx context.Context, id string) (*T, error) {
	if !validID(id) {
		return nil, nil
	}

	entry, err := r.store.IncrementImportedCount(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}

	telemetry.ImportsTotal.WithLabelValues(r.kind).Inc()
	return entry, nil
}

// Create stores a new entry published by userID. Server-owned fields supplied by the caller
// are overwritten.
func (r *Registry[T, P]) Create(ctx context.Context, userID string, entry *T) (*T, error) {
	env := r.envelope(entry)
	env.ID = uuid.New().String()
	env.PublisherID = userID
	env.PublishedAt = models.FormatPublishedAt(r.now())
	env.Version = 1
	env.ImportedCount = 0
	env.Votes = models.Votes{}

	if err := validate(entry); err != nil {
		return nil, err
	}

	if err := r.store.Create(ctx, entry); err != nil {
		return nil, mapStoreError(err)
	}

	telemetry.MutationsTotal.WithLabelValues(r.kind, "create").Inc()
	slog.Info("entry created", "kind", r.kind, "id", env.ID, "publisher_id", userID)
	r.archiveVersion(env.ID, env.Version, entry)
	return entry, nil
}

// Update applies patch to the entry as a new version. Only the publisher may update.
func (r *Registry[T, P]) Update(ctx context.Context, userID, id string, patch P) (*T, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	updated, err := r.store.Update(ctx, id, func(current *T) error {
		env := r.envelope(current)
		if !env.IsOwnedBy(userID) {
			return ErrForbidden
		}

		patch.Apply(current)
		env.Version++
		env.PublishedAt = models.FormatPublishedAt(r.now())
		return validate(current)
	})
	if err != nil {
		var verr *ValidationError
		if errors.Is(err, ErrForbidden) || errors.As(err, &verr) {
			return nil, err
		}
		return nil, mapStoreError(err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}

	env := r.envelope(updated)
	telemetry.MutationsTotal.WithLabelValues(r.kind, "update").Inc()
	slog.Info("entry updated", "kind", r.kind, "id", id, "version", env.Version)
	r.archiveVersion(id, env.Version, updated)
	return updated, nil
}

// Delete removes the entry and its votes. Only the publisher or an admin may delete.
func (r *Registry[T, P]) Delete(ctx context.Context, userID, id string) (int64, error) {
	if !validID(id) {
		return 0, ErrNotFound
	}

	current, err := r.store.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, ErrNotFound
	}
	env := r.envelope(current)
	if !env.IsOwnedBy(userID) && (r.admins == nil || !r.admins.IsAdmin(userID)) {
		return 0, ErrForbidden
	}

	affected, err := r.store.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		return 0, ErrNotFound
	}

	telemetry.MutationsTotal.WithLabelValues(r.kind, "delete").Inc()
	slog.Info("entry deleted", "kind", r.kind, "id", id, "user_id", userID)
	r.purgeVersions(id, env.Version)
	return affected, nil
}

// Vote records userID's vote (1 or -1) on the entry, replacing any earlier vote, and returns
// the entry's votes.
func (r *Registry[T, P]) Vote(ctx context.Context, userID, id string, vote int) (models.Votes, error) {
	if vote != 1 && vote != -1 {
		return nil, &ValidationError{Violations: []validation.Violation{{Path: "vote", Error: "oneof", Param: "-1 1"}}}
	}
	if !validID(id) {
		return nil, ErrNotFound
	}

	if err := r.store.CastVote(ctx, id, userID, vote); err != nil {
		return nil, mapStoreError(err)
	}
	telemetry.VotesTotal.WithLabelValues(r.kind, "cast").Inc()

	return r.votes(ctx, id)
}

// RetractVote removes userID's vote from the entry, if any, and returns the entry's votes.
func (r *Registry[T, P]) RetractVote(ctx context.Context, userID, id string) (models.Votes, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}

	affected, err := r.store.RetractVote(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if affected > 0 {
		telemetry.VotesTotal.WithLabelValues(r.kind, "retract").Inc()
	}

	return r.votes(ctx, id)
}

func (r *Registry[T, P]) votes(ctx context.Context, id string) (models.Votes, error) {
	votes, err := r.store.ListVotes(ctx, id)
	if err != nil {
		return nil, err
	}
	if votes == nil {
		return nil, ErrNotFound
	}
	return votes, nil
}

// Version returns the archived snapshot of the entry at version. Snapshots of deleted entries
// are never served, even while a purge is still pending.
func (r *Registry[T, P]) Version(ctx context.Context, id string, version int) (*T, error) {
	if r.archive == nil || !validID(id) || version < 1 {
		return nil, ErrNotFound
	}

	current, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil || version > r.envelope(current).Version {
		return nil, ErrNotFound
	}

	var entry T
	if err := r.archive.Load(ctx, r.kind, id, version, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *Registry[T, P]) archiveVersion(id string, version int, entry *T) {
	if r.archive == nil {
		return
	}
	r.archive.StoreAsync(r.kind, id, version, entry)
}

func (r *Registry[T, P]) purgeVersions(id string, latest int) {
	if r.archive == nil {
		return
	}
	r.archive.PurgeAsync(r.kind, id, latest)
}
