package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/plugin-registry/plugin-registry/internal/auth"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/db/repositories"
	"github.com/plugin-registry/plugin-registry/internal/services"
)

// fakeEntries is an in-memory EntryService. Ownership and vote rules follow the
// real registry closely enough to exercise the handlers' error mapping.
type fakeEntries[T any, PV any] struct {
	kind     string
	envelope func(*T) *models.Listing
	apply    func(*PV, *T)

	mu       sync.Mutex
	entries  map[string]*T
	votes    map[string]models.Votes
	versions map[string]*T
	nextID   int
	err      error
}

func newFakePlugins() *fakeEntries[models.Plugin, models.PluginPatch] {
	return &fakeEntries[models.Plugin, models.PluginPatch]{
		kind:     "plugin",
		envelope: func(p *models.Plugin) *models.Listing { return &p.Listing },
		apply:    func(patch *models.PluginPatch, p *models.Plugin) { patch.Apply(p) },
		entries:  map[string]*models.Plugin{},
		votes:    map[string]models.Votes{},
		versions: map[string]*models.Plugin{},
	}
}

func newFakeOverlays() *fakeEntries[models.Overlay, models.OverlayPatch] {
	return &fakeEntries[models.Overlay, models.OverlayPatch]{
		kind:     "overlay",
		envelope: func(o *models.Overlay) *models.Listing { return &o.Listing },
		apply:    func(patch *models.OverlayPatch, o *models.Overlay) { patch.Apply(o) },
		entries:  map[string]*models.Overlay{},
		votes:    map[string]models.Votes{},
		versions: map[string]*models.Overlay{},
	}
}

func (f *fakeEntries[T, PV]) Kind() string { return f.kind }

func (f *fakeEntries[T, PV]) List(ctx context.Context) ([]*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := []*models.Listing{}
	for _, e := range f.entries {
		l := *f.envelope(e)
		out = append(out, &l)
	}
	return out, nil
}

func (f *fakeEntries[T, PV]) Get(ctx context.Context, id string) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	f.envelope(e).ImportedCount++
	return e, nil
}

func (f *fakeEntries[T, PV]) Create(ctx context.Context, userID string, entry *T) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	env := f.envelope(entry)
	if env.Name == "" {
		return nil, &services.ValidationError{}
	}
	for _, e := range f.entries {
		other := f.envelope(e)
		if other.Name == env.Name && other.PublisherID == userID && other.Version == 1 {
			return nil, services.ErrConflict
		}
	}
	f.nextID++
	env.ID = fmt.Sprintf("id-%d", f.nextID)
	env.PublisherID = userID
	env.Version = 1
	env.Votes = models.Votes{}
	f.entries[env.ID] = entry
	return entry, nil
}

func (f *fakeEntries[T, PV]) Update(ctx context.Context, userID, id string, patch *PV) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.entries[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	if !f.envelope(e).IsOwnedBy(userID) {
		return nil, services.ErrForbidden
	}
	f.apply(patch, e)
	f.envelope(e).Version++
	return e, nil
}

func (f *fakeEntries[T, PV]) Delete(ctx context.Context, userID, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	e, ok := f.entries[id]
	if !ok {
		return 0, services.ErrNotFound
	}
	if !f.envelope(e).IsOwnedBy(userID) {
		return 0, services.ErrForbidden
	}
	delete(f.entries, id)
	return 1, nil
}

func (f *fakeEntries[T, PV]) Vote(ctx context.Context, userID, id string, vote int) (models.Votes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return nil, services.ErrNotFound
	}
	votes := models.Votes{}
	for _, v := range f.votes[id] {
		if v.UserID != userID {
			votes = append(votes, v)
		}
	}
	votes = append(votes, models.Vote{UserID: userID, Vote: vote})
	f.votes[id] = votes
	return votes, nil
}

func (f *fakeEntries[T, PV]) RetractVote(ctx context.Context, userID, id string) (models.Votes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[id]; !ok {
		return nil, services.ErrNotFound
	}
	votes := models.Votes{}
	for _, v := range f.votes[id] {
		if v.UserID != userID {
			votes = append(votes, v)
		}
	}
	f.votes[id] = votes
	return votes, nil
}

func (f *fakeEntries[T, PV]) Version(ctx context.Context, id string, version int) (*T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.versions[fmt.Sprintf("%s@%d", id, version)]
	if !ok {
		return nil, services.ErrNotFound
	}
	return e, nil
}

// tokenVerifier maps bearer tokens to user ids.
type tokenVerifier map[string]string

func (v tokenVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	userID, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{UserID: userID, Login: "login-" + userID}, nil
}

// fakeAudit records writes and serves them back newest first.
type fakeAudit struct {
	mu      sync.Mutex
	logs    []*models.AuditLog
	filters repositories.AuditFilters
	limit   int
	offset  int
	err     error
	written chan *models.AuditLog
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{written: make(chan *models.AuditLog, 10)}
}

func (a *fakeAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	a.logs = append([]*models.AuditLog{log}, a.logs...)
	a.mu.Unlock()
	a.written <- log
	return nil
}

func (a *fakeAudit) ListAuditLogs(_ context.Context, filters repositories.AuditFilters, limit, offset int) ([]*models.AuditLog, int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filters, a.limit, a.offset = filters, limit, offset
	if a.err != nil {
		return nil, 0, a.err
	}
	return a.logs, len(a.logs), nil
}

// pinger is a database stand-in whose health is switchable.
type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

var errBoom = errors.New("boom")
