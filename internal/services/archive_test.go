package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugin-registry/plugin-registry/internal/config"
	"github.com/plugin-registry/plugin-registry/internal/db/models"
	"github.com/plugin-registry/plugin-registry/internal/storage/local"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"
)

func newTestArchiver(t *testing.T) (*Archiver, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := local.New(&config.LocalStorageConfig{BasePath: dir})
	require.NoError(t, err)
	return NewArchiver(backend, "local"), dir
}

func TestArchivePath(t *testing.T) {
	assert.Equal(t, "plugins/abc/3.json", ArchivePath("plugin", "abc", 3))
	assert.Equal(t, "overlays/xyz/1.json", ArchivePath("overlay", "xyz", 1))
}

func TestArchiver_StoreAndLoad(t *testing.T) {
	a, _ := newTestArchiver(t)
	ctx := context.Background()

	before := telemetry.CounterValue(telemetry.ArchiveWritesTotal, map[string]string{"backend": "local", "result": "success"})

	p := samplePlugin()
	p.ID = uuid.New().String()
	p.Version = 2
	require.NoError(t, a.Store(ctx, "plugin", p.ID, 2, p))

	var got models.Plugin
	require.NoError(t, a.Load(ctx, "plugin", p.ID, 2, &got))
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Plugin, got.Plugin)
	assert.Equal(t, 2, got.Version)

	after := telemetry.CounterValue(telemetry.ArchiveWritesTotal, map[string]string{"backend": "local", "result": "success"})
	assert.Equal(t, before+1, after)
}

func TestArchiver_LoadMissing(t *testing.T) {
	a, _ := newTestArchiver(t)
	var got models.Plugin
	err := a.Load(context.Background(), "plugin", uuid.New().String(), 1, &got)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchiver_LoadDetectsTampering(t *testing.T) {
	a, dir := newTestArchiver(t)
	ctx := context.Background()
	id := uuid.New().String()
	require.NoError(t, a.Store(ctx, "plugin", id, 1, samplePlugin()))

	path := filepath.Join(dir, "plugins", id, "1.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), `"code"`, `"evil"`, 1)
	require.NotEqual(t, string(data), tampered)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))

	var got models.Plugin
	err = a.Load(ctx, "plugin", id, 1, &got)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestArchiver_Purge(t *testing.T) {
	a, dir := newTestArchiver(t)
	ctx := context.Background()
	id := uuid.New().String()
	for v := 1; v <= 3; v++ {
		require.NoError(t, a.Store(ctx, "overlay", id, v, map[string]int{"version": v}))
	}

	require.NoError(t, a.Purge(ctx, "overlay", id, 3))
	_, err := os.Stat(filepath.Join(dir, "overlays", id))
	assert.True(t, os.IsNotExist(err), "purge should remove every version")
}

func TestRegistry_ArchivesEachVersion(t *testing.T) {
	a, _ := newTestArchiver(t)
	store := newMemStore(pluginEnvelope)
	svc := newRegistry[models.Plugin, *models.PluginPatch]("plugin", store, pluginEnvelope, a, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "U1", samplePlugin())
	require.NoError(t, err)
	_, err = svc.Update(ctx, "U1", created.ID, &models.PluginPatch{Plugin: strPtr("code v2")})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v2, err := svc.Version(ctx, created.ID, 2)
		return err == nil && v2.Plugin == "code v2" && v2.Version == 2
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		v1, err := svc.Version(ctx, created.ID, 1)
		return err == nil && v1.Plugin == "code"
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.Version(ctx, created.ID, 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_VersionWithoutArchive(t *testing.T) {
	svc, _ := newTestPluginService(t)
	_, err := svc.Version(context.Background(), uuid.New().String(), 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_VersionOfDeletedEntry(t *testing.T) {
	a, _ := newTestArchiver(t)
	store := newMemStore(pluginEnvelope)
	svc := newRegistry[models.Plugin, *models.PluginPatch]("plugin", store, pluginEnvelope, a, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "U1", samplePlugin())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_, err := svc.Version(ctx, created.ID, 1)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.Delete(ctx, "U1", created.ID)
	require.NoError(t, err)

	// A snapshot that lands after the purge must still be hidden.
	require.NoError(t, a.Store(ctx, "plugin", created.ID, 1, created))

	_, err = svc.Version(ctx, created.ID, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_VersionAheadOfEntry(t *testing.T) {
	a, _ := newTestArchiver(t)
	store := newMemStore(pluginEnvelope)
	svc := newRegistry[models.Plugin, *models.PluginPatch]("plugin", store, pluginEnvelope, a, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "U1", samplePlugin())
	require.NoError(t, err)
	require.NoError(t, a.Store(ctx, "plugin", created.ID, 2, created))

	_, err = svc.Version(ctx, created.ID, 2)
	assert.ErrorIs(t, err, ErrNotFound)
}
