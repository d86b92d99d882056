// archive.go writes every published version of an entry to the configured storage backend as
// a JSON snapshot with a SHA256 digest, and reads snapshots back for the versions endpoint.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/plugin-registry/plugin-registry/internal/safego"
	"github.com/plugin-registry/plugin-registry/internal/storage"
	"github.com/plugin-registry/plugin-registry/internal/telemetry"
	"github.com/plugin-registry/plugin-registry/pkg/checksum"
)

// ErrChecksumMismatch is returned when a stored snapshot does not match its recorded digest.
var ErrChecksumMismatch = errors.New("archived snapshot checksum mismatch")

const defaultArchiveTimeout = 30 * time.Second

// snapshot is the stored object. Checksum is the SHA256 of the raw Entry bytes.
type snapshot struct {
	Kind       string          `json:"kind"`
	ID         string          `json:"id"`
	Version    int             `json:"version"`
	ArchivedAt time.Time       `json:"archivedAt"`
	Checksum   string          `json:"checksum"`
	Entry      json.RawMessage `json:"entry"`
}

// Archiver stores version snapshots in a storage backend.
type Archiver struct {
	backend     storage.Storage
	backendName string
	timeout     time.Duration
}

// NewArchiver creates an archiver writing to backend. backendName labels metrics.
func NewArchiver(backend storage.Storage, backendName string) *Archiver {
	return &Archiver{
		backend:     backend,
		backendName: backendName,
		timeout:     defaultArchiveTimeout,
	}
}

// ArchivePath returns the object path of an entry version, e.g. plugins/<id>/3.json.
func ArchivePath(kind, id string, version int) string {
	return fmt.Sprintf("%ss/%s/%d.json", kind, id, version)
}

// encode renders entry as a snapshot document.
func (a *Archiver) encode(kind, id string, version int, entry interface{}) ([]byte, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s snapshot: %w", kind, err)
	}
	return json.Marshal(snapshot{
		Kind:       kind,
		ID:         id,
		Version:    version,
		ArchivedAt: time.Now().UTC(),
		Checksum:   checksum.SumBytes(raw),
		Entry:      raw,
	})
}

// Store writes the snapshot of entry synchronously.
func (a *Archiver) Store(ctx context.Context, kind, id string, version int, entry interface{}) error {
	doc, err := a.encode(kind, id, version, entry)
	if err != nil {
		return err
	}
	return a.upload(ctx, ArchivePath(kind, id, version), doc)
}

func (a *Archiver) upload(ctx context.Context, path string, doc []byte) error {
	if _, err := a.backend.Upload(ctx, path, bytes.NewReader(doc), int64(len(doc))); err != nil {
		telemetry.ArchiveWritesTotal.WithLabelValues(a.backendName, "error").Inc()
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	telemetry.ArchiveWritesTotal.WithLabelValues(a.backendName, "success").Inc()
	return nil
}

// StoreAsync encodes entry immediately and uploads it in the background. Failures are logged.
func (a *Archiver) StoreAsync(kind, id string, version int, entry interface{}) {
	doc, err := a.encode(kind, id, version, entry)
	if err != nil {
		slog.Error("failed to encode version snapshot", "kind", kind, "id", id, "version", version, "error", err)
		return
	}

	path := ArchivePath(kind, id, version)
	safego.Go("archive-store", func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.upload(ctx, path, doc); err != nil {
			slog.Error("version archive write failed", "path", path, "error", err)
		}
	})
}

// Load reads the snapshot of an entry version into out, verifying its digest.
func (a *Archiver) Load(ctx context.Context, kind, id string, version int, out interface{}) error {
	path := ArchivePath(kind, id, version)
	rc, err := a.backend.Download(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read archive %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("failed to read archive %s: %w", path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode archive %s: %w", path, err)
	}
	if !checksum.VerifyBytes(snap.Entry, snap.Checksum) {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
	}
	if err := json.Unmarshal(snap.Entry, out); err != nil {
		return fmt.Errorf("failed to decode archived entry %s: %w", path, err)
	}
	return nil
}

// Purge deletes the snapshots of versions 1..latest.
func (a *Archiver) Purge(ctx context.Context, kind, id string, latest int) error {
	var errs []error
	for v := 1; v <= latest; v++ {
		if err := a.backend.Delete(ctx, ArchivePath(kind, id, v)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PurgeAsync runs Purge in the background. Failures are logged.
func (a *Archiver) PurgeAsync(kind, id string, latest int) {
	safego.Go("archive-purge", func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		if err := a.Purge(ctx, kind, id, latest); err != nil {
			slog.Error("version archive purge failed", "kind", kind, "id", id, "error", err)
		}
	})
}
