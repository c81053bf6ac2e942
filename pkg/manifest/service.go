package manifest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reelforge/reelforge/pkg/eventlog"
	"github.com/reelforge/reelforge/pkg/pipelineerrors"
	"github.com/reelforge/reelforge/pkg/storage"
)

// Service builds and commits Manifest snapshots.
type Service interface {
	LoadLatest(ctx context.Context, movieID string) (Manifest, error)
	BuildFromEvents(ctx context.Context, movieID, revision string, base Manifest, eventsForRevision []eventlog.ArtefactEvent, inputs map[string]json.RawMessage) (Manifest, error)
	Commit(ctx context.Context, movieID string, m Manifest) error
}

// StorageBacked is a Service persisting manifests through a storage.Context:
// `manifests/<revision>.json` full snapshots plus a `manifests/latest`
// pointer flipped only once the snapshot is durable.
type StorageBacked struct {
	store storage.Context
}

var _ Service = (*StorageBacked)(nil)

// NewStorageBacked returns a Service writing through store.
func NewStorageBacked(store storage.Context) *StorageBacked {
	return &StorageBacked{store: store}
}

func (s *StorageBacked) LoadLatest(ctx context.Context, movieID string) (Manifest, error) {
	pointerPath := storage.LatestManifestPointerPath(movieID)
	exists, err := s.store.Exists(ctx, pointerPath)
	if err != nil {
		return Manifest{}, pipelineerrors.NewStorageError(pointerPath, "checking latest pointer", err)
	}
	if !exists {
		return Manifest{}, nil
	}

	revision, err := s.store.ReadToString(ctx, pointerPath)
	if err != nil {
		return Manifest{}, pipelineerrors.NewStorageError(pointerPath, "reading latest pointer", err)
	}

	manifestPath := storage.ManifestPath(movieID, revision)
	raw, err := s.store.ReadToBytes(ctx, manifestPath)
	if err != nil {
		return Manifest{}, pipelineerrors.NewStorageError(manifestPath, "reading manifest snapshot", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, pipelineerrors.NewStorageError(manifestPath, "decoding manifest snapshot", err)
	}
	return m, nil
}

// BuildFromEvents carries forward base's artefacts and overlays every
// succeeded event from eventsForRevision. A failed or skipped event never
// removes a prior succeeded entry: the manifest reflects best-known-good
// state so progress survives partial failure.
func (s *StorageBacked) BuildFromEvents(_ context.Context, _ string, revision string, base Manifest, eventsForRevision []eventlog.ArtefactEvent, inputs map[string]json.RawMessage) (Manifest, error) {
	m := Manifest{
		Revision:     revision,
		BaseRevision: base.Revision,
		CreatedAt:    time.Now().UTC(),
		Inputs:       inputs,
		Artifacts:    make(map[string]ArtifactEntry, len(base.Artifacts)),
	}
	for k, v := range base.Artifacts {
		m.Artifacts[k] = v
	}

	for _, ev := range eventsForRevision {
		if ev.Status != eventlog.StatusSucceeded {
			continue
		}
		entry := ArtifactEntry{
			ProducedBy: ev.ProducedBy,
			InputsHash: ev.InputsHash,
			Revision:   ev.Revision,
			Attempt:    ev.Attempt,
		}
		if ev.Output.Kind == eventlog.OutputBlob && ev.Output.Blob != nil {
			entry.BlobHash = ev.Output.Blob.Hash
			entry.Size = ev.Output.Blob.Size
			entry.MimeType = ev.Output.Blob.MimeType
		} else {
			entry.Inline = ev.Output.Inline
		}
		m.Artifacts[ev.ArtifactID] = entry
	}

	return m, nil
}

// Commit writes the full snapshot first, then flips the latest pointer:
// the pointer only ever names a revision whose snapshot is already durable.
func (s *StorageBacked) Commit(ctx context.Context, movieID string, m Manifest) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	manifestPath := storage.ManifestPath(movieID, m.Revision)
	if err := s.store.Write(ctx, manifestPath, raw, storage.WriteOptions{MimeType: "application/json"}); err != nil {
		return pipelineerrors.NewStorageError(manifestPath, "committing manifest snapshot", err)
	}

	pointerPath := storage.LatestManifestPointerPath(movieID)
	if err := s.store.Write(ctx, pointerPath, []byte(m.Revision), storage.WriteOptions{MimeType: "text/plain"}); err != nil {
		return pipelineerrors.NewStorageError(pointerPath, "flipping latest pointer", err)
	}
	return nil
}
