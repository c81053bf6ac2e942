package manifest_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/reelforge/reelforge/pkg/eventlog"
	"github.com/reelforge/reelforge/pkg/manifest"
	"github.com/reelforge/reelforge/pkg/storage/memstore"
)

func TestLoadLatestReturnsZeroWhenNoneExists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := manifest.NewStorageBacked(memstore.New())

	m, err := svc.LoadLatest(ctx, "movie-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if !m.IsZero() {
		t.Fatalf("expected zero manifest, got %+v", m)
	}
}

func TestBuildFromEventsCarriesForwardOnFailure(t *testing.T) {
	t.Parallel()
	svc := manifest.NewStorageBacked(memstore.New())

	base := manifest.Manifest{
		Revision: "rev-1",
		Artifacts: map[string]manifest.ArtifactEntry{
			"Artifact:Narration": {BlobHash: "abc", ProducedBy: "Producer:Script", Revision: "rev-1"},
		},
	}

	events := []eventlog.ArtefactEvent{
		{
			ArtifactID: "Artifact:Narration",
			Revision:   "rev-2",
			Status:     eventlog.StatusFailed,
			ProducedBy: "Producer:Script",
		},
	}

	got, err := svc.BuildFromEvents(context.Background(), "movie-1", "rev-2", base, events, nil)
	if err != nil {
		t.Fatalf("BuildFromEvents: %v", err)
	}
	entry, ok := got.Artifacts["Artifact:Narration"]
	if !ok {
		t.Fatalf("expected carried-forward entry, got %+v", got.Artifacts)
	}
	if entry.BlobHash != "abc" || entry.Revision != "rev-1" {
		t.Fatalf("expected base entry preserved on failure, got %+v", entry)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestBuildFromEventsOverlaysSucceededEvents(t *testing.T) {
	t.Parallel()
	svc := manifest.NewStorageBacked(memstore.New())

	events := []eventlog.ArtefactEvent{
		{
			ArtifactID: "Artifact:Narration",
			Revision:   "rev-1",
			InputsHash: "hash-1",
			Status:     eventlog.StatusSucceeded,
			ProducedBy: "Producer:Script",
			Attempt:    1,
			Output:     eventlog.Output{Kind: eventlog.OutputInline, Inline: json.RawMessage(`"hi"`)},
		},
	}

	got, err := svc.BuildFromEvents(context.Background(), "movie-1", "rev-1", manifest.Manifest{}, events, nil)
	if err != nil {
		t.Fatalf("BuildFromEvents: %v", err)
	}
	entry, ok := got.Artifacts["Artifact:Narration"]
	if !ok {
		t.Fatalf("expected new entry, got %+v", got.Artifacts)
	}
	if entry.InputsHash != "hash-1" || string(entry.Inline) != `"hi"` {
		t.Fatalf("got %+v", entry)
	}
}

func TestCommitThenLoadLatestRoundTrips(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc := manifest.NewStorageBacked(memstore.New())

	m := manifest.Manifest{
		Revision: "rev-1",
		Artifacts: map[string]manifest.ArtifactEntry{
			"Artifact:Narration": {BlobHash: "abc", ProducedBy: "Producer:Script", Revision: "rev-1"},
		},
	}

	if err := svc.Commit(ctx, "movie-1", m); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := svc.LoadLatest(ctx, "movie-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.Revision != "rev-1" {
		t.Fatalf("got %+v", got)
	}
	if got.Artifacts["Artifact:Narration"].BlobHash != "abc" {
		t.Fatalf("got %+v", got.Artifacts)
	}
}

func TestCommitWritesSnapshotBeforePointer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	svc := manifest.NewStorageBacked(store)

	first := manifest.Manifest{Revision: "rev-1"}
	second := manifest.Manifest{Revision: "rev-2", BaseRevision: "rev-1"}

	if err := svc.Commit(ctx, "movie-1", first); err != nil {
		t.Fatal(err)
	}
	if err := svc.Commit(ctx, "movie-1", second); err != nil {
		t.Fatal(err)
	}

	got, err := svc.LoadLatest(ctx, "movie-1")
	if err != nil {
		t.Fatalf("LoadLatest: %v", err)
	}
	if got.Revision != "rev-2" {
		t.Fatalf("expected latest pointer to resolve to rev-2, got %+v", got)
	}
}
