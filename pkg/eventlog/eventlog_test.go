package eventlog_test

import (
	"context"
	"testing"
	"time"

	"github.com/reelforge/reelforge/pkg/eventlog"
	"github.com/reelforge/reelforge/pkg/storage/memstore"
)

func TestAppendAndLatestArtefact(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := eventlog.NewStorageBacked(memstore.New())

	ev := eventlog.ArtefactEvent{
		ArtifactID: "Artifact:Narration",
		Revision:   "rev-1",
		InputsHash: "hash-1",
		Status:     eventlog.StatusSucceeded,
		ProducedBy: "Producer:ScriptGeneration",
		Timestamp:  time.Unix(0, 0),
		Output:     eventlog.Output{Kind: eventlog.OutputInline, Inline: []byte(`"Once upon a time"`)},
	}
	if err := log.AppendArtefact(ctx, "movie-1", ev); err != nil {
		t.Fatalf("AppendArtefact: %v", err)
	}

	got, ok, err := log.LatestArtefact(ctx, "movie-1", "Artifact:Narration")
	if err != nil || !ok {
		t.Fatalf("LatestArtefact: ok=%v err=%v", ok, err)
	}
	if got.InputsHash != "hash-1" {
		t.Fatalf("got %+v", got)
	}
}

func TestLatestArtefactReflectsMostRecentAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := eventlog.NewStorageBacked(memstore.New())

	base := eventlog.ArtefactEvent{ArtifactID: "A", Revision: "rev-1", Status: eventlog.StatusFailed}
	retry := eventlog.ArtefactEvent{ArtifactID: "A", Revision: "rev-1", Status: eventlog.StatusSucceeded, Attempt: 2}

	if err := log.AppendArtefact(ctx, "movie-1", base); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendArtefact(ctx, "movie-1", retry); err != nil {
		t.Fatal(err)
	}

	got, ok, err := log.LatestArtefact(ctx, "movie-1", "A")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Status != eventlog.StatusSucceeded || got.Attempt != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestListArtefactsFiltersByRevision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	log := eventlog.NewStorageBacked(memstore.New())

	if err := log.AppendArtefact(ctx, "movie-1", eventlog.ArtefactEvent{ArtifactID: "A", Revision: "rev-1"}); err != nil {
		t.Fatal(err)
	}
	if err := log.AppendArtefact(ctx, "movie-1", eventlog.ArtefactEvent{ArtifactID: "B", Revision: "rev-2"}); err != nil {
		t.Fatal(err)
	}

	events, err := log.ListArtefacts(ctx, "movie-1", "rev-1")
	if err != nil {
		t.Fatalf("ListArtefacts: %v", err)
	}
	if len(events) != 1 || events[0].ArtifactID != "A" {
		t.Fatalf("got %+v", events)
	}
}

func TestAppendAndListRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()
	log := eventlog.NewStorageBacked(store)

	first := eventlog.RunEvent{Revision: "rev-1", Status: "succeeded", JobsTotal: 2, JobsSucceeded: 2}
	second := eventlog.RunEvent{Revision: "rev-2", Status: "failed", JobsTotal: 2, JobsSucceeded: 1, JobsFailed: 1}

	if err := log.AppendRun(ctx, "movie-1", first); err != nil {
		t.Fatalf("AppendRun: %v", err)
	}
	if err := log.AppendRun(ctx, "movie-1", second); err != nil {
		t.Fatal(err)
	}

	runs, err := eventlog.NewStorageBacked(store).ListRuns(ctx, "movie-1")
	if err != nil {
		t.Fatalf("ListRuns after reload: %v", err)
	}
	if len(runs) != 2 || runs[0].Revision != "rev-1" || runs[1].Status != "failed" {
		t.Fatalf("got %+v", runs)
	}
}

func TestEventLogSurvivesReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memstore.New()

	first := eventlog.NewStorageBacked(store)
	if err := first.AppendArtefact(ctx, "movie-1", eventlog.ArtefactEvent{ArtifactID: "A", Revision: "rev-1", Status: eventlog.StatusSucceeded}); err != nil {
		t.Fatal(err)
	}

	second := eventlog.NewStorageBacked(store)
	got, ok, err := second.LatestArtefact(ctx, "movie-1", "A")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if got.Status != eventlog.StatusSucceeded {
		t.Fatalf("got %+v", got)
	}
}
