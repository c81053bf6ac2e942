package eventlog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/reelforge/reelforge/pkg/pipelineerrors"
	"github.com/reelforge/reelforge/pkg/storage"
)

// Log is the append-only per-movie record of ArtefactEvents and RunEvents.
type Log interface {
	AppendArtefact(ctx context.Context, movieID string, event ArtefactEvent) error
	ListArtefacts(ctx context.Context, movieID string, sinceRevision string) ([]ArtefactEvent, error)
	LatestArtefact(ctx context.Context, movieID string, artifactID string) (ArtefactEvent, bool, error)
	AppendRun(ctx context.Context, movieID string, event RunEvent) error
	ListRuns(ctx context.Context, movieID string) ([]RunEvent, error)
}

type movieState struct {
	mu     sync.Mutex
	events []ArtefactEvent          // append order, the durability source of truth
	latest map[string]ArtefactEvent // artifactID -> most recent event; cache checks read only this
	runs   []RunEvent
}

// StorageBacked is a Log backed by a storage.Context, persisting events as
// newline-delimited JSON at storage.EventLogPath(movieID) and keeping an
// in-memory cache of the latest event per artefact id, populated from disk
// the first time a movie is touched and updated only by the append that
// wrote the event.
type StorageBacked struct {
	store storage.Context

	mu     sync.Mutex
	movies map[string]*movieState
}

var _ Log = (*StorageBacked)(nil)

// NewStorageBacked returns a Log writing through store.
func NewStorageBacked(store storage.Context) *StorageBacked {
	return &StorageBacked{store: store, movies: make(map[string]*movieState)}
}

func (l *StorageBacked) stateFor(ctx context.Context, movieID string) (*movieState, error) {
	l.mu.Lock()
	ms, ok := l.movies[movieID]
	if ok {
		l.mu.Unlock()
		return ms, nil
	}
	ms = &movieState{latest: make(map[string]ArtefactEvent)}
	// Publish pre-locked so concurrent first-touchers block on ms.mu until
	// the initial load from disk has completed.
	ms.mu.Lock()
	l.movies[movieID] = ms
	l.mu.Unlock()
	defer ms.mu.Unlock()

	if err := l.loadLocked(ctx, movieID, ms); err != nil {
		l.mu.Lock()
		delete(l.movies, movieID)
		l.mu.Unlock()
		return nil, err
	}
	return ms, nil
}

// loadLocked populates ms from disk. Caller holds ms.mu.
func (l *StorageBacked) loadLocked(ctx context.Context, movieID string, ms *movieState) error {
	path := storage.EventLogPath(movieID)
	exists, err := l.store.Exists(ctx, path)
	if err != nil {
		return pipelineerrors.NewStorageError(path, "checking event log existence", err)
	}
	if exists {
		raw, err := l.store.ReadToBytes(ctx, path)
		if err != nil {
			return pipelineerrors.NewStorageError(path, "loading event log", err)
		}
		for _, line := range bytes.Split(raw, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev ArtefactEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return pipelineerrors.NewStorageError(path, "decoding event log line", err)
			}
			ms.events = append(ms.events, ev)
			ms.latest[ev.ArtifactID] = ev
		}
	}

	runPath := storage.RunLogPath(movieID)
	exists, err = l.store.Exists(ctx, runPath)
	if err != nil {
		return pipelineerrors.NewStorageError(runPath, "checking run log existence", err)
	}
	if exists {
		raw, err := l.store.ReadToBytes(ctx, runPath)
		if err != nil {
			return pipelineerrors.NewStorageError(runPath, "loading run log", err)
		}
		for _, line := range bytes.Split(raw, []byte("\n")) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var ev RunEvent
			if err := json.Unmarshal(line, &ev); err != nil {
				return pipelineerrors.NewStorageError(runPath, "decoding run log line", err)
			}
			ms.runs = append(ms.runs, ev)
		}
	}
	return nil
}

func (l *StorageBacked) AppendArtefact(ctx context.Context, movieID string, event ArtefactEvent) error {
	ms, err := l.stateFor(ctx, movieID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventlog: marshalling event for %s: %w", event.ArtifactID, err)
	}

	path := storage.EventLogPath(movieID)
	existing, err := l.store.ReadToBytes(ctx, path)
	if err != nil {
		existing = nil // no prior log for this movie yet
	}
	updated := append(append([]byte(nil), existing...), append(line, '\n')...)
	if err := l.store.Write(ctx, path, updated, storage.WriteOptions{MimeType: "application/x-ndjson"}); err != nil {
		return pipelineerrors.NewStorageError(path, "appending artefact event", err)
	}

	ms.events = append(ms.events, event)
	ms.latest[event.ArtifactID] = event
	return nil
}

func (l *StorageBacked) AppendRun(ctx context.Context, movieID string, event RunEvent) error {
	ms, err := l.stateFor(ctx, movieID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("eventlog: marshalling run event for %s: %w", event.Revision, err)
	}

	path := storage.RunLogPath(movieID)
	existing, err := l.store.ReadToBytes(ctx, path)
	if err != nil {
		existing = nil // no prior run log for this movie yet
	}
	updated := append(append([]byte(nil), existing...), append(line, '\n')...)
	if err := l.store.Write(ctx, path, updated, storage.WriteOptions{MimeType: "application/x-ndjson"}); err != nil {
		return pipelineerrors.NewStorageError(path, "appending run event", err)
	}

	ms.runs = append(ms.runs, event)
	return nil
}

func (l *StorageBacked) ListRuns(ctx context.Context, movieID string) ([]RunEvent, error) {
	ms, err := l.stateFor(ctx, movieID)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return append([]RunEvent(nil), ms.runs...), nil
}

func (l *StorageBacked) ListArtefacts(ctx context.Context, movieID string, sinceRevision string) ([]ArtefactEvent, error) {
	ms, err := l.stateFor(ctx, movieID)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if sinceRevision == "" {
		return append([]ArtefactEvent(nil), ms.events...), nil
	}
	out := make([]ArtefactEvent, 0, len(ms.events))
	for _, ev := range ms.events {
		if ev.Revision == sinceRevision {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *StorageBacked) LatestArtefact(ctx context.Context, movieID string, artifactID string) (ArtefactEvent, bool, error) {
	ms, err := l.stateFor(ctx, movieID)
	if err != nil {
		return ArtefactEvent{}, false, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ev, ok := ms.latest[artifactID]
	return ev, ok, nil
}
