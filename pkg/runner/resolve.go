package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/reelforge/reelforge/pkg/canonical"
	"github.com/reelforge/reelforge/pkg/eventlog"
	"github.com/reelforge/reelforge/pkg/handler"
	"github.com/reelforge/reelforge/pkg/planner"
	"github.com/reelforge/reelforge/pkg/storage"
)

// resolveJobInputs materialises every InputBinding and FanInDescriptor of
// job into the handler contract's shape: plain inputs
// look the canonical id up in the loaded input values, artefact inputs read
// the latest succeeded event for that id (produced earlier in this run or a
// prior one), and fan-in inputs group their members by the declared
// groupBy/orderBy.
func (r *Runner) resolveJobInputs(ctx context.Context, movieID string, job planner.JobDescriptor, inputs map[string]json.RawMessage) (map[string]handler.ResolvedInput, map[string]handler.FanInValue, error) {
	// Each binding is exposed under both its alias and its canonical id,
	// so a handler can address an input either way.
	resolved := make(map[string]handler.ResolvedInput, 2*len(job.Context.InputBindings))
	for _, b := range job.Context.InputBindings {
		val, err := r.resolveCanonicalID(ctx, movieID, b.CanonicalID, inputs)
		if err != nil {
			return nil, nil, fmt.Errorf("runner: job %s: resolving input %q: %w", job.ProducerID, b.Alias, err)
		}
		resolved[b.Alias] = val
		resolved[b.CanonicalID] = val
	}

	fanIns := make(map[string]handler.FanInValue, len(job.Context.FanIn))
	for _, fi := range job.Context.FanIn {
		groups, err := r.resolveFanIn(ctx, movieID, fi, inputs)
		if err != nil {
			return nil, nil, fmt.Errorf("runner: job %s: resolving fan-in %q: %w", job.ProducerID, fi.Alias, err)
		}
		fanIns[fi.Alias] = handler.FanInValue{GroupBy: fi.GroupBy, OrderBy: fi.OrderBy, Groups: groups}
	}

	return resolved, fanIns, nil
}

func (r *Runner) resolveCanonicalID(ctx context.Context, movieID, id string, inputs map[string]json.RawMessage) (handler.ResolvedInput, error) {
	parsed, err := canonical.ParseID(id)
	if err != nil {
		return handler.ResolvedInput{}, err
	}

	switch parsed.Kind {
	case canonical.KindInput:
		raw, ok := inputs[id]
		if !ok {
			return handler.ResolvedInput{}, fmt.Errorf("no value loaded for %s", id)
		}
		return handler.ResolvedInput{Value: raw}, nil

	case canonical.KindArtifact:
		ev, ok, err := r.Events.LatestArtefact(ctx, movieID, id)
		if err != nil {
			return handler.ResolvedInput{}, err
		}
		if !ok || ev.Status != eventlog.StatusSucceeded {
			return handler.ResolvedInput{}, fmt.Errorf("upstream artefact %s has no succeeded output", id)
		}
		return r.loadEventOutput(ctx, movieID, ev)

	default:
		return handler.ResolvedInput{}, fmt.Errorf("unexpected canonical kind %q for input binding", parsed.Kind)
	}
}

func (r *Runner) loadEventOutput(ctx context.Context, movieID string, ev eventlog.ArtefactEvent) (handler.ResolvedInput, error) {
	if ev.Output.Kind == eventlog.OutputBlob && ev.Output.Blob != nil {
		path := storage.BlobPath(movieID, ev.Output.Blob.Hash, ev.Output.Blob.MimeType)
		bytes, err := r.Storage.ReadToBytes(ctx, path)
		if err != nil {
			return handler.ResolvedInput{}, err
		}
		return handler.ResolvedInput{Bytes: bytes, MimeType: ev.Output.Blob.MimeType}, nil
	}
	return handler.ResolvedInput{Value: ev.Output.Inline}, nil
}

func (r *Runner) resolveFanIn(ctx context.Context, movieID string, fi planner.FanInDescriptor, inputs map[string]json.RawMessage) ([]handler.FanInGroup, error) {
	var order []string
	byGroup := make(map[string][]handler.ResolvedInput)

	for _, m := range fi.Members {
		val, err := r.resolveCanonicalID(ctx, movieID, m.CanonicalID, inputs)
		if err != nil {
			return nil, err
		}
		key := fmt.Sprintf("%d", m.Group)
		if _, ok := byGroup[key]; !ok {
			order = append(order, key)
		}
		byGroup[key] = append(byGroup[key], val)
	}

	groups := make([]handler.FanInGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, handler.FanInGroup{GroupKey: key, Members: byGroup[key]})
	}
	return groups, nil
}
