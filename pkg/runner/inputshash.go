package runner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/reelforge/reelforge/pkg/blueprint"
	"github.com/reelforge/reelforge/pkg/handler"
	"github.com/reelforge/reelforge/pkg/planner"
	"github.com/reelforge/reelforge/pkg/storage"
)

// computeInputsHash derives the stable cache key for one job execution:
// the job's canonical producer identity, its resolved inputs (blob inputs
// hashed rather than embedded, to keep the digest independent of payload
// size), and the main variant's provider/model/config. It is computed
// once per job from job.Variant, the declared default; fallback attempts
// reuse the same hash, since they are retries of the same job identity
// rather than distinct cache entries.
func computeInputsHash(job planner.JobDescriptor, resolved map[string]handler.ResolvedInput, fanIns map[string]handler.FanInValue, variant blueprint.ProducerVariant) (string, error) {
	type hashInputEntry struct {
		Alias string `json:"alias"`
		Value string `json:"value"`
	}
	type hashFanInMember struct {
		GroupKey string   `json:"groupKey"`
		Values   []string `json:"values"`
	}
	type hashFanInEntry struct {
		Alias   string            `json:"alias"`
		GroupBy string            `json:"groupBy"`
		OrderBy string            `json:"orderBy"`
		Groups  []hashFanInMember `json:"groups"`
	}
	type hashDoc struct {
		ProducerID    string           `json:"producerId"`
		Provider      string           `json:"provider"`
		ProviderModel string           `json:"providerModel"`
		Config        map[string]any   `json:"config,omitempty"`
		Inputs        []hashInputEntry `json:"inputs"`
		FanIn         []hashFanInEntry `json:"fanIn"`
	}

	aliases := make([]string, 0, len(resolved))
	for alias := range resolved {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)

	inputs := make([]hashInputEntry, 0, len(aliases))
	for _, alias := range aliases {
		digest, err := digestResolvedInput(resolved[alias])
		if err != nil {
			return "", fmt.Errorf("runner: hashing input %q: %w", alias, err)
		}
		inputs = append(inputs, hashInputEntry{Alias: alias, Value: digest})
	}

	fanInAliases := make([]string, 0, len(fanIns))
	for alias := range fanIns {
		fanInAliases = append(fanInAliases, alias)
	}
	sort.Strings(fanInAliases)

	fanIn := make([]hashFanInEntry, 0, len(fanInAliases))
	for _, alias := range fanInAliases {
		fv := fanIns[alias]
		groups := make([]hashFanInMember, 0, len(fv.Groups))
		for _, g := range fv.Groups {
			values := make([]string, 0, len(g.Members))
			for _, m := range g.Members {
				digest, err := digestResolvedInput(m)
				if err != nil {
					return "", fmt.Errorf("runner: hashing fan-in %q group %q: %w", alias, g.GroupKey, err)
				}
				values = append(values, digest)
			}
			groups = append(groups, hashFanInMember{GroupKey: g.GroupKey, Values: values})
		}
		fanIn = append(fanIn, hashFanInEntry{Alias: alias, GroupBy: fv.GroupBy, OrderBy: fv.OrderBy, Groups: groups})
	}

	doc := hashDoc{
		ProducerID:    job.ProducerID,
		Provider:      string(variant.Provider),
		ProviderModel: variant.ProviderModel,
		Config:        variant.Config,
		Inputs:        inputs,
		FanIn:         fanIn,
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("runner: marshalling inputs-hash document: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// digestResolvedInput reduces a ResolvedInput to a compact, stable string:
// blob inputs contribute their content hash rather than raw bytes.
func digestResolvedInput(in handler.ResolvedInput) (string, error) {
	if in.Bytes != nil {
		return "blob:" + storage.HashBytes(in.Bytes), nil
	}
	if len(in.Value) == 0 {
		return "null", nil
	}
	var normalised any
	if err := json.Unmarshal(in.Value, &normalised); err != nil {
		return "", err
	}
	raw, err := json.Marshal(normalised)
	if err != nil {
		return "", err
	}
	return "value:" + string(raw), nil
}
