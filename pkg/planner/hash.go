package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// ComputeHash derives a deterministic fingerprint over plan's layered job
// set plus its base manifest hash: marshal a sorted, typed struct (never a
// bare map) so key order can never vary the digest, then SHA-256 the
// canonical JSON.
func ComputeHash(plan ExecutionPlan) (string, error) {
	type hashJob struct {
		ProducerID    string   `json:"producerId"`
		Layer         int      `json:"layer"`
		Inputs        []string `json:"inputs"`
		Produces      []string `json:"produces"`
		Provider      string   `json:"provider"`
		ProviderModel string   `json:"providerModel"`
		RateKey       string   `json:"rateKey"`
	}
	type hashInput struct {
		BaseManifestHash string    `json:"baseManifestHash"`
		Jobs             []hashJob `json:"jobs"`
	}

	var jobs []hashJob
	for _, layer := range plan.Layers {
		for _, job := range layer.Jobs {
			inputs := append([]string(nil), job.Inputs...)
			sort.Strings(inputs)
			produces := append([]string(nil), job.Produces...)
			sort.Strings(produces)
			jobs = append(jobs, hashJob{
				ProducerID:    job.ProducerID,
				Layer:         layer.Index,
				Inputs:        inputs,
				Produces:      produces,
				Provider:      string(job.Provider),
				ProviderModel: job.ProviderModel,
				RateKey:       job.RateKey,
			})
		}
	}

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].Layer != jobs[j].Layer {
			return jobs[i].Layer < jobs[j].Layer
		}
		return jobs[i].ProducerID < jobs[j].ProducerID
	})

	b, err := json.Marshal(hashInput{BaseManifestHash: plan.BaseManifestHash, Jobs: jobs})
	if err != nil {
		return "", fmt.Errorf("planner: marshalling plan hash input: %w", err)
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
