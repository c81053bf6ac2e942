// Package manifest builds and persists revision-scoped snapshots of which
// canonical ids resolved to which stored outputs.
package manifest

import (
	"encoding/json"
	"time"
)

// ArtifactEntry is one artefact's record in a Manifest. Exactly one of
// BlobHash or Inline is populated, matching the ArtefactEvent output tag
// it was built from.
type ArtifactEntry struct {
	BlobHash   string          `json:"blobHash,omitempty"`
	Size       int64           `json:"size,omitempty"`
	MimeType   string          `json:"mimeType,omitempty"`
	Inline     json.RawMessage `json:"inline,omitempty"`
	ProducedBy string          `json:"producedBy"`
	InputsHash string          `json:"inputsHash"`
	Revision   string          `json:"revision"`
	// Attempt is the fallback-chain attempt number that produced this
	// entry.
	Attempt int `json:"attempt"`
}

// Manifest is a revision-scoped, immutable snapshot.
type Manifest struct {
	Revision     string                     `json:"revision"`
	BaseRevision string                     `json:"baseRevision,omitempty"`
	CreatedAt    time.Time                  `json:"createdAt"`
	Inputs       map[string]json.RawMessage `json:"inputs"`
	Artifacts    map[string]ArtifactEntry   `json:"artifacts"`
}

// IsZero reports whether m is the empty "no manifest exists yet" value
// loadLatest returns when a movie has never been run.
func (m Manifest) IsZero() bool {
	return m.Revision == "" && len(m.Artifacts) == 0
}

// Clone deep-copies m so callers may mutate the result without aliasing the
// stored value.
func (m Manifest) Clone() Manifest {
	out := m
	out.Inputs = make(map[string]json.RawMessage, len(m.Inputs))
	for k, v := range m.Inputs {
		out.Inputs[k] = append(json.RawMessage(nil), v...)
	}
	out.Artifacts = make(map[string]ArtifactEntry, len(m.Artifacts))
	for k, v := range m.Artifacts {
		out.Artifacts[k] = v
	}
	return out
}
