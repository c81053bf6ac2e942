// Package storage defines the backend-agnostic key/value and
// content-addressed blob interface the event log, manifest service, and
// runner depend on.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
)

// WriteOptions carries the optional metadata a Write call may attach.
type WriteOptions struct {
	MimeType string
}

// Context is the minimal interface the runner and event log depend on.
// Implementations must make Write atomic per path (a reader never observes
// a torn write) and must never traverse outside their configured root.
type Context interface {
	Write(ctx context.Context, path string, data []byte, opts WriteOptions) error
	ReadToString(ctx context.Context, path string) (string, error)
	ReadToBytes(ctx context.Context, path string) ([]byte, error)
	CreateDirectory(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ExtensionForMIME maps a MIME type to its blob file extension;
// unrecognised types fall back to "bin".
func ExtensionForMIME(mime string) string {
	switch mime {
	case "text/plain":
		return "txt"
	case "application/json":
		return "json"
	case "audio/mpeg":
		return "mp3"
	case "audio/wav", "audio/x-wav":
		return "wav"
	case "video/mp4":
		return "mp4"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	default:
		return "bin"
	}
}

// BlobPath composes the content-addressed key for a blob: a two-hex-char
// shard prefix of the hash keeps any one directory from growing unbounded.
func BlobPath(movieID, hash, mimeType string) string {
	ext := ExtensionForMIME(mimeType)
	prefix := hash
	if len(prefix) > 2 {
		prefix = hash[:2]
	}
	return fmt.Sprintf("%s/blobs/%s/%s.%s", movieID, prefix, hash, ext)
}

// EventLogPath is the append-only ArtefactEvent stream path for a movie.
func EventLogPath(movieID string) string {
	return fmt.Sprintf("%s/events/artefacts.ndjson", movieID)
}

// RunLogPath is the append-only RunEvent stream path for a movie.
func RunLogPath(movieID string) string {
	return fmt.Sprintf("%s/events/runs.ndjson", movieID)
}

// ManifestPath is the full-snapshot path for one revision.
func ManifestPath(movieID, revision string) string {
	return fmt.Sprintf("%s/manifests/%s.json", movieID, revision)
}

// LatestManifestPointerPath is the pointer file naming the current
// revision.
func LatestManifestPointerPath(movieID string) string {
	return fmt.Sprintf("%s/manifests/latest", movieID)
}

// SafeJoin joins root and rel, clamping any ".." segments at root so the
// result can never escape it. Implementations of Context backed by a real
// filesystem should route every path through this before touching disk.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("storage: empty path")
	}
	cleaned := path.Clean("/" + rel)
	return path.Join(root, cleaned), nil
}
