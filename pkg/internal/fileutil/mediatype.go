// Package fileutil sniffs the media type of artefact payloads whose
// handler did not declare one, so blob paths get a real extension instead
// of silently defaulting to application/octet-stream.
package fileutil

import (
	"net/http"
	"strings"
)

// MediaType is a sniffed payload classification.
type MediaType struct {
	// MimeType is the detected MIME type, e.g. "image/png", with any
	// parameters (charset) stripped.
	MimeType string

	// Category is the type's major part, e.g. "image".
	Category string
}

// DetectMediaType sniffs data's MIME type from its leading bytes.
func DetectMediaType(data []byte) MediaType {
	mimeType := http.DetectContentType(data)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return MediaType{MimeType: mimeType, Category: categoryOf(mimeType)}
}

func categoryOf(mimeType string) string {
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[:i]
	}
	return "application"
}

// IsText reports whether the detected type is textual.
func (m MediaType) IsText() bool { return m.Category == "text" }

// IsImage reports whether the detected type is an image.
func (m MediaType) IsImage() bool { return m.Category == "image" }
