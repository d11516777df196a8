// Package model defines the core data structures for the kestrel application.
package model

import (
	"path/filepath"
	"strings"
	"time"
)

// FileMetadata describes a single scanned file after analysis. The scanner
// fills the descriptor fields; the analyzer may attach EXIF, audio, and
// AI classification data.
type FileMetadata struct {
	CreatedAt      time.Time       `json:"created_at"`
	ModifiedAt     time.Time       `json:"modified_at"`
	AccessedAt     time.Time       `json:"accessed_at"`
	EXIF           *EXIFMetadata   `json:"exif,omitempty"`
	Audio          *AudioMetadata  `json:"audio,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Path           string          `json:"path"`
	Name           string          `json:"name"`
	Extension      string          `json:"extension"`
	ContentHash    string          `json:"content_hash,omitempty"`
	Category       string          `json:"category,omitempty"`
	Size           int64           `json:"size"`
}

// EXIFMetadata holds capture metadata extracted from image files.
type EXIFMetadata struct {
	CapturedAt time.Time `json:"captured_at"`
	Camera     string    `json:"camera,omitempty"`
}

// AudioMetadata holds tag metadata extracted from audio files.
type AudioMetadata struct {
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Classification is an analyzer-provided content category with confidence.
type Classification struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Dir returns the directory containing the file.
func (f FileMetadata) Dir() string {
	return filepath.Dir(f.Path)
}

// HasEXIF reports whether capture metadata is present.
func (f FileMetadata) HasEXIF() bool {
	return f.EXIF != nil && !f.EXIF.CapturedAt.IsZero()
}

// NormalizedExtension returns the extension lowercased without a leading dot.
func (f FileMetadata) NormalizedExtension() string {
	return strings.ToLower(strings.TrimPrefix(f.Extension, "."))
}
