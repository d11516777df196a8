// Package scan walks directories and produces file descriptors for the
// organizer.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelhq/kestrel/internal/executor"
	"github.com/kestrelhq/kestrel/internal/model"
)

// Scanner enumerates candidate files under a root directory. Hidden files,
// hidden directories, and kestrel's own trash directory are skipped.
type Scanner struct {
	log       *slog.Logger
	recursive bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRecursive controls whether subdirectories are descended into. The
// default scans only the root directory itself.
func WithRecursive(recursive bool) Option {
	return func(s *Scanner) {
		s.recursive = recursive
	}
}

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scanner) {
		s.log = log
	}
}

// NewScanner creates a scanner.
func NewScanner(opts ...Option) *Scanner {
	s := &Scanner{
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan walks root and returns a descriptor for each regular file found.
// Files that disappear or fail to stat mid-walk are logged and skipped
// rather than failing the whole scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]model.FileMetadata, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context cannot be nil")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scan root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root %s is not a directory", root)
	}

	var files []model.FileMetadata
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.log.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == root {
				return nil
			}
			if !s.recursive || skipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		fi, statErr := d.Info()
		if statErr != nil {
			s.log.Warn("skipping file that failed to stat", "path", path, "error", statErr)
			return nil
		}
		files = append(files, describe(path, fi))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	s.log.Debug("scan complete", "root", root, "files", len(files))
	return files, nil
}

// Describe stats a single path and returns its descriptor. It rejects
// directories and non-regular files.
func Describe(path string) (model.FileMetadata, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return model.FileMetadata{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return model.FileMetadata{}, fmt.Errorf("%s is not a regular file", path)
	}
	return describe(path, fi), nil
}

// skipDir reports whether a directory should not be descended into.
func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || name == executor.FallbackTrashName
}

// describe builds a descriptor from directory entry metadata alone; no file
// contents are read.
func describe(path string, fi os.FileInfo) model.FileMetadata {
	created, accessed := fileTimes(fi)
	ext := filepath.Ext(fi.Name())

	return model.FileMetadata{
		Path:       path,
		Name:       fi.Name(),
		Extension:  ext,
		Size:       fi.Size(),
		CreatedAt:  created,
		ModifiedAt: fi.ModTime(),
		AccessedAt: accessed,
		Category:   categorize(ext),
	}
}

var categories = map[string]string{
	"jpg": "images", "jpeg": "images", "png": "images", "gif": "images",
	"heic": "images", "webp": "images", "svg": "images", "tiff": "images",
	"mp3": "audio", "flac": "audio", "wav": "audio", "m4a": "audio",
	"ogg": "audio", "aac": "audio",
	"mp4": "video", "mov": "video", "mkv": "video", "avi": "video",
	"webm": "video",
	"pdf": "documents", "doc": "documents", "docx": "documents",
	"xls": "documents", "xlsx": "documents", "ppt": "documents",
	"pptx": "documents", "txt": "documents", "md": "documents",
	"odt": "documents", "csv": "documents",
	"zip": "archives", "tar": "archives", "gz": "archives",
	"bz2": "archives", "xz": "archives", "7z": "archives", "rar": "archives",
	"dmg": "installers", "pkg": "installers", "deb": "installers",
	"rpm": "installers", "msi": "installers", "exe": "installers",
	"appimage": "installers",
}

// categorize maps a file extension to a coarse category, or "" when the
// extension is unknown.
func categorize(ext string) string {
	return categories[strings.ToLower(strings.TrimPrefix(ext, "."))]
}
