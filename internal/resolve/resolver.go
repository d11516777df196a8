// Package resolve expands destination templates using file metadata tokens.
package resolve

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
)

// Options carries the destination context for a run. It is threaded through
// constructors explicitly; there is no process-wide mode state.
type Options struct {
	Destinations map[string]string
	BaseDir      string
	HomeDir      string
	Global       bool
}

// Resolution is the outcome of expanding one template. Partial is set when a
// recognized token had no backing metadata and substituted an empty segment.
type Resolution struct {
	Path    string
	Partial bool
}

// Resolver expands destination templates. Resolution is a single
// left-to-right substitution pass over {token} markers; tokens that are not
// recognized are left verbatim so newer rule files degrade gracefully on
// older binaries.
type Resolver struct {
	opts Options
}

// NewResolver creates a resolver for one run's destination context.
func NewResolver(opts Options) *Resolver {
	return &Resolver{opts: opts}
}

// Resolve expands template for the given file and returns an absolute,
// cleaned directory path under the effective base directory. A reference to
// an unconfigured named destination returns ErrUnknownDestination; a
// recognized token with missing metadata substitutes an empty segment and
// marks the resolution partial.
func (r *Resolver) Resolve(template string, file model.FileMetadata) (Resolution, error) {
	var out strings.Builder
	var partial bool

	rest := template
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			out.WriteString(rest)
			break
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			out.WriteString(rest)
			break
		}

		out.WriteString(rest[:open])
		token := rest[open+1 : open+closing]
		rest = rest[open+closing+1:]

		value, known, err := r.expand(token, file)
		switch {
		case err != nil:
			return Resolution{}, err
		case !known:
			// Forward compatibility: leave unrecognized tokens untouched.
			out.WriteString("{" + token + "}")
		case value == "":
			partial = true
		default:
			out.WriteString(value)
		}
	}

	resolved := out.String()
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(r.opts.BaseDir, resolved)
	}

	return Resolution{
		Path:    filepath.Clean(resolved),
		Partial: partial,
	}, nil
}

// expand resolves one token. Token names are exact and case-sensitive.
func (r *Resolver) expand(token string, file model.FileMetadata) (string, bool, error) {
	switch token {
	case "year":
		return fileTime(file).Format("2006"), true, nil
	case "month":
		return fileTime(file).Format("01"), true, nil
	case "exif.year":
		if !file.HasEXIF() {
			return "", true, nil
		}
		return file.EXIF.CapturedAt.Format("2006"), true, nil
	case "exif.month":
		if !file.HasEXIF() {
			return "", true, nil
		}
		return file.EXIF.CapturedAt.Format("01"), true, nil
	case "audio.artist":
		if file.Audio == nil {
			return "", true, nil
		}
		return file.Audio.Artist, true, nil
	case "audio.album":
		if file.Audio == nil {
			return "", true, nil
		}
		return file.Audio.Album, true, nil
	}

	if name, ok := strings.CutPrefix(token, "destinations."); ok {
		target, exists := r.opts.Destinations[name]
		if !exists {
			return "", false, fmt.Errorf("%w: %q", common.ErrUnknownDestination, name)
		}
		return r.anchor(target), true, nil
	}

	return "", false, nil
}

// anchor places a named destination under the effective base: the user's
// home in global mode, the scanned root otherwise.
func (r *Resolver) anchor(target string) string {
	if filepath.IsAbs(target) {
		return target
	}
	if r.opts.Global && r.opts.HomeDir != "" {
		return filepath.Join(r.opts.HomeDir, target)
	}
	return filepath.Join(r.opts.BaseDir, target)
}

// fileTime picks the timestamp backing {year}/{month}: modification time,
// falling back to creation time.
func fileTime(file model.FileMetadata) time.Time {
	if !file.ModifiedAt.IsZero() {
		return file.ModifiedAt
	}
	return file.CreatedAt
}
