package resolve

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelhq/kestrel/internal/common"
	"github.com/kestrelhq/kestrel/internal/model"
)

func TestResolver_Resolve(t *testing.T) {
	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	opts := Options{
		BaseDir: "/scan",
		HomeDir: "/home/u",
		Destinations: map[string]string{
			"screenshots": "Pictures/Screenshots",
			"archive":     "/mnt/archive",
		},
	}

	tests := []struct {
		name        string
		template    string
		wantPath    string
		file        model.FileMetadata
		wantPartial bool
		wantErr     error
	}{
		{
			name:     "year and month from modification time",
			template: "sorted/{year}-{month}",
			file:     model.FileMetadata{ModifiedAt: jan},
			wantPath: "/scan/sorted/2024-01",
		},
		{
			name:     "created time fallback",
			template: "sorted/{year}",
			file:     model.FileMetadata{CreatedAt: jan},
			wantPath: "/scan/sorted/2024",
		},
		{
			name:     "named destination in local mode",
			template: "{destinations.screenshots}/{year}-{month}",
			file:     model.FileMetadata{ModifiedAt: jan},
			wantPath: "/scan/Pictures/Screenshots/2024-01",
		},
		{
			name:     "absolute named destination",
			template: "{destinations.archive}/{year}",
			file:     model.FileMetadata{ModifiedAt: jan},
			wantPath: "/mnt/archive/2024",
		},
		{
			name:     "unknown destination fails",
			template: "{destinations.missing}/x",
			file:     model.FileMetadata{ModifiedAt: jan},
			wantErr:  common.ErrUnknownDestination,
		},
		{
			name:     "exif tokens",
			template: "photos/{exif.year}/{exif.month}",
			file: model.FileMetadata{
				ModifiedAt: jan,
				EXIF:       &model.EXIFMetadata{CapturedAt: time.Date(2023, 7, 4, 0, 0, 0, 0, time.UTC)},
			},
			wantPath: "/scan/photos/2023/07",
		},
		{
			name:        "missing exif substitutes empty and flags partial",
			template:    "photos/{exif.year}/{exif.month}",
			file:        model.FileMetadata{ModifiedAt: jan},
			wantPath:    "/scan/photos",
			wantPartial: true,
		},
		{
			name:     "audio tokens",
			template: "music/{audio.artist}/{audio.album}",
			file: model.FileMetadata{
				ModifiedAt: jan,
				Audio:      &model.AudioMetadata{Artist: "Holst", Album: "The Planets"},
			},
			wantPath: "/scan/music/Holst/The Planets",
		},
		{
			name:        "missing audio metadata is partial",
			template:    "music/{audio.artist}",
			file:        model.FileMetadata{ModifiedAt: jan},
			wantPath:    "/scan/music",
			wantPartial: true,
		},
		{
			name:     "unrecognized token left verbatim",
			template: "sorted/{widget}/{year}",
			file:     model.FileMetadata{ModifiedAt: jan},
			wantPath: "/scan/sorted/{widget}/2024",
		},
		{
			name:     "no tokens",
			template: "inbox",
			file:     model.FileMetadata{ModifiedAt: jan},
			wantPath: "/scan/inbox",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(opts)
			res, err := r.Resolve(tt.template, tt.file)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, res.Path)
			assert.Equal(t, tt.wantPartial, res.Partial)
		})
	}
}

func TestResolver_Resolve_GlobalMode(t *testing.T) {
	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	r := NewResolver(Options{
		BaseDir: "/scan",
		HomeDir: "/home/u",
		Global:  true,
		Destinations: map[string]string{
			"screenshots": "Pictures/Screenshots",
		},
	})

	res, err := r.Resolve("{destinations.screenshots}/{year}-{month}", model.FileMetadata{ModifiedAt: jan})
	require.NoError(t, err)
	assert.Equal(t, "/home/u/Pictures/Screenshots/2024-01", res.Path)
	assert.False(t, res.Partial)
}
