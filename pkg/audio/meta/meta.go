// Package meta reads embedded track metadata from audio files.
package meta

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dhowden/tag"
)

// Track holds the embedded tags of an audio file. Missing tags are left
// zero-valued.
type Track struct {
	Title  string
	Artist string
	Album  string
	Year   int
}

// ReadTrack returns the embedded tags of the file at path. A file without
// any recognizable tags yields an empty Track, not an error.
func ReadTrack(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, fmt.Errorf("meta: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return Track{}, nil
		}
		return Track{}, fmt.Errorf("meta: read tags: %w", err)
	}
	return Track{
		Title:  m.Title(),
		Artist: m.Artist(),
		Album:  m.Album(),
		Year:   m.Year(),
	}, nil
}

// ExtractCover writes the file's embedded front cover to cover.jpg in
// outDir and returns its path. Only JPEG artwork is extracted; files with
// no tags, no artwork or non-JPEG artwork return "" without error.
func ExtractCover(path, outDir string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("meta: open %s: %w", path, err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		if errors.Is(err, tag.ErrNoTagsFound) {
			return "", nil
		}
		return "", fmt.Errorf("meta: read tags: %w", err)
	}

	pic := m.Picture()
	if pic == nil || pic.MIMEType != "image/jpeg" {
		return "", nil
	}

	out := filepath.Join(outDir, "cover.jpg")
	tmp, err := os.CreateTemp(outDir, ".cover-*.jpg")
	if err != nil {
		return "", fmt.Errorf("meta: create cover: %w", err)
	}
	if _, err := tmp.Write(pic.Data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("meta: write cover: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("meta: close cover: %w", err)
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("meta: finalize cover: %w", err)
	}
	return out, nil
}
