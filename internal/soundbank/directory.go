package soundbank

import (
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Extensions tried, in order, for a name given without one
var Extensions = []string{".wav", ".ogg", ".flac", ".mp3", ".aiff", ".aif"}

// DirectoryMapper maps names to files under one or more base directories.
// "kick" matches kick.wav, kick.ogg and so on; "drums/kick.wav" is used as is.
type DirectoryMapper struct {
	name      string
	basePaths []string
	fs        afero.Fs
}

// NewDirectoryMapper creates a directory mapper over basePaths on fs
func NewDirectoryMapper(fs afero.Fs, name string, basePaths []string) *DirectoryMapper {
	slog.Debug("creating directory mapper",
		"name", name,
		"base_paths", basePaths)

	return &DirectoryMapper{
		name:      name,
		basePaths: basePaths,
		fs:        fs,
	}
}

// MapName returns candidates under every base path
func (d *DirectoryMapper) MapName(name string) ([]string, error) {
	if name == "" {
		return []string{}, nil
	}

	var candidates []string
	for _, basePath := range d.basePaths {
		base := filepath.Join(basePath, filepath.FromSlash(name))
		if filepath.Ext(name) != "" {
			candidates = append(candidates, base)
			continue
		}
		for _, ext := range Extensions {
			candidates = append(candidates, base+ext)
		}
	}
	return candidates, nil
}

// Names lists the audio files directly under the base paths by base name.
// A name found in an earlier base path hides later ones.
func (d *DirectoryMapper) Names() ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	for _, basePath := range d.basePaths {
		entries, err := afero.ReadDir(d.fs, basePath)
		if err != nil {
			slog.Debug("skipping unreadable bank directory", "path", basePath, "error", err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isAudioFile(entry.Name()) {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// GetName returns the name of this directory mapper
func (d *DirectoryMapper) GetName() string {
	return d.name
}

// GetType returns "directory"
func (d *DirectoryMapper) GetType() string {
	return "directory"
}

func isAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range Extensions {
		if ext == known {
			return true
		}
	}
	return false
}
