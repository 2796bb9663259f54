package soundbank

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// Mapper turns a sound name into candidate file paths
type Mapper interface {
	// MapName returns the paths that may hold the sound, best first
	MapName(name string) ([]string, error)
	// Names lists the sounds the mapper knows about
	Names() ([]string, error)
	GetName() string
	GetType() string
}

// Resolver finds the file behind a sound name using a Mapper
type Resolver struct {
	mapper Mapper
	fs     afero.Fs
}

// NewResolver creates a resolver checking candidates on the OS filesystem
func NewResolver(mapper Mapper) *Resolver {
	return NewResolverWithFilesystem(afero.NewOsFs(), mapper)
}

// NewResolverWithFilesystem creates a resolver checking candidates on fs
func NewResolverWithFilesystem(fs afero.Fs, mapper Mapper) *Resolver {
	slog.Debug("creating sound bank resolver",
		"mapper_name", mapper.GetName(),
		"mapper_type", mapper.GetType())

	return &Resolver{
		mapper: mapper,
		fs:     fs,
	}
}

// ResolveSound returns the first candidate for name that exists as a file
func (r *Resolver) ResolveSound(name string) (string, error) {
	if name == "" {
		err := fmt.Errorf("sound name cannot be empty")
		slog.Error("resolve sound failed", "error", err)
		return "", err
	}

	candidates, err := r.mapper.MapName(name)
	if err != nil {
		slog.Error("name mapping failed", "name", name, "error", err)
		return "", fmt.Errorf("name mapping failed: %w", err)
	}

	slog.Debug("name mapping completed",
		"name", name,
		"candidates", candidates,
		"mapper_type", r.mapper.GetType())

	for i, candidate := range candidates {
		info, err := r.fs.Stat(candidate)
		if err != nil {
			slog.Debug("candidate not found", "candidate", candidate, "error", err)
			continue
		}
		if info.IsDir() {
			slog.Debug("candidate is a directory", "candidate", candidate)
			continue
		}

		slog.Debug("sound resolved",
			"name", name,
			"path", candidate,
			"candidate_index", i)
		return candidate, nil
	}

	slog.Warn("sound not found in bank",
		"name", name,
		"bank", r.mapper.GetName(),
		"candidates_checked", len(candidates))

	return "", &SoundNotFoundError{Name: name, Paths: candidates}
}

// ResolveSoundWithFallback tries names in order and returns the first hit
func (r *Resolver) ResolveSoundWithFallback(names []string) (string, error) {
	if len(names) == 0 {
		err := fmt.Errorf("no fallback names provided")
		slog.Error("fallback resolution failed", "error", err)
		return "", err
	}

	var lastErr error
	for i, name := range names {
		path, err := r.ResolveSound(name)
		if err == nil {
			if i > 0 {
				slog.Info("resolved sound through fallback", "name", name, "fallback_index", i)
			}
			return path, nil
		}
		lastErr = err
	}
	return "", lastErr
}

// ResolveAll resolves every name, or every sound in the bank when names is
// empty. Paths come back in the order of the names.
func (r *Resolver) ResolveAll(names []string) ([]string, error) {
	if len(names) == 0 {
		all, err := r.mapper.Names()
		if err != nil {
			return nil, fmt.Errorf("failed to list bank %s: %w", r.mapper.GetName(), err)
		}
		if len(all) == 0 {
			return nil, fmt.Errorf("bank %s holds no sounds", r.mapper.GetName())
		}
		names = all
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := r.ResolveSound(name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	slog.Info("sound bank resolved", "bank", r.mapper.GetName(), "sounds", len(paths))
	return paths, nil
}

// GetName returns the name of the underlying mapper
func (r *Resolver) GetName() string {
	return r.mapper.GetName()
}

// GetType returns the type of the underlying mapper
func (r *Resolver) GetType() string {
	return r.mapper.GetType()
}

// SoundNotFoundError reports a name none of whose candidates exist
type SoundNotFoundError struct {
	Name  string
	Paths []string
}

func (e *SoundNotFoundError) Error() string {
	if len(e.Paths) == 0 {
		return fmt.Sprintf("sound not found: %s (not in bank)", e.Name)
	}
	return fmt.Sprintf("sound not found: %s (searched in: %s)", e.Name, strings.Join(e.Paths, ", "))
}

// IsSoundNotFoundError checks if an error is a SoundNotFoundError
func IsSoundNotFoundError(err error) bool {
	_, ok := err.(*SoundNotFoundError)
	return ok
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
