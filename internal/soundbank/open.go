package soundbank

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Open returns a resolver for the bank at path: a directory of sound files or
// a JSON bank file.
func Open(fs afero.Fs, path string) (*Resolver, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sound bank %s: %w", path, err)
	}

	if info.IsDir() {
		mapper := NewDirectoryMapper(fs, filepath.Base(filepath.Clean(path)), []string{path})
		return NewResolverWithFilesystem(fs, mapper), nil
	}

	mapper, err := LoadJSONMapper(fs, path)
	if err != nil {
		return nil, err
	}
	return NewResolverWithFilesystem(fs, mapper), nil
}
