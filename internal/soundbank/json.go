package soundbank

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// BankFile is the on-disk form of a JSON sound bank:
//
//	{"name": "drums", "sounds": {"kick": "kick.wav", "snare": "/abs/snare.ogg"}}
//
// Relative sound paths are relative to the bank file.
type BankFile struct {
	Name   string            `json:"name"`
	Sounds map[string]string `json:"sounds"`
}

// JSONMapper maps names through an explicit table
type JSONMapper struct {
	name    string
	mapping map[string]string
}

// NewJSONMapper creates a mapper over mapping
func NewJSONMapper(name string, mapping map[string]string) *JSONMapper {
	slog.Debug("creating JSON mapper",
		"name", name,
		"mapping_keys_count", len(mapping))

	return &JSONMapper{
		name:    name,
		mapping: mapping,
	}
}

// LoadJSONMapper reads a BankFile from path
func LoadJSONMapper(fs afero.Fs, path string) (*JSONMapper, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		slog.Error("failed to read sound bank", "path", path, "error", err)
		return nil, fmt.Errorf("failed to read sound bank %s: %w", path, err)
	}

	var bank BankFile
	if err := json.Unmarshal(data, &bank); err != nil {
		slog.Error("failed to parse sound bank", "path", path, "error", err)
		return nil, fmt.Errorf("failed to parse sound bank %s: %w", path, err)
	}
	if len(bank.Sounds) == 0 {
		return nil, fmt.Errorf("sound bank %s has no sounds", path)
	}

	name := bank.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	dir := filepath.Dir(path)
	mapping := make(map[string]string, len(bank.Sounds))
	for key, file := range bank.Sounds {
		if file == "" {
			return nil, fmt.Errorf("sound bank %s: sound %q has no file", path, key)
		}
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, filepath.FromSlash(file))
		}
		mapping[key] = file
	}

	return NewJSONMapper(name, mapping), nil
}

// MapName returns the mapped path, or nothing for an unknown name
func (j *JSONMapper) MapName(name string) ([]string, error) {
	if path, ok := j.mapping[name]; ok {
		return []string{path}, nil
	}
	slog.Debug("name not in JSON bank", "name", name, "bank", j.name)
	return []string{}, nil
}

// Names lists the table's keys in sorted order
func (j *JSONMapper) Names() ([]string, error) {
	return sortedKeys(j.mapping), nil
}

// GetName returns the name of this JSON mapper
func (j *JSONMapper) GetName() string {
	return j.name
}

// GetType returns "json"
func (j *JSONMapper) GetType() string {
	return "json"
}
