// Package registry finds local GGUF weights for hub-style model ids.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"chesscomm/pkg/types"
)

// LoadDir scans a directory for *.gguf files and builds a registry from filenames.
// ID is the full filename; Path is the absolute file path. Results are sorted by ID.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{ID: name, Path: filepath.Join(abs, name)})
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// Resolve picks the model file for a hub id such as
// "NAKSTStudio/chess-gemma-commentary". A file matches when its name, without
// the .gguf suffix, equals the id's last path segment or starts with it
// followed by '.', '-' or '_' (quantization suffixes). Matching ignores case;
// an exact match wins over a prefix match.
func Resolve(models []types.Model, modelID string) (types.Model, bool) {
	name := strings.ToLower(strings.TrimSpace(modelID))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return types.Model{}, false
	}
	var prefix *types.Model
	for i := range models {
		stem := strings.ToLower(strings.TrimSuffix(models[i].ID, filepath.Ext(models[i].ID)))
		if stem == name {
			return models[i], true
		}
		if prefix == nil && strings.HasPrefix(stem, name) && strings.ContainsRune(".-_", rune(stem[len(name)])) {
			prefix = &models[i]
		}
	}
	if prefix != nil {
		return *prefix, true
	}
	return types.Model{}, false
}

// ExpandHome expands a leading '~' to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
