// Package seed holds the static fallback list: the per-category
// filenames the service falls back to when live discovery is
// unavailable. A compiled-in default ships with the binary; deployments
// can point at a YAML file instead, which can be hot-reloaded and
// synced back from live listings.
package seed

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/halvard/muninn/internal/models"
)

// fileShape is the YAML layout of a seed file.
type fileShape struct {
	Version    int                 `yaml:"version"`
	Categories map[string][]string `yaml:"categories"`
}

// Registry is the in-memory view of the fallback list. Safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	files   map[models.Category][]string
	version int
	path    string
}

// Default returns a registry holding the compiled-in fallback list.
func Default() *Registry {
	r := &Registry{files: make(map[models.Category][]string), version: 1}
	for c, files := range defaultFiles {
		r.files[c] = normalize(c, files)
	}
	return r
}

// Load reads a seed file. Category keys must parse; a typo'd key is an
// error rather than a silently ignored block.
func Load(path string) (*Registry, error) {
	r := &Registry{files: make(map[models.Category][]string), path: path}
	if err := r.read(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) read() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("seed: read %s: %w", r.path, err)
	}
	var raw fileShape
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("seed: parse %s: %w", r.path, err)
	}

	files := make(map[models.Category][]string, len(raw.Categories))
	for key, list := range raw.Categories {
		c, err := models.ParseCategory(key)
		if err != nil {
			return fmt.Errorf("seed: %s: %w", r.path, err)
		}
		files[c] = normalize(c, list)
	}
	version := raw.Version
	if version <= 0 {
		version = 1
	}

	r.mu.Lock()
	r.files = files
	r.version = version
	r.mu.Unlock()
	return nil
}

// Reload re-reads the backing file. Registries without one are left
// unchanged.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}
	return r.read()
}

// Path returns the backing file, or "" for a compiled-in registry.
func (r *Registry) Path() string { return r.path }

// Version reports the list revision. Load adopts the file's version;
// Replace bumps it.
func (r *Registry) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Files returns the category's fallback filenames in canonical order.
func (r *Registry) Files(c models.Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.files[c]))
	copy(out, r.files[c])
	return out
}

// All returns a copy of every category's fallback filenames.
func (r *Registry) All() map[models.Category][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.Category][]string, len(r.files))
	for c, files := range r.files {
		cp := make([]string, len(files))
		copy(cp, files)
		out[c] = cp
	}
	return out
}

// Replace swaps a category's fallback filenames and bumps the version.
func (r *Registry) Replace(c models.Category, files []string) {
	normalized := normalize(c, files)
	r.mu.Lock()
	r.files[c] = normalized
	r.version++
	r.mu.Unlock()
}

// Save writes the current list back to the backing file atomically:
// tmp file, fsync, rename. Registries without a file are in-memory
// only and Save is a no-op.
func (r *Registry) Save() error {
	if r.path == "" {
		return nil
	}

	r.mu.RLock()
	raw := fileShape{Version: r.version, Categories: make(map[string][]string, len(r.files))}
	for c, files := range r.files {
		cp := make([]string, len(files))
		copy(cp, files)
		raw.Categories[string(c)] = cp
	}
	r.mu.RUnlock()

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("seed: marshal: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("seed: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".muninn-seed-*")
	if err != nil {
		return fmt.Errorf("seed: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("seed: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("seed: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("seed: close temp: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("seed: rename: %w", err)
	}
	success = true
	return nil
}

func normalize(c models.Category, files []string) []string {
	cp := make([]string, len(files))
	copy(cp, files)
	models.SortFiles(c, cp)
	kept, _ := models.DedupeByID(c, cp)
	return kept
}
