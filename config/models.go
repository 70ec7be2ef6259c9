// Package config owns the ModelRegistry: the persisted, hot-reloadable set
// of configured LLM models backing every AgentDefinition. It is
// read-copy-update — readers snapshot the current slice under a brief read
// lock; writers build a new slice and swap it under a write lock before
// persisting to disk.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/atlasrun/orchestrator/errs"
	"github.com/atlasrun/orchestrator/model"
)

// ModelEntry is one configured model. APIKeyEnv names the environment
// variable holding the credential — API keys never live in the YAML file
// itself.
type ModelEntry struct {
	ID           string `json:"id" yaml:"id"`
	Driver       string `json:"driver" yaml:"driver"`
	DefaultModel string `json:"default_model" yaml:"default_model"`
	HighModel    string `json:"high_model,omitempty" yaml:"high_model,omitempty"`
	SmallModel   string `json:"small_model,omitempty" yaml:"small_model,omitempty"`
	APIKeyEnv    string `json:"api_key_env" yaml:"api_key_env"`
	IsDefault    bool   `json:"is_default" yaml:"is_default"`
}

// fileLayout is the on-disk shape of configs/models.yaml.
type fileLayout struct {
	Models []ModelEntry `yaml:"models"`
}

// ModelRegistry is the CRUD surface and build factory for configured
// models. One mutex serializes every write; reads take a snapshot copy of
// the current slice so a long-running agent iteration never blocks a
// concurrent models list/update call.
type ModelRegistry struct {
	path string

	mu      sync.RWMutex
	entries []ModelEntry

	drivers *model.Registry
}

// New loads path and returns a ModelRegistry backed by drivers for client
// construction. An absent file yields an empty registry; no file is created
// until the first write persists one.
func New(path string, drivers *model.Registry) (*ModelRegistry, error) {
	r := &ModelRegistry{path: path, drivers: drivers}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *ModelRegistry) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("config: read %s: %w", r.path, err)
	}
	var layout fileLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return fmt.Errorf("config: parse %s: %w", r.path, err)
	}
	r.entries = layout.Models
	return nil
}

// persist writes the current entries to disk. Callers must hold r.mu for
// writing.
func (r *ModelRegistry) persist() error {
	data, err := yaml.Marshal(fileLayout{Models: r.entries})
	if err != nil {
		return fmt.Errorf("config: marshal models: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", r.path, err)
	}
	return nil
}

// List returns a snapshot of every configured model.
func (r *ModelRegistry) List() []ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ModelEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Get returns one entry by id.
func (r *ModelRegistry) Get(id string) (ModelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e, true
		}
	}
	return ModelEntry{}, false
}

// Create adds a new model entry. Fails if id is already in use.
func (r *ModelRegistry) Create(entry ModelEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.ID == entry.ID {
			return errs.New(errs.KindInvalidArgument, "config", fmt.Sprintf("model id %q already exists", entry.ID), nil)
		}
	}
	next := append(append([]ModelEntry{}, r.entries...), entry)
	if entry.IsDefault {
		clearOtherDefaults(next, entry.ID)
	}
	r.entries = next
	return r.persist()
}

// Update replaces an existing entry by id, preserving its position.
func (r *ModelRegistry) Update(id string, entry ModelEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := append([]ModelEntry{}, r.entries...)
	idx := indexOf(next, id)
	if idx < 0 {
		return errs.New(errs.KindNotFound, "config", fmt.Sprintf("model %q not found", id), nil)
	}
	entry.ID = id
	next[idx] = entry
	if entry.IsDefault {
		clearOtherDefaults(next, id)
	}
	r.entries = next
	return r.persist()
}

// Delete removes an entry by id. Deleting the current default model fails
// (the caller must choose a new default first).
func (r *ModelRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := indexOf(r.entries, id)
	if idx < 0 {
		return errs.New(errs.KindNotFound, "config", fmt.Sprintf("model %q not found", id), nil)
	}
	if r.entries[idx].IsDefault {
		return errs.New(errs.KindInvalidArgument, "config", "cannot delete the default model; set a new default first", nil)
	}
	next := append([]ModelEntry{}, r.entries[:idx]...)
	next = append(next, r.entries[idx+1:]...)
	r.entries = next
	return r.persist()
}

// SetDefault transactionally clears is_default on every model and sets it
// on id, persisting once — no observer may see two defaults simultaneously
// (the mutation happens entirely under r.mu before the slice is swapped in,
// so concurrent readers of List/Get see either the old or the new state,
// never a mix).
func (r *ModelRegistry) SetDefault(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if indexOf(r.entries, id) < 0 {
		return errs.New(errs.KindNotFound, "config", fmt.Sprintf("model %q not found", id), nil)
	}
	next := append([]ModelEntry{}, r.entries...)
	clearOtherDefaults(next, id)
	r.entries = next
	return r.persist()
}

// Default returns the current default model entry, if any.
func (r *ModelRegistry) Default() (ModelEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.IsDefault {
			return e, true
		}
	}
	return ModelEntry{}, false
}

// ResolveClient builds a model.Client for modelID by resolving the entry's
// driver through the model.Registry and the entry's credential from the
// environment.
func (r *ModelRegistry) ResolveClient(_ context.Context, modelID string) (model.Client, error) {
	entry, ok := r.Get(modelID)
	if !ok {
		return nil, errs.New(errs.KindNotFound, "config", fmt.Sprintf("model %q not configured", modelID), nil)
	}
	apiKey := os.Getenv(entry.APIKeyEnv)
	if apiKey == "" {
		return nil, errs.New(errs.KindLLMAuthError, "config", fmt.Sprintf("environment variable %q is not set for model %q", entry.APIKeyEnv, entry.ID), nil)
	}
	return r.drivers.Build(entry.Driver, apiKey, entry.DefaultModel, entry.HighModel, entry.SmallModel)
}

func indexOf(entries []ModelEntry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func clearOtherDefaults(entries []ModelEntry, keepID string) {
	for i := range entries {
		entries[i].IsDefault = entries[i].ID == keepID
	}
}
