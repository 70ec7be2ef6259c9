package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/atlasrun/orchestrator/agent"
	"github.com/atlasrun/orchestrator/registry"
)

// workerCatalogFile is the on-disk shape of configs/workers.yaml: the
// static list of worker endpoints the daemon registers at startup.
type workerCatalogFile struct {
	Workers []registry.CatalogEntry `yaml:"workers"`
}

func loadWorkerCatalogFile(path string) ([]registry.CatalogEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file workerCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return file.Workers, nil
}

// loadAgentDefinition reads one installed agent definition from the
// agent-definitions store, the same one-file-per-id JSON layout httpapi
// serves over /agents.
func loadAgentDefinition(dir, id string) (agent.Definition, error) {
	data, err := os.ReadFile(filepath.Join(dir, id+".json"))
	if err != nil {
		return agent.Definition{}, err
	}
	var def agent.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return agent.Definition{}, fmt.Errorf("decode agent definition %s: %w", id, err)
	}
	return def, nil
}
