package containermgr

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// indexFile returns the on-disk index path for a resource kind, matching
// the persisted-state layout (installed-mcps.json / installed-triggers.json).
func indexFile(root string, kind Kind) string {
	name := "installed-mcps.json"
	if kind == KindTrigger {
		name = "installed-triggers.json"
	}
	return filepath.Join(root, name)
}

func loadIndex(root string, kind Kind) (map[string]InstalledResource, error) {
	path := indexFile(root, kind)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]InstalledResource{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := map[string]InstalledResource{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func saveIndex(root string, kind Kind, index map[string]InstalledResource) error {
	path := indexFile(root, kind)
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
