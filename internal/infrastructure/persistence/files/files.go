// Package files provides JSON-file backed stores for state that must survive
// a restart: address bans, operator accounts, and operator aliases. Writes go
// through a temp file and rename so a crash mid-write never leaves a
// half-written store on disk.
package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// saveJSON writes v to path atomically.
func saveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// loadJSON reads path into v. A missing file leaves v untouched and returns
// false. A file that exists but cannot be parsed is an error; startup should
// fail loudly rather than silently discard state.
func loadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}
