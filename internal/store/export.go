package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// Export serializes a result to JSON and writes it to a timestamped file in
// dir. Returns the path to the saved file.
func Export(dir string, r *Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	// Dashes instead of colons for filesystem compatibility
	filename := time.Now().Format("2006-01-02T15-04-05") + ".json"
	path := filepath.Join(dir, filename)

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}

	return path, nil
}
