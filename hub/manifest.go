package hub

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// ManifestFile marks a cache directory as completely fetched.
const ManifestFile = ".modelkit-complete"

// Manifest records what was fetched into a cache directory.
type Manifest struct {
	Key       string    `json:"key"`
	Revision  string    `json:"revision"`
	Source    string    `json:"source"`
	Files     []File    `json:"files"`
	FetchedAt time.Time `json:"fetched_at"`
}

// ReadManifest reads the completion manifest of dir. ok is false when dir
// is not a completely fetched artifact.
func ReadManifest(dir string) (m Manifest, ok bool) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return Manifest{}, false
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, false
	}
	return m, true
}

func writeManifest(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644)
}
