package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDataDir is the data directory name, relative to the project root.
	DefaultDataDir = ".scaledspace"
	// ManifestFile is the default asset manifest name.
	ManifestFile = "scaledspace.yaml"
)

// FindRoot recursively looks upwards for a project root indicator.
// Indicators are: a .scaledspace directory or a scaledspace.yaml manifest.
// If found, returns the absolute path to the root.
func FindRoot(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		if hasFile(dir, DefaultDataDir) || hasFile(dir, ManifestFile) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("root not found")
}

func hasFile(dir, name string) bool {
	path := filepath.Join(dir, name)
	_, err := os.Stat(path)
	return err == nil
}
