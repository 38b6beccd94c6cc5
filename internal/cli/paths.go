package cli

import (
	"os"
	"path/filepath"
)

// appName is the application name used for directories and display.
const appName = "crateintel"

// cacheDir returns the cache directory using XDG standard (~/.cache/crateintel/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
