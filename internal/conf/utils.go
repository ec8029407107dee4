package conf

import (
	"os"
	"path/filepath"
	"runtime"
)

// GetDefaultConfigPaths returns the directories searched for config.yaml,
// most specific first.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}

	if homeDir, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "windows" {
			paths = append(paths, filepath.Join(homeDir, "AppData", "Roaming", "eegprep"))
		} else {
			paths = append(paths, filepath.Join(homeDir, ".config", "eegprep"))
		}
	}

	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/eegprep")
	}

	return paths
}
