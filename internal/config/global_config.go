package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// GlobalConfigPath returns the user-level configuration path,
// ~/.config/weft/config.yaml. Project files in .weft/ override it.
func GlobalConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "weft", "config.yaml"), nil
}

// EnsureConfigFile creates path with DefaultConfigYAML unless it already
// exists. It reports whether the file was created.
func EnsureConfigFile(path string) (bool, error) {
	if _, statErr := os.Stat(path); statErr == nil {
		return false, nil
	} else if !os.IsNotExist(statErr) {
		return false, fmt.Errorf("checking config: %w", statErr)
	}
	if err := AtomicWrite(path, []byte(DefaultConfigYAML)); err != nil {
		return false, fmt.Errorf("creating config: %w", err)
	}
	return true, nil
}
