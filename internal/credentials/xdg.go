package credentials

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDir = "bearer-proxy"

func configHome() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return xdgConfigHome
}

// DefaultCredsPath is where the file store lives unless configured otherwise.
func DefaultCredsPath() string {
	home := configHome()
	if home == "" {
		return ""
	}
	return filepath.Join(home, appDir, "credentials.json")
}

// DefaultConfigPath is the default location of config.toml.
func DefaultConfigPath() string {
	home := configHome()
	if home == "" {
		return ""
	}
	return filepath.Join(home, appDir, "config.toml")
}

func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
