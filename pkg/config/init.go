package config

import (
	"fmt"
	"os"
)

// InitConfig writes a sample configuration file at the default location.
// Returns the path written. An existing file is preserved unless force is
// set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration file at path. An existing
// file is preserved unless force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	cfg := GetDefaultConfig()
	// Seed a workable sandbox layout so the file documents the mount
	// syntax instead of shipping an empty list.
	cfg.Mounts = []string{
		"type=managed,src=/var/lib/agentfs/workspace.db,dst=/workspace",
		"type=bind,src=/usr,dst=/usr",
	}

	return SaveConfig(cfg, path)
}
