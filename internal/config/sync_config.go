package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// SyncFileConfig holds sync settings that are awkward to express as env vars.
//
//	excluded_user_ids:
//	  - 5f1a...
//	schedule: "04:00"
//	workers: 8
type SyncFileConfig struct {
	ExcludedUserIDs []string `yaml:"excluded_user_ids"`
	Schedule        string   `yaml:"schedule"`
	Workers         int      `yaml:"workers"`
}

// LoadSyncFileConfig parses the YAML file at path. An empty path yields an
// empty config.
func LoadSyncFileConfig(path string) (*SyncFileConfig, error) {
	cfg := &SyncFileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sync config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sync config %s: %w", path, err)
	}
	return cfg, nil
}

// Excluded returns the exclusion list as a set.
func (c *SyncFileConfig) Excluded() map[string]struct{} {
	set := make(map[string]struct{}, len(c.ExcludedUserIDs))
	for _, id := range c.ExcludedUserIDs {
		set[id] = struct{}{}
	}
	return set
}
