package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// RemoteConfig identifies the portal the repository synchronizes
// with. The core treats it as opaque metadata handed to the
// synchronization adapter.
type RemoteConfig struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	FolderID   string `json:"folder_id,omitempty"`
	FolderName string `json:"folder_name,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	// BranchItems maps non-default branch names to the portal item
	// each one was last pushed to.
	BranchItems map[string]string `json:"branch_items,omitempty"`
}

// Config is the repository configuration stored in .gitmap/config.json.
type Config struct {
	Version     string        `json:"version"`
	UserName    string        `json:"user_name"`
	UserEmail   string        `json:"user_email"`
	ProjectName string        `json:"project_name"`
	Remote      *RemoteConfig `json:"remote,omitempty"`
}

const configVersion = "1.0"

// Config returns the repository configuration.
func (r *Repository) Config(ctx context.Context) (*Config, error) {
	data, err := r.storage.Get(ctx, configKey)
	if err != nil {
		return nil, storageErr("read config", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// SetConfig replaces the repository configuration.
func (r *Repository) SetConfig(ctx context.Context, cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = configVersion
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return storageErr("write config", r.storage.Put(ctx, configKey, data))
}
