// Package bulk clones many portal web maps into local repositories in
// one run, driven by a YAML manifest. It is setup tooling layered on
// the remote adapter, not part of the versioning core.
package bulk

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/remote"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "bulk"})

// Manifest describes a bulk setup run.
type Manifest struct {
	// Portal is the base URL of the portal the items live on.
	Portal string `yaml:"portal"`
	// User identity applied to every created repository.
	UserName  string `yaml:"user_name"`
	UserEmail string `yaml:"user_email"`
	// Entries are the repositories to create.
	Entries []Entry `yaml:"entries"`
}

// Entry is one repository to set up: either an explicit item id, or a
// search query whose every match is cloned into a subdirectory of
// Dir.
type Entry struct {
	ItemID  string `yaml:"item_id,omitempty"`
	Query   string `yaml:"query,omitempty"`
	Dir     string `yaml:"dir"`
	Project string `yaml:"project,omitempty"`
}

// Result reports the outcome for one cloned item.
type Result struct {
	ItemID string
	Dir    string
	Err    error
}

// Load reads a manifest from a YAML file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Portal == "" {
		return nil, fmt.Errorf("manifest is missing the portal url")
	}
	return &m, nil
}

// Run clones every entry of the manifest. Failures are collected per
// item rather than aborting the run, so one bad item cannot sink a
// batch.
func Run(ctx context.Context, m *Manifest, portal remote.Portal) ([]Result, error) {
	var results []Result
	for _, entry := range m.Entries {
		ids, err := entryItems(ctx, portal, entry)
		if err != nil {
			results = append(results, Result{Dir: entry.Dir, Err: err})
			continue
		}
		for _, id := range ids {
			dir := entry.Dir
			if len(ids) > 1 {
				dir = filepath.Join(entry.Dir, id)
			}
			cfg := &core.Config{
				UserName:    m.UserName,
				UserEmail:   m.UserEmail,
				ProjectName: entry.Project,
				Remote:      &core.RemoteConfig{Name: "origin", URL: m.Portal},
			}
			_, err := remote.CloneItem(ctx, portal, dir, id, cfg)
			if err != nil {
				logger.Error("clone failed", "item", id, "err", err)
			} else {
				logger.Info("cloned repository", "item", id, "dir", dir)
			}
			results = append(results, Result{ItemID: id, Dir: dir, Err: err})
		}
	}
	return results, nil
}

func entryItems(ctx context.Context, portal remote.Portal, entry Entry) ([]string, error) {
	if entry.ItemID != "" {
		return []string{entry.ItemID}, nil
	}
	if entry.Query == "" {
		return nil, fmt.Errorf("entry for %q needs an item_id or a query", entry.Dir)
	}
	items, err := portal.SearchDocuments(ctx, entry.Query)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}
