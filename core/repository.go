// Package core ties the object store, reference store, index, diff
// engine and merge engine together into the repository operations the
// CLI exposes. It is the only package aware of the on-disk layout.
package core

import (
	"context"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/gitmap-dev/gitmap/storage"
	"github.com/gitmap-dev/gitmap/webmap"
)

// GitMapDir is the repository metadata directory name.
const GitMapDir = ".gitmap"

// Storage keys inside the metadata directory. These paths are part of
// the wire format and must not change.
const (
	configKey     = "config.json"
	headKey       = "HEAD"
	indexKey      = "index.json"
	headsPrefix   = "refs/heads/"
	tagsPrefix    = "refs/tags/"
	commitsPrefix = "objects/commits/"
	stashKey      = "stash.json"
	mergeStateKey = "MERGE_STATE.json"
)

// DefaultBranch is the branch a new repository starts on.
const DefaultBranch = "main"

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "gitmap"})

// SetLogger replaces the package logger, used by the CLI to route
// diagnostics.
func SetLogger(l *log.Logger) {
	logger = l
}

// Repository is a handle to a local gitmap repository. All operations
// take the handle explicitly; there is no ambient current repository.
type Repository struct {
	root    string
	storage storage.Storage
}

// Root returns the working directory the repository lives in.
func (r *Repository) Root() string {
	return r.root
}

// Init creates a new repository in dir: the metadata directory, the
// configuration, HEAD attached to the default branch and an empty
// index. The default branch itself has no commits until the first
// commit is made.
func Init(ctx context.Context, dir string, cfg *Config) (*Repository, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	gitmapDir := filepath.Join(root, GitMapDir)
	if _, err := os.Stat(gitmapDir); err == nil {
		return nil, ErrRepositoryExists
	}
	if err := os.MkdirAll(gitmapDir, 0o755); err != nil {
		return nil, storageErr("create repository", err)
	}

	repo := &Repository{root: root, storage: storage.NewFile(gitmapDir)}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(root)
	}
	if err := repo.SetConfig(ctx, cfg); err != nil {
		return nil, err
	}
	if err := repo.setHead(ctx, Head{Branch: DefaultBranch}); err != nil {
		return nil, err
	}
	if err := repo.SetIndex(ctx, webmap.New()); err != nil {
		return nil, err
	}
	logger.Info("initialized empty repository", "dir", root, "branch", DefaultBranch)
	return repo, nil
}

// Open opens the repository whose metadata directory lives directly
// under dir.
func Open(ctx context.Context, dir string) (*Repository, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	gitmapDir := filepath.Join(root, GitMapDir)
	info, err := os.Stat(gitmapDir)
	if err != nil || !info.IsDir() {
		return nil, ErrNotRepository
	}
	repo := &Repository{root: root, storage: storage.NewFile(gitmapDir)}
	if _, err := repo.Config(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Find walks up from dir looking for a repository, the way git
// discovers its work tree.
func Find(ctx context.Context, dir string) (*Repository, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	for {
		repo, err := Open(ctx, current)
		if err == nil {
			return repo, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return nil, ErrNotRepository
		}
		current = parent
	}
}
