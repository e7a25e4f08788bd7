// Package gitmap versions web map documents the way git versions
// files: an append-only commit graph over whole-document snapshots,
// with branches, tags, structural diff and three-way merge.
package gitmap

import (
	"context"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/remote"
)

// Init creates a new repository rooted at dir.
func Init(ctx context.Context, dir string, cfg *core.Config) (*core.Repository, error) {
	return core.Init(ctx, dir, cfg)
}

// Open opens the repository rooted at dir.
func Open(ctx context.Context, dir string) (*core.Repository, error) {
	return core.Open(ctx, dir)
}

// Find opens the repository containing dir, walking up parent
// directories the way git does.
func Find(ctx context.Context, dir string) (*core.Repository, error) {
	return core.Find(ctx, dir)
}

// Clone creates a repository in dir from a portal item, with the
// item's current document as the initial commit.
func Clone(ctx context.Context, portal remote.Portal, dir, itemID string, cfg *core.Config) (*core.Repository, error) {
	return remote.CloneItem(ctx, portal, dir, itemID, cfg)
}
