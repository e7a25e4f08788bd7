package core

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gitmap-dev/gitmap/diff"
	"github.com/gitmap-dev/gitmap/storage"
	"github.com/gitmap-dev/gitmap/webmap"
)

// Index returns the staging area: the working snapshot the next
// commit will capture.
func (r *Repository) Index(ctx context.Context) (*webmap.Document, error) {
	data, err := r.storage.Get(ctx, indexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return webmap.New(), nil
	}
	if err != nil {
		return nil, storageErr("read index", err)
	}
	return webmap.Parse(data)
}

// SetIndex replaces the staging area with the given snapshot.
func (r *Repository) SetIndex(ctx context.Context, doc *webmap.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return storageErr("write index", r.storage.Put(ctx, indexKey, data))
}

// IndexDiff diffs the staging area against the snapshot HEAD resolves
// to. On a branch without history the index is compared against an
// empty document.
func (r *Repository) IndexDiff(ctx context.Context) (*diff.Result, error) {
	index, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	head, err := r.headSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return diff.Compare(head, index)
}

// IsDirty reports whether the staging area differs from HEAD.
func (r *Repository) IsDirty(ctx context.Context) (bool, error) {
	d, err := r.IndexDiff(ctx)
	if err != nil {
		return false, err
	}
	return !d.Empty(), nil
}

// headSnapshot returns the snapshot of the commit HEAD resolves to,
// or an empty baseline when the branch has no commits.
func (r *Repository) headSnapshot(ctx context.Context) (*webmap.Document, error) {
	headID, err := r.HeadCommit(ctx)
	if errors.Is(err, ErrNoHistory) {
		return webmap.New(), nil
	}
	if err != nil {
		return nil, err
	}
	commit, err := r.GetCommit(ctx, headID)
	if err != nil {
		return nil, err
	}
	return commit.Snapshot, nil
}
