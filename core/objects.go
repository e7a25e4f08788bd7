package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gitmap-dev/gitmap/object"
	"github.com/gitmap-dev/gitmap/storage"
)

// PutCommit writes a commit to the append-only object store and
// returns its id. Writing identical content twice yields the same id
// without duplication. Every parent must already exist.
func (r *Repository) PutCommit(ctx context.Context, commit *object.Commit) (string, error) {
	id, err := commit.ComputeID()
	if err != nil {
		return "", err
	}
	if commit.ID != "" && commit.ID != id {
		return "", fmt.Errorf("commit id %s does not match content hash %s", commit.ID, id)
	}
	commit.ID = id
	for _, parent := range commit.Parents {
		ok, err := r.HasCommit(ctx, parent)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("parent %s: %w", object.ShortID(parent), ErrCommitNotFound)
		}
	}
	data, err := commit.Encode()
	if err != nil {
		return "", err
	}
	if err := r.storage.Put(ctx, commitKey(id), data); err != nil {
		return "", storageErr("write commit", err)
	}
	return id, nil
}

// GetCommit loads a commit by id. A unique prefix of at least 4
// characters also resolves.
func (r *Repository) GetCommit(ctx context.Context, id string) (*object.Commit, error) {
	data, err := r.storage.Get(ctx, commitKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		full, rerr := r.expandCommitPrefix(ctx, id)
		if rerr != nil {
			return nil, rerr
		}
		data, err = r.storage.Get(ctx, commitKey(full))
	}
	if err != nil {
		return nil, storageErr("read commit", err)
	}
	return object.DecodeCommit(data)
}

// HasCommit reports whether the exact commit id exists.
func (r *Repository) HasCommit(ctx context.Context, id string) (bool, error) {
	ok, err := r.storage.Has(ctx, commitKey(id))
	if err != nil {
		return false, storageErr("stat commit", err)
	}
	return ok, nil
}

// ListCommits returns every commit in the object store, ordered by
// timestamp then id for determinism.
func (r *Repository) ListCommits(ctx context.Context) ([]*object.Commit, error) {
	keys, err := r.storage.List(ctx, commitsPrefix)
	if err != nil {
		return nil, storageErr("list commits", err)
	}
	commits := make([]*object.Commit, 0, len(keys))
	for _, key := range keys {
		data, err := r.storage.Get(ctx, key)
		if err != nil {
			return nil, storageErr("read commit", err)
		}
		commit, err := object.DecodeCommit(data)
		if err != nil {
			return nil, err
		}
		commits = append(commits, commit)
	}
	sort.Slice(commits, func(i, j int) bool {
		if !commits[i].Timestamp.Equal(commits[j].Timestamp) {
			return commits[i].Timestamp.Before(commits[j].Timestamp)
		}
		return commits[i].ID < commits[j].ID
	})
	return commits, nil
}

func (r *Repository) expandCommitPrefix(ctx context.Context, prefix string) (string, error) {
	if len(prefix) < 4 {
		return "", ErrCommitNotFound
	}
	keys, err := r.storage.List(ctx, commitsPrefix+prefix)
	if err != nil {
		return "", storageErr("list commits", err)
	}
	if len(keys) == 0 {
		return "", ErrCommitNotFound
	}
	if len(keys) > 1 {
		return "", ErrAmbiguousRevision
	}
	id := strings.TrimPrefix(keys[0], commitsPrefix)
	return strings.TrimSuffix(id, ".json"), nil
}

func commitKey(id string) string {
	return commitsPrefix + id + ".json"
}
