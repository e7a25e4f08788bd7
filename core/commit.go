package core

import (
	"context"
	"errors"

	"github.com/gitmap-dev/gitmap/object"
)

// Commit writes a new commit capturing the current index. In the
// normal case the commit has the HEAD commit as its single parent and
// requires uncommitted changes. While a merge is in progress the
// commit finalizes it: all conflicts must be resolved, and the commit
// gets both merge heads as parents.
//
// On an attached HEAD the branch advances to the new commit. On a
// detached HEAD the new commit is dangling: no branch moves, HEAD
// follows the commit and a warning is logged.
func (r *Repository) Commit(ctx context.Context, message, author, email string) (*object.Commit, error) {
	cfg, err := r.Config(ctx)
	if err != nil {
		return nil, err
	}
	if author == "" {
		author = cfg.UserName
	}
	if author == "" {
		author = "Unknown"
	}
	if email == "" {
		email = cfg.UserEmail
	}

	head, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}

	var parents []string
	state, err := r.loadMergeState(ctx)
	switch {
	case err == nil:
		if len(state.Conflicts) > 0 {
			return nil, ErrUnresolvedConflicts
		}
		parents = []string{state.Ours, state.Theirs}
		if state.SingleParent {
			parents = []string{state.Ours}
		}
	case errors.Is(err, ErrNoMergeInProgress):
		dirty, err := r.IsDirty(ctx)
		if err != nil {
			return nil, err
		}
		if !dirty {
			return nil, ErrNothingToCommit
		}
		headID, err := r.HeadCommit(ctx)
		if err == nil {
			parents = []string{headID}
		} else if !errors.Is(err, ErrNoHistory) {
			return nil, err
		}
	default:
		return nil, err
	}

	index, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	commit, err := object.NewCommit(message, author, email, parents, index)
	if err != nil {
		return nil, err
	}
	commit.Branch = head.Branch

	// The commit object is fully written before any ref moves, so a
	// crash can never leave a ref pointing at a missing commit.
	id, err := r.PutCommit(ctx, commit)
	if err != nil {
		return nil, err
	}
	if head.Detached() {
		logger.Warn("committing on detached HEAD, commit is not on any branch", "commit", object.ShortID(id))
		if err := r.setHead(ctx, Head{Commit: id}); err != nil {
			return nil, err
		}
	} else {
		if err := r.setBranch(ctx, head.Branch, id); err != nil {
			return nil, err
		}
	}
	if err := r.clearMergeState(ctx); err != nil {
		return nil, err
	}
	logger.Info("created commit", "commit", object.ShortID(id), "branch", head.Branch, "message", message)
	return commit, nil
}
