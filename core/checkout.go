package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitmap-dev/gitmap/object"
)

// Checkout switches the working state to the given revision. The
// repository must be clean: uncommitted changes fail the operation and
// must be committed, stashed or discarded first. Checking out a branch
// attaches HEAD; a tag or commit detaches it. With create set, a new
// branch is created at the current HEAD commit and checked out.
func (r *Repository) Checkout(ctx context.Context, rev string, create bool) error {
	if _, err := r.loadMergeState(ctx); err == nil {
		return ErrMergeInProgress
	} else if !errors.Is(err, ErrNoMergeInProgress) {
		return err
	}
	dirty, err := r.IsDirty(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return ErrUncommittedChanges
	}

	if create {
		if err := r.CreateBranch(ctx, rev, ""); err != nil {
			return err
		}
	}

	ref, err := r.Resolve(ctx, rev)
	if err != nil {
		return err
	}
	commit, err := r.GetCommit(ctx, ref.ID)
	if err != nil {
		return err
	}
	if err := r.SetIndex(ctx, commit.Snapshot); err != nil {
		return err
	}
	switch ref.Kind {
	case RefBranch:
		err = r.setHead(ctx, Head{Branch: ref.Name})
	default:
		// Tags always detach; they are never a valid attached target.
		err = r.setHead(ctx, Head{Commit: ref.ID})
	}
	if err != nil {
		return err
	}
	logger.Info("checked out", "target", rev, "kind", string(ref.Kind))
	return nil
}

// DiscardChanges resets the index to HEAD's snapshot, dropping all
// uncommitted changes.
func (r *Repository) DiscardChanges(ctx context.Context) error {
	snapshot, err := r.headSnapshot(ctx)
	if err != nil {
		return err
	}
	return r.SetIndex(ctx, snapshot)
}

// Log walks history from the given revision (HEAD when empty)
// following first parents, newest first. A limit of zero means no
// limit.
func (r *Repository) Log(ctx context.Context, rev string, limit int) ([]*LogEntry, error) {
	var startID string
	var err error
	if rev == "" {
		startID, err = r.HeadCommit(ctx)
		if errors.Is(err, ErrNoHistory) {
			return nil, nil
		}
	} else {
		startID, err = r.resolveCommit(ctx, rev)
	}
	if err != nil {
		return nil, err
	}

	var entries []*LogEntry
	currentID := startID
	for currentID != "" {
		if limit > 0 && len(entries) >= limit {
			break
		}
		commit, err := r.GetCommit(ctx, currentID)
		if err != nil {
			return nil, fmt.Errorf("walk history at %s: %w", currentID, err)
		}
		entries = append(entries, &LogEntry{Commit: commit, Merge: len(commit.Parents) == 2})
		if len(commit.Parents) == 0 {
			break
		}
		currentID = commit.Parents[0]
	}
	return entries, nil
}

// LogEntry is one line of history output.
type LogEntry struct {
	Commit *object.Commit
	Merge  bool
}
