package core

import (
	"context"
	"fmt"

	"github.com/gitmap-dev/gitmap/merge"
	"github.com/gitmap-dev/gitmap/object"
	"github.com/gitmap-dev/gitmap/webmap"
)

// CherryPick applies the change a single commit introduced onto the
// current branch: a three-way merge with the picked commit's parent as
// base, HEAD as ours and the picked commit as theirs. The resulting
// commit has a single parent (the prior HEAD), so history stays
// linear; the message carries a provenance note.
func (r *Repository) CherryPick(ctx context.Context, rev string) (*MergeOutcome, error) {
	if err := r.requireClean(ctx); err != nil {
		return nil, err
	}
	pickedID, err := r.resolveCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	picked, err := r.GetCommit(ctx, pickedID)
	if err != nil {
		return nil, err
	}
	base, err := r.parentSnapshot(ctx, picked)
	if err != nil {
		return nil, err
	}
	oursID, err := r.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	ours, err := r.headSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := merge.Merge(base, ours, picked.Snapshot)
	message := fmt.Sprintf("%s\n\n(cherry picked from commit %s)", picked.Message, picked.Short())
	return r.completeMerge(ctx, result, mergeState{
		Ours:         oursID,
		Theirs:       picked.ID,
		SingleParent: true,
		Message:      message,
	})
}

// Revert applies the inverse of the change a commit introduced: the
// same three-way machinery with the sides swapped, so what the commit
// added reads as removed and vice versa.
func (r *Repository) Revert(ctx context.Context, rev string) (*MergeOutcome, error) {
	if err := r.requireClean(ctx); err != nil {
		return nil, err
	}
	revertedID, err := r.resolveCommit(ctx, rev)
	if err != nil {
		return nil, err
	}
	reverted, err := r.GetCommit(ctx, revertedID)
	if err != nil {
		return nil, err
	}
	parent, err := r.parentSnapshot(ctx, reverted)
	if err != nil {
		return nil, err
	}
	oursID, err := r.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	ours, err := r.headSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := merge.Merge(reverted.Snapshot, ours, parent)
	message := fmt.Sprintf("Revert %q\n\nThis reverts commit %s.", firstLine(reverted.Message), reverted.Short())
	return r.completeMerge(ctx, result, mergeState{
		Ours:         oursID,
		Theirs:       reverted.ID,
		SingleParent: true,
		Message:      message,
	})
}

// parentSnapshot returns the snapshot of a commit's first parent, or
// an empty document for a root commit.
func (r *Repository) parentSnapshot(ctx context.Context, commit *object.Commit) (*webmap.Document, error) {
	if len(commit.Parents) == 0 {
		return webmap.New(), nil
	}
	parent, err := r.GetCommit(ctx, commit.Parents[0])
	if err != nil {
		return nil, err
	}
	return parent.Snapshot, nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
