package core

import (
	"context"
	"errors"
)

// State is the repository state machine position.
type State string

const (
	// StateNoHistory is a repository whose current branch has no
	// commits yet. Distinct from clean and dirty.
	StateNoHistory State = "no-history"
	// StateClean means the index matches HEAD's snapshot.
	StateClean State = "clean"
	// StateDirty means the index differs from HEAD's snapshot.
	StateDirty State = "dirty"
	// StateMerging means a merge produced conflicts that are not all
	// resolved and committed yet.
	StateMerging State = "merging"
)

// Status describes the repository at a point in time. Detached is
// orthogonal to State.
type Status struct {
	State    State
	Branch   string
	Commit   string
	Detached bool
	// Conflicts lists the unresolved conflict keys while merging.
	Conflicts []string
}

// Status computes the current repository status.
func (r *Repository) Status(ctx context.Context) (*Status, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}
	status := &Status{Branch: head.Branch, Detached: head.Detached()}

	if state, err := r.loadMergeState(ctx); err == nil {
		status.State = StateMerging
		status.Commit = state.Ours
		for _, c := range state.Conflicts {
			status.Conflicts = append(status.Conflicts, c.Key)
		}
		return status, nil
	} else if !errors.Is(err, ErrNoMergeInProgress) {
		return nil, err
	}

	headID, err := r.HeadCommit(ctx)
	if errors.Is(err, ErrNoHistory) {
		status.State = StateNoHistory
		dirty, err := r.IsDirty(ctx)
		if err != nil {
			return nil, err
		}
		if dirty {
			status.State = StateDirty
		}
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	status.Commit = headID

	dirty, err := r.IsDirty(ctx)
	if err != nil {
		return nil, err
	}
	if dirty {
		status.State = StateDirty
	} else {
		status.State = StateClean
	}
	return status, nil
}
