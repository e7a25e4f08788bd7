package core

import (
	"errors"
	"fmt"
)

// User and state-precondition errors. These are recoverable: the
// repository is left untouched and the message tells the caller which
// operation resolves the situation.
var (
	ErrNotRepository       = errors.New("not a gitmap repository (missing .gitmap directory)")
	ErrRepositoryExists    = errors.New("gitmap repository already exists")
	ErrUncommittedChanges  = errors.New("uncommitted changes present: commit, stash or discard them first")
	ErrNothingToCommit     = errors.New("nothing to commit")
	ErrBranchExists        = errors.New("branch already exists")
	ErrBranchNotFound      = errors.New("branch not found")
	ErrTagExists           = errors.New("tag already exists")
	ErrTagNotFound         = errors.New("tag not found")
	ErrBranchCheckedOut    = errors.New("cannot delete the currently checked out branch")
	ErrBadName             = errors.New("invalid reference name")
	ErrUnknownRevision     = errors.New("unknown revision")
	ErrAmbiguousRevision   = errors.New("ambiguous revision prefix")
	ErrCommitNotFound      = errors.New("commit not found")
	ErrNoCommonAncestor    = errors.New("branches have no common ancestor")
	ErrMergeInProgress     = errors.New("a merge is in progress: resolve conflicts and commit, or abort")
	ErrNoMergeInProgress   = errors.New("no merge in progress")
	ErrUnresolvedConflicts = errors.New("unresolved merge conflicts remain")
	ErrNoHistory           = errors.New("current branch has no commits yet")
	ErrStashEmpty          = errors.New("stash is empty")
)

// StorageError reports an object or reference store I/O failure. It is
// fatal for the current operation only and is never retried here;
// retry policy belongs to the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
