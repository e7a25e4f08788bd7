package core

import (
	"context"
	"errors"
	"fmt"
)

// RefKind tags what a revision string resolved to.
type RefKind string

const (
	RefBranch RefKind = "branch"
	RefTag    RefKind = "tag"
	RefCommit RefKind = "commit"
)

// Ref is a resolved revision. Name is set for branches and tags; ID is
// always the commit id.
type Ref struct {
	Kind RefKind
	Name string
	ID   string
}

// Resolve interprets a revision string once, at the orchestrator
// boundary: branch name first, then tag name, then commit id or
// unique prefix.
func (r *Repository) Resolve(ctx context.Context, rev string) (Ref, error) {
	if rev == "" {
		return Ref{}, fmt.Errorf("%w: empty revision", ErrUnknownRevision)
	}
	if id, err := r.Branch(ctx, rev); err == nil {
		return Ref{Kind: RefBranch, Name: rev, ID: id}, nil
	} else if !errors.Is(err, ErrBranchNotFound) {
		return Ref{}, err
	}
	if id, err := r.Tag(ctx, rev); err == nil {
		return Ref{Kind: RefTag, Name: rev, ID: id}, nil
	} else if !errors.Is(err, ErrTagNotFound) {
		return Ref{}, err
	}
	if ok, err := r.HasCommit(ctx, rev); err != nil {
		return Ref{}, err
	} else if ok {
		return Ref{Kind: RefCommit, ID: rev}, nil
	}
	if full, err := r.expandCommitPrefix(ctx, rev); err == nil {
		return Ref{Kind: RefCommit, ID: full}, nil
	} else if errors.Is(err, ErrAmbiguousRevision) {
		return Ref{}, err
	}
	return Ref{}, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
}

// resolveCommit resolves a revision string to a commit id.
func (r *Repository) resolveCommit(ctx context.Context, rev string) (string, error) {
	ref, err := r.Resolve(ctx, rev)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}
