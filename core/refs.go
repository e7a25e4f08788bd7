package core

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/gitmap-dev/gitmap/storage"
)

const headRefPrefix = "ref: refs/heads/"

// Head is the repository HEAD pointer: attached to a branch, or
// detached at a raw commit id.
type Head struct {
	Branch string
	Commit string
}

// Detached reports whether HEAD points at a bare commit.
func (h Head) Detached() bool {
	return h.Branch == ""
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-/]*$`)

// ValidateName checks that a branch or tag name is a path-safe token.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) || strings.Contains(name, "..") || strings.HasSuffix(name, "/") {
		return ErrBadName
	}
	return nil
}

// Head returns the current HEAD pointer.
func (r *Repository) Head(ctx context.Context) (Head, error) {
	data, err := r.storage.Get(ctx, headKey)
	if err != nil {
		return Head{}, storageErr("read HEAD", err)
	}
	content := strings.TrimSpace(string(data))
	if strings.HasPrefix(content, headRefPrefix) {
		return Head{Branch: strings.TrimPrefix(content, headRefPrefix)}, nil
	}
	return Head{Commit: content}, nil
}

func (r *Repository) setHead(ctx context.Context, head Head) error {
	var content string
	if head.Detached() {
		content = head.Commit
	} else {
		content = headRefPrefix + head.Branch
	}
	return storageErr("write HEAD", r.storage.Put(ctx, headKey, []byte(content)))
}

// HeadCommit resolves HEAD to a commit id. Returns ErrNoHistory when
// HEAD is attached to a branch that has no commits yet.
func (r *Repository) HeadCommit(ctx context.Context) (string, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return "", err
	}
	if head.Detached() {
		return head.Commit, nil
	}
	id, err := r.Branch(ctx, head.Branch)
	if errors.Is(err, ErrBranchNotFound) {
		return "", ErrNoHistory
	}
	return id, err
}

// Branch returns the commit id a branch points to.
func (r *Repository) Branch(ctx context.Context, name string) (string, error) {
	data, err := r.storage.Get(ctx, headsPrefix+name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrBranchNotFound
	}
	if err != nil {
		return "", storageErr("read branch", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *Repository) setBranch(ctx context.Context, name, commitID string) error {
	return storageErr("write branch", r.storage.Put(ctx, headsPrefix+name, []byte(commitID)))
}

// Branches lists all branch names in ascending order.
func (r *Repository) Branches(ctx context.Context) ([]string, error) {
	return r.listRefs(ctx, headsPrefix)
}

// Tags lists all tag names in ascending order.
func (r *Repository) Tags(ctx context.Context) ([]string, error) {
	return r.listRefs(ctx, tagsPrefix)
}

func (r *Repository) listRefs(ctx context.Context, prefix string) ([]string, error) {
	keys, err := r.storage.List(ctx, prefix)
	if err != nil {
		return nil, storageErr("list refs", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, prefix))
	}
	sort.Strings(names)
	return names, nil
}

// CreateBranch creates a branch pointing at the given revision, or at
// the current HEAD commit when rev is empty.
func (r *Repository) CreateBranch(ctx context.Context, name, rev string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := r.Branch(ctx, name); err == nil {
		return ErrBranchExists
	}
	var commitID string
	var err error
	if rev == "" {
		commitID, err = r.HeadCommit(ctx)
	} else {
		commitID, err = r.resolveCommit(ctx, rev)
	}
	if err != nil {
		return err
	}
	return r.setBranch(ctx, name, commitID)
}

// DeleteBranch removes a branch pointer. The commits it referenced
// stay in the object store. Deleting the currently attached branch is
// refused.
func (r *Repository) DeleteBranch(ctx context.Context, name string) error {
	head, err := r.Head(ctx)
	if err != nil {
		return err
	}
	if !head.Detached() && head.Branch == name {
		return ErrBranchCheckedOut
	}
	err = r.storage.Delete(ctx, headsPrefix+name)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrBranchNotFound
	}
	return storageErr("delete branch", err)
}

// Tag returns the commit id a tag points to.
func (r *Repository) Tag(ctx context.Context, name string) (string, error) {
	data, err := r.storage.Get(ctx, tagsPrefix+name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrTagNotFound
	}
	if err != nil {
		return "", storageErr("read tag", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// CreateTag tags the given revision, or HEAD when rev is empty. Tags
// are never advanced by commits.
func (r *Repository) CreateTag(ctx context.Context, name, rev string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, err := r.Tag(ctx, name); err == nil {
		return ErrTagExists
	}
	var commitID string
	var err error
	if rev == "" {
		commitID, err = r.HeadCommit(ctx)
	} else {
		commitID, err = r.resolveCommit(ctx, rev)
	}
	if err != nil {
		return err
	}
	return storageErr("write tag", r.storage.Put(ctx, tagsPrefix+name, []byte(commitID)))
}

// DeleteTag removes a tag pointer.
func (r *Repository) DeleteTag(ctx context.Context, name string) error {
	err := r.storage.Delete(ctx, tagsPrefix+name)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrTagNotFound
	}
	return storageErr("delete tag", err)
}
