package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gitmap-dev/gitmap/storage"
	"github.com/gitmap-dev/gitmap/webmap"
)

// StashEntry is one saved working state, kept in a stack outside the
// commit graph.
type StashEntry struct {
	ID        string           `json:"id"`
	Message   string           `json:"message,omitempty"`
	Branch    string           `json:"branch,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Snapshot  *webmap.Document `json:"snapshot"`
}

// StashSave moves the current uncommitted changes onto the stash
// stack and resets the index to HEAD's snapshot, leaving the
// repository clean.
func (r *Repository) StashSave(ctx context.Context, message string) (*StashEntry, error) {
	dirty, err := r.IsDirty(ctx)
	if err != nil {
		return nil, err
	}
	if !dirty {
		return nil, ErrNothingToCommit
	}
	index, err := r.Index(ctx)
	if err != nil {
		return nil, err
	}
	head, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}
	entry := StashEntry{
		ID:        uuid.NewString(),
		Message:   message,
		Branch:    head.Branch,
		Timestamp: time.Now().UTC(),
		Snapshot:  index,
	}
	stack, err := r.StashList(ctx)
	if err != nil {
		return nil, err
	}
	stack = append([]StashEntry{entry}, stack...)
	if err := r.saveStash(ctx, stack); err != nil {
		return nil, err
	}
	if err := r.DiscardChanges(ctx); err != nil {
		return nil, err
	}
	logger.Info("saved stash entry", "id", entry.ID, "message", message)
	return &entry, nil
}

// StashPop restores the most recent stash entry into the index and
// removes it from the stack. The repository must be clean so the pop
// cannot clobber unrelated edits.
func (r *Repository) StashPop(ctx context.Context) (*StashEntry, error) {
	dirty, err := r.IsDirty(ctx)
	if err != nil {
		return nil, err
	}
	if dirty {
		return nil, ErrUncommittedChanges
	}
	stack, err := r.StashList(ctx)
	if err != nil {
		return nil, err
	}
	if len(stack) == 0 {
		return nil, ErrStashEmpty
	}
	entry := stack[0]
	if err := r.SetIndex(ctx, entry.Snapshot); err != nil {
		return nil, err
	}
	if err := r.saveStash(ctx, stack[1:]); err != nil {
		return nil, err
	}
	return &entry, nil
}

// StashDrop removes the most recent stash entry without applying it.
func (r *Repository) StashDrop(ctx context.Context) (*StashEntry, error) {
	stack, err := r.StashList(ctx)
	if err != nil {
		return nil, err
	}
	if len(stack) == 0 {
		return nil, ErrStashEmpty
	}
	entry := stack[0]
	if err := r.saveStash(ctx, stack[1:]); err != nil {
		return nil, err
	}
	return &entry, nil
}

// StashClear removes all stash entries.
func (r *Repository) StashClear(ctx context.Context) error {
	return r.saveStash(ctx, nil)
}

// StashList returns the stash stack, newest first.
func (r *Repository) StashList(ctx context.Context) ([]StashEntry, error) {
	data, err := r.storage.Get(ctx, stashKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("read stash", err)
	}
	var stack []StashEntry
	if err := json.Unmarshal(data, &stack); err != nil {
		return nil, err
	}
	return stack, nil
}

func (r *Repository) saveStash(ctx context.Context, stack []StashEntry) error {
	if stack == nil {
		stack = []StashEntry{}
	}
	data, err := json.MarshalIndent(stack, "", "  ")
	if err != nil {
		return err
	}
	return storageErr("write stash", r.storage.Put(ctx, stashKey, data))
}
