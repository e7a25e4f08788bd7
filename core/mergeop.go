package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gitmap-dev/gitmap/merge"
	"github.com/gitmap-dev/gitmap/object"
	"github.com/gitmap-dev/gitmap/storage"
	"github.com/gitmap-dev/gitmap/webmap"
)

// mergeState is the persisted record of a merge awaiting conflict
// resolution, stored in MERGE_STATE.json while the repository is in
// the merging state.
type mergeState struct {
	// Ours and Theirs are the two merge heads. For a cherry-pick or
	// revert Theirs is the picked commit and SingleParent is set.
	Ours         string `json:"ours"`
	Theirs       string `json:"theirs"`
	OursBranch   string `json:"ours_branch,omitempty"`
	TheirsBranch string `json:"theirs_branch,omitempty"`
	SingleParent bool   `json:"single_parent,omitempty"`
	Message      string `json:"message"`

	Conflicts []stateConflict `json:"conflicts"`
}

type stateConflict struct {
	Kind   merge.Kind      `json:"kind"`
	Key    string          `json:"key"`
	Title  string          `json:"title,omitempty"`
	Ours   json.RawMessage `json:"ours,omitempty"`
	Theirs json.RawMessage `json:"theirs,omitempty"`
	Base   json.RawMessage `json:"base,omitempty"`
}

// MergeOutcome is the result of a merge, cherry-pick or revert
// operation at the repository level.
type MergeOutcome struct {
	// Commit is set when the operation completed cleanly.
	Commit *object.Commit
	// Conflicts lists unresolved conflicts; the repository is in the
	// merging state until they are resolved and committed.
	Conflicts []merge.Conflict
	// UpToDate is set when there was nothing to merge.
	UpToDate bool
}

// Merge merges the given branch into the current HEAD branch. The
// repository must be clean. A conflict-free merge writes the merge
// commit immediately and advances only the HEAD branch; the other
// branch pointer is untouched. Conflicts put the repository into the
// merging state with a best-effort combined snapshot in the index for
// inspection.
func (r *Repository) Merge(ctx context.Context, branch string) (*MergeOutcome, error) {
	if err := r.requireClean(ctx); err != nil {
		return nil, err
	}
	head, err := r.Head(ctx)
	if err != nil {
		return nil, err
	}
	oursID, err := r.HeadCommit(ctx)
	if err != nil {
		return nil, err
	}
	theirsID, err := r.Branch(ctx, branch)
	if err != nil {
		return nil, err
	}

	if ok, err := r.IsAncestor(ctx, theirsID, oursID); err != nil {
		return nil, err
	} else if ok {
		return &MergeOutcome{UpToDate: true}, nil
	}

	baseID, err := r.MergeBase(ctx, oursID, theirsID)
	if err != nil {
		return nil, err
	}
	base, err := r.GetCommit(ctx, baseID)
	if err != nil {
		return nil, err
	}
	ours, err := r.GetCommit(ctx, oursID)
	if err != nil {
		return nil, err
	}
	theirs, err := r.GetCommit(ctx, theirsID)
	if err != nil {
		return nil, err
	}

	result := merge.Merge(base.Snapshot, ours.Snapshot, theirs.Snapshot)
	message := fmt.Sprintf("Merge branch '%s' into %s", branch, head.Branch)
	return r.completeMerge(ctx, result, mergeState{
		Ours:         oursID,
		Theirs:       theirsID,
		OursBranch:   head.Branch,
		TheirsBranch: branch,
		Message:      message,
	})
}

// completeMerge either writes the final commit (no conflicts) or
// persists the merge state and the best-effort snapshot for manual
// resolution.
func (r *Repository) completeMerge(ctx context.Context, result *merge.Result, state mergeState) (*MergeOutcome, error) {
	if err := r.SetIndex(ctx, result.Merged); err != nil {
		return nil, err
	}
	if result.Resolved() {
		if err := r.saveMergeState(ctx, state); err != nil {
			return nil, err
		}
		commit, err := r.Commit(ctx, state.Message, "", "")
		if err != nil {
			return nil, err
		}
		return &MergeOutcome{Commit: commit}, nil
	}

	for _, c := range result.Conflicts {
		sc := stateConflict{Kind: c.Kind, Key: c.Key, Title: c.Title}
		var err error
		if sc.Ours, err = marshalCandidate(c.Ours); err != nil {
			return nil, err
		}
		if sc.Theirs, err = marshalCandidate(c.Theirs); err != nil {
			return nil, err
		}
		if sc.Base, err = marshalCandidate(c.Base); err != nil {
			return nil, err
		}
		state.Conflicts = append(state.Conflicts, sc)
	}
	if err := r.saveMergeState(ctx, state); err != nil {
		return nil, err
	}
	logger.Warn("merge produced conflicts", "count", len(result.Conflicts))
	return &MergeOutcome{Conflicts: result.Conflicts}, nil
}

// ResolveConflict resolves one conflict of the in-progress merge.
// choice is ours, theirs or base; custom, when non-nil, wins over
// choice and supplies the resolved content directly (a layer document
// for layer and table conflicts, any JSON value for properties, nil
// to delete).
func (r *Repository) ResolveConflict(ctx context.Context, key, choice string, custom any) error {
	state, err := r.loadMergeState(ctx)
	if err != nil {
		return err
	}
	idx := -1
	for i, c := range state.Conflicts {
		if c.Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("no unresolved conflict for %q", key)
	}
	sc := state.Conflicts[idx]

	value := custom
	if value == nil {
		var raw json.RawMessage
		switch choice {
		case merge.ChooseOurs:
			raw = sc.Ours
		case merge.ChooseTheirs:
			raw = sc.Theirs
		case merge.ChooseBase:
			raw = sc.Base
		default:
			return fmt.Errorf("invalid resolution choice %q", choice)
		}
		if raw != nil {
			value, err = unmarshalCandidate(sc.Kind, raw)
			if err != nil {
				return err
			}
		}
	}

	index, err := r.Index(ctx)
	if err != nil {
		return err
	}
	if err := applyResolution(index, sc, value); err != nil {
		return err
	}
	if err := r.SetIndex(ctx, index); err != nil {
		return err
	}

	state.Conflicts = append(state.Conflicts[:idx], state.Conflicts[idx+1:]...)
	if err := r.saveMergeState(ctx, *state); err != nil {
		return err
	}
	logger.Info("resolved conflict", "key", key, "remaining", len(state.Conflicts))
	return nil
}

// Conflicts returns the unresolved conflicts of the in-progress
// merge.
func (r *Repository) Conflicts(ctx context.Context) ([]merge.Conflict, error) {
	state, err := r.loadMergeState(ctx)
	if err != nil {
		return nil, err
	}
	conflicts := make([]merge.Conflict, 0, len(state.Conflicts))
	for _, sc := range state.Conflicts {
		c := merge.Conflict{Kind: sc.Kind, Key: sc.Key, Title: sc.Title}
		if sc.Ours != nil {
			if c.Ours, err = unmarshalCandidate(sc.Kind, sc.Ours); err != nil {
				return nil, err
			}
		}
		if sc.Theirs != nil {
			if c.Theirs, err = unmarshalCandidate(sc.Kind, sc.Theirs); err != nil {
				return nil, err
			}
		}
		if sc.Base != nil {
			if c.Base, err = unmarshalCandidate(sc.Kind, sc.Base); err != nil {
				return nil, err
			}
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, nil
}

// AbortMerge abandons the in-progress merge, restoring the index to
// HEAD's snapshot.
func (r *Repository) AbortMerge(ctx context.Context) error {
	if _, err := r.loadMergeState(ctx); err != nil {
		return err
	}
	if err := r.DiscardChanges(ctx); err != nil {
		return err
	}
	return r.clearMergeState(ctx)
}

func applyResolution(doc *webmap.Document, sc stateConflict, value any) error {
	switch sc.Kind {
	case merge.KindLayer:
		layer, err := resolutionLayer(value)
		if err != nil {
			return err
		}
		doc.Layers = replaceInSequence(doc.Layers, sc.Key, layer)
	case merge.KindTable:
		layer, err := resolutionLayer(value)
		if err != nil {
			return err
		}
		doc.Tables = replaceInSequence(doc.Tables, sc.Key, layer)
	case merge.KindProperty:
		if doc.Extra == nil {
			doc.Extra = make(map[string]any)
		}
		if value == nil {
			delete(doc.Extra, sc.Key)
		} else {
			doc.Extra[sc.Key] = value
		}
	}
	return nil
}

func resolutionLayer(value any) (*webmap.Layer, error) {
	switch t := value.(type) {
	case nil:
		return nil, nil
	case *webmap.Layer:
		return t, nil
	case webmap.Layer:
		return &t, nil
	default:
		return nil, fmt.Errorf("layer resolution must be a layer, got %T", value)
	}
}

func replaceInSequence(layers []webmap.Layer, id string, layer *webmap.Layer) []webmap.Layer {
	for i := range layers {
		if layers[i].Identity() == id {
			if layer == nil {
				return append(layers[:i], layers[i+1:]...)
			}
			layers[i] = *layer
			return layers
		}
	}
	if layer != nil {
		layers = append(layers, *layer)
	}
	return layers
}

func marshalCandidate(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalCandidate(kind merge.Kind, raw json.RawMessage) (any, error) {
	if kind == merge.KindProperty {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	var layer webmap.Layer
	if err := json.Unmarshal(raw, &layer); err != nil {
		return nil, err
	}
	return &layer, nil
}

func (r *Repository) loadMergeState(ctx context.Context) (*mergeState, error) {
	data, err := r.storage.Get(ctx, mergeStateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoMergeInProgress
	}
	if err != nil {
		return nil, storageErr("read merge state", err)
	}
	var state mergeState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse merge state: %w", err)
	}
	return &state, nil
}

func (r *Repository) saveMergeState(ctx context.Context, state mergeState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return storageErr("write merge state", r.storage.Put(ctx, mergeStateKey, data))
}

func (r *Repository) clearMergeState(ctx context.Context) error {
	err := r.storage.Delete(ctx, mergeStateKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return storageErr("clear merge state", err)
}

// requireClean fails unless the repository is clean with history and
// no merge in progress.
func (r *Repository) requireClean(ctx context.Context) error {
	status, err := r.Status(ctx)
	if err != nil {
		return err
	}
	switch status.State {
	case StateMerging:
		return ErrMergeInProgress
	case StateDirty:
		return ErrUncommittedChanges
	case StateNoHistory:
		return ErrNoHistory
	}
	return nil
}
