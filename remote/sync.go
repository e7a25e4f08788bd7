package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/object"
	"github.com/gitmap-dev/gitmap/webmap"
)

// SyncResult reports what a push or pull did.
type SyncResult struct {
	ItemID   string
	Commit   *object.Commit
	UpToDate bool
}

// BranchItemTitle is the portal item title used for a branch's
// document. The default branch uses the bare project name so the item
// stays recognizable to map viewers.
func BranchItemTitle(project, branch string) string {
	if branch == core.DefaultBranch {
		return project
	}
	return fmt.Sprintf("%s [%s]", project, branch)
}

// Push writes the tip snapshot of a branch (default: the current HEAD
// branch) to the portal. Any remote failure leaves the local index,
// HEAD and refs untouched; the repository config records the item id
// only after the write succeeded.
func Push(ctx context.Context, repo *core.Repository, portal Portal, branch string) (*SyncResult, error) {
	cfg, err := repo.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Remote == nil {
		return nil, errors.New("no remote configured")
	}
	if branch == "" {
		head, err := repo.Head(ctx)
		if err != nil {
			return nil, err
		}
		if head.Detached() {
			return nil, errors.New("cannot push from a detached HEAD, name a branch")
		}
		branch = head.Branch
	}
	tip, err := repo.Branch(ctx, branch)
	if err != nil {
		return nil, err
	}
	commit, err := repo.GetCommit(ctx, tip)
	if err != nil {
		return nil, err
	}

	title := BranchItemTitle(cfg.ProjectName, branch)
	itemID, err := findBranchItem(ctx, portal, cfg, branch, title)
	if err != nil {
		return nil, err
	}
	written, err := portal.WriteDocument(ctx, itemID, commit.Snapshot, ItemInfo{
		Title: title,
		Tags:  []string{"gitmap", "branch:" + branch},
	})
	if err != nil {
		return nil, err
	}
	logger.Info("pushed branch", "branch", branch, "item", written, "commit", commit.Short())

	if err := recordBranchItem(ctx, repo, cfg, branch, written); err != nil {
		return nil, err
	}
	return &SyncResult{ItemID: written, Commit: commit}, nil
}

// recordBranchItem saves the item id a branch was pushed to, so later
// pushes and pulls reuse it instead of searching by title.
func recordBranchItem(ctx context.Context, repo *core.Repository, cfg *core.Config, branch, itemID string) error {
	if branch == core.DefaultBranch {
		if cfg.Remote.ItemID == itemID {
			return nil
		}
		cfg.Remote.ItemID = itemID
	} else {
		if cfg.Remote.BranchItems[branch] == itemID {
			return nil
		}
		if cfg.Remote.BranchItems == nil {
			cfg.Remote.BranchItems = make(map[string]string)
		}
		cfg.Remote.BranchItems[branch] = itemID
	}
	return repo.SetConfig(ctx, cfg)
}

// findBranchItem locates the portal item a branch pushes to: the item
// recorded in the configuration, otherwise a title search. An empty id
// means the item does not exist yet and must be created.
func findBranchItem(ctx context.Context, portal Portal, cfg *core.Config, branch, title string) (string, error) {
	if branch == core.DefaultBranch {
		if cfg.Remote.ItemID != "" {
			return cfg.Remote.ItemID, nil
		}
	} else if id := cfg.Remote.BranchItems[branch]; id != "" {
		return id, nil
	}
	items, err := portal.SearchDocuments(ctx, fmt.Sprintf("title:%q", title))
	if err != nil {
		return "", err
	}
	for _, item := range items {
		if item.Title == title {
			return item.ID, nil
		}
	}
	return "", nil
}

// Pull fetches the remote document and, when it differs from the
// current branch tip, records it as a new commit on the current
// branch. The repository must be clean (a brand-new repository
// without history is also fine).
func Pull(ctx context.Context, repo *core.Repository, portal Portal, branch string) (*SyncResult, error) {
	cfg, err := repo.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Remote == nil || cfg.Remote.ItemID == "" {
		return nil, errors.New("no remote item configured, push or clone first")
	}
	status, err := repo.Status(ctx)
	if err != nil {
		return nil, err
	}
	switch status.State {
	case core.StateDirty:
		return nil, core.ErrUncommittedChanges
	case core.StateMerging:
		return nil, core.ErrMergeInProgress
	}

	itemID := cfg.Remote.ItemID
	if branch != "" && branch != core.DefaultBranch {
		title := BranchItemTitle(cfg.ProjectName, branch)
		itemID, err = findBranchItem(ctx, portal, cfg, branch, title)
		if err != nil {
			return nil, err
		}
		if itemID == "" {
			return nil, fmt.Errorf("branch %q: %w", branch, ErrItemNotFound)
		}
	}

	doc, err := portal.FetchDocument(ctx, itemID)
	if err != nil {
		return nil, err
	}
	index, err := repo.Index(ctx)
	if err != nil {
		return nil, err
	}
	// A repository without history counts as up to date when the remote
	// document matches its pristine index; committing it would record
	// nothing.
	settled := status.State == core.StateClean || status.State == core.StateNoHistory
	if settled && webmap.Equal(doc, index) {
		return &SyncResult{ItemID: itemID, UpToDate: true}, nil
	}
	if err := repo.SetIndex(ctx, doc); err != nil {
		return nil, err
	}
	commit, err := repo.Commit(ctx, fmt.Sprintf("Pull from %s", cfg.Remote.Name), "", "")
	if err != nil {
		return nil, err
	}
	logger.Info("pulled remote document", "item", itemID, "commit", commit.Short())
	return &SyncResult{ItemID: itemID, Commit: commit}, nil
}

// CloneItem initializes a repository in dir from a portal item: the
// item's current document becomes the index and the initial commit,
// and the remote configuration records where it came from. cfg
// supplies user identity and the remote URL; project name defaults to
// the item title.
func CloneItem(ctx context.Context, portal Portal, dir, itemID string, cfg *core.Config) (*core.Repository, error) {
	info, err := portal.FetchItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	doc, err := portal.FetchDocument(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &core.Config{}
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = info.Title
	}
	if cfg.Remote == nil {
		cfg.Remote = &core.RemoteConfig{Name: "origin"}
	}
	cfg.Remote.ItemID = itemID

	repo, err := core.Init(ctx, dir, cfg)
	if err != nil {
		return nil, err
	}
	if err := repo.SetIndex(ctx, doc); err != nil {
		return nil, err
	}
	commit, err := repo.Commit(ctx, fmt.Sprintf("Clone of %q", info.Title), "", "")
	if err != nil {
		return nil, err
	}
	logger.Info("cloned item", "item", itemID, "title", info.Title, "commit", commit.Short())
	return repo, nil
}
