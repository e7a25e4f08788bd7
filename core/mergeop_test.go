package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitmap-dev/gitmap/merge"
	"github.com/gitmap-dev/gitmap/object"
	"github.com/gitmap-dev/gitmap/webmap"
)

// seedBranches builds the common two-branch fixture: a root commit on
// main, then a feature branch forked from it.
func seedBranches(t *testing.T, ctx context.Context, repo *Repository) *object.Commit {
	t.Helper()
	addLayer(t, ctx, repo, "roads", "Roads")
	root, err := repo.Commit(ctx, "add roads", "", "")
	require.NoError(t, err)
	require.NoError(t, repo.CreateBranch(ctx, "feature", ""))
	return root
}

func TestMergeFastForwardAddition(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	addLayer(t, ctx, repo, "zones", "Zones")
	_, err := repo.Commit(ctx, "add zones", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	outcome, err := repo.Merge(ctx, "feature")
	require.NoError(t, err)
	require.NotNil(t, outcome.Commit)
	assert.Len(t, outcome.Commit.Parents, 2, "a merge commit has both heads as parents")

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	_, ok := index.Layer("zones")
	assert.True(t, ok)

	status, err := repo.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClean, status.State)
}

func TestMergeOnlyAdvancesCurrentBranch(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	addLayer(t, ctx, repo, "zones", "Zones")
	featureTip, err := repo.Commit(ctx, "add zones", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	outcome, err := repo.Merge(ctx, "feature")
	require.NoError(t, err)

	mainTip, err := repo.Branch(ctx, DefaultBranch)
	require.NoError(t, err)
	assert.Equal(t, outcome.Commit.ID, mainTip)

	tip, err := repo.Branch(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, featureTip.ID, tip, "the merged-from branch pointer stays put")
}

func TestMergeUpToDate(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	addLayer(t, ctx, repo, "parcels", "Parcels")
	_, err := repo.Commit(ctx, "add parcels", "", "")
	require.NoError(t, err)

	// feature points at an ancestor of main's tip.
	outcome, err := repo.Merge(ctx, "feature")
	require.NoError(t, err)
	assert.True(t, outcome.UpToDate)
	assert.Nil(t, outcome.Commit)
}

func TestMergeRequiresCleanState(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	addLayer(t, ctx, repo, "parcels", "Parcels")
	_, err := repo.Merge(ctx, "feature")
	assert.ErrorIs(t, err, ErrUncommittedChanges)
}

func TestMergeConflictFlow(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	setOpacity(t, ctx, repo, "roads", 0.8)
	theirsTip, err := repo.Commit(ctx, "fade roads", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	setOpacity(t, ctx, repo, "roads", 0.5)
	oursTip, err := repo.Commit(ctx, "dim roads", "", "")
	require.NoError(t, err)

	outcome, err := repo.Merge(ctx, "feature")
	require.NoError(t, err)
	require.Len(t, outcome.Conflicts, 1)
	assert.Equal(t, "roads", outcome.Conflicts[0].Key)

	status, err := repo.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateMerging, status.State)
	assert.Equal(t, []string{"roads"}, status.Conflicts)

	// Committing with unresolved conflicts is refused, as is starting
	// another merge or switching branches.
	_, err = repo.Commit(ctx, "finish", "", "")
	assert.ErrorIs(t, err, ErrUnresolvedConflicts)
	_, err = repo.Merge(ctx, "feature")
	assert.ErrorIs(t, err, ErrMergeInProgress)
	assert.ErrorIs(t, repo.Checkout(ctx, "feature", false), ErrMergeInProgress)

	require.NoError(t, repo.ResolveConflict(ctx, "roads", merge.ChooseTheirs, nil))

	commit, err := repo.Commit(ctx, "merge feature", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{oursTip.ID, theirsTip.ID}, commit.Parents)

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	layer, ok := index.Layer("roads")
	require.True(t, ok)
	assert.Equal(t, 0.8, layer.Extra["opacity"])

	status, err = repo.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClean, status.State)
}

func TestConflictsSurviveReopen(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	setOpacity(t, ctx, repo, "roads", 0.8)
	_, err := repo.Commit(ctx, "fade roads", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	setOpacity(t, ctx, repo, "roads", 0.5)
	_, err = repo.Commit(ctx, "dim roads", "", "")
	require.NoError(t, err)

	_, err = repo.Merge(ctx, "feature")
	require.NoError(t, err)

	// A second process opening the repository sees the same merge.
	reopened, err := Open(ctx, repo.Root())
	require.NoError(t, err)
	conflicts, err := reopened.Conflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "roads", conflicts[0].Key)

	require.NoError(t, reopened.ResolveConflict(ctx, "roads", merge.ChooseOurs, nil))
	_, err = reopened.Commit(ctx, "merge feature", "", "")
	require.NoError(t, err)
}

func TestResolveConflictCustomValue(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	setOpacity(t, ctx, repo, "roads", 0.8)
	_, err := repo.Commit(ctx, "fade roads", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	setOpacity(t, ctx, repo, "roads", 0.5)
	_, err = repo.Commit(ctx, "dim roads", "", "")
	require.NoError(t, err)

	_, err = repo.Merge(ctx, "feature")
	require.NoError(t, err)

	custom := &webmap.Layer{ID: "roads", Title: "Roads", Extra: map[string]any{"opacity": 0.65}}
	require.NoError(t, repo.ResolveConflict(ctx, "roads", "", custom))

	_, err = repo.Commit(ctx, "merge feature", "", "")
	require.NoError(t, err)

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	layer, ok := index.Layer("roads")
	require.True(t, ok)
	assert.Equal(t, 0.65, layer.Extra["opacity"])
}

func TestAbortMerge(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	setOpacity(t, ctx, repo, "roads", 0.8)
	_, err := repo.Commit(ctx, "fade roads", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	setOpacity(t, ctx, repo, "roads", 0.5)
	_, err = repo.Commit(ctx, "dim roads", "", "")
	require.NoError(t, err)

	_, err = repo.Merge(ctx, "feature")
	require.NoError(t, err)

	require.NoError(t, repo.AbortMerge(ctx))

	status, err := repo.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClean, status.State)

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	layer, ok := index.Layer("roads")
	require.True(t, ok)
	assert.Equal(t, 0.5, layer.Extra["opacity"], "abort restores ours")

	assert.ErrorIs(t, repo.AbortMerge(ctx), ErrNoMergeInProgress)
}

func TestMergeBase(t *testing.T) {
	repo, ctx := testRepo(t)
	root := seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	addLayer(t, ctx, repo, "zones", "Zones")
	featureTip, err := repo.Commit(ctx, "add zones", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	addLayer(t, ctx, repo, "parcels", "Parcels")
	mainTip, err := repo.Commit(ctx, "add parcels", "", "")
	require.NoError(t, err)

	base, err := repo.MergeBase(ctx, mainTip.ID, featureTip.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, base)

	ok, err := repo.IsAncestor(ctx, root.ID, mainTip.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IsAncestor(ctx, mainTip.ID, featureTip.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMergeBaseNoCommonAncestor(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	// Two unrelated root commits written straight to the object store.
	a, err := object.NewCommit("root a", "alice", "", nil, webmap.New())
	require.NoError(t, err)
	_, err = repo.PutCommit(ctx, a)
	require.NoError(t, err)

	doc := webmap.New()
	doc.Layers = append(doc.Layers, webmap.Layer{ID: "other", Title: "Other"})
	b, err := object.NewCommit("root b", "bob", "", nil, doc)
	require.NoError(t, err)
	_, err = repo.PutCommit(ctx, b)
	require.NoError(t, err)

	_, err = repo.MergeBase(ctx, a.ID, b.ID)
	assert.ErrorIs(t, err, ErrNoCommonAncestor)
}

func TestCherryPick(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	addLayer(t, ctx, repo, "zones", "Zones")
	picked, err := repo.Commit(ctx, "add zones", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	addLayer(t, ctx, repo, "parcels", "Parcels")
	mainTip, err := repo.Commit(ctx, "add parcels", "", "")
	require.NoError(t, err)

	outcome, err := repo.CherryPick(ctx, picked.ID)
	require.NoError(t, err)
	require.NotNil(t, outcome.Commit)
	assert.Equal(t, []string{mainTip.ID}, outcome.Commit.Parents, "cherry-pick keeps history linear")
	assert.Contains(t, outcome.Commit.Message, "cherry picked from commit")

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	for _, id := range []string{"roads", "parcels", "zones"} {
		_, ok := index.Layer(id)
		assert.True(t, ok, id)
	}
}

func TestRevert(t *testing.T) {
	repo, ctx := testRepo(t)
	addLayer(t, ctx, repo, "roads", "Roads")
	_, err := repo.Commit(ctx, "add roads", "", "")
	require.NoError(t, err)

	addLayer(t, ctx, repo, "parcels", "Parcels")
	target, err := repo.Commit(ctx, "add parcels", "", "")
	require.NoError(t, err)

	outcome, err := repo.Revert(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, outcome.Commit)
	assert.Equal(t, []string{target.ID}, outcome.Commit.Parents)
	assert.Contains(t, outcome.Commit.Message, "This reverts commit")

	index, err := repo.Index(ctx)
	require.NoError(t, err)
	_, ok := index.Layer("parcels")
	assert.False(t, ok, "the reverted addition is gone")
	_, ok = index.Layer("roads")
	assert.True(t, ok)
}

func TestCherryPickConflict(t *testing.T) {
	repo, ctx := testRepo(t)
	seedBranches(t, ctx, repo)

	require.NoError(t, repo.Checkout(ctx, "feature", false))
	setOpacity(t, ctx, repo, "roads", 0.8)
	picked, err := repo.Commit(ctx, "fade roads", "", "")
	require.NoError(t, err)

	require.NoError(t, repo.Checkout(ctx, DefaultBranch, false))
	setOpacity(t, ctx, repo, "roads", 0.5)
	mainTip, err := repo.Commit(ctx, "dim roads", "", "")
	require.NoError(t, err)

	outcome, err := repo.CherryPick(ctx, picked.ID)
	require.NoError(t, err)
	require.Len(t, outcome.Conflicts, 1)

	require.NoError(t, repo.ResolveConflict(ctx, "roads", merge.ChooseTheirs, nil))
	commit, err := repo.Commit(ctx, "pick fade", "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{mainTip.ID}, commit.Parents, "resolution keeps the single parent")
}
