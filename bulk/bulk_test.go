package bulk

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitmap-dev/gitmap/core"
	"github.com/gitmap-dev/gitmap/remote"
	"github.com/gitmap-dev/gitmap/webmap"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `portal: https://portal.example.com
user_name: alice
entries:
  - item_id: abc
    dir: maps/city
`)
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.com", m.Portal)
	require.Len(t, m.Entries, 1)
	assert.Equal(t, "abc", m.Entries[0].ItemID)
	assert.Equal(t, "maps/city", m.Entries[0].Dir)
}

func TestLoadRejectsMissingPortal(t *testing.T) {
	path := writeManifest(t, "entries:\n  - item_id: abc\n    dir: x\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

// stubPortal serves canned documents without a network.
type stubPortal struct {
	docs map[string]string
}

func (s *stubPortal) FetchItem(ctx context.Context, itemID string) (*remote.ItemInfo, error) {
	if _, ok := s.docs[itemID]; !ok {
		return nil, remote.ErrItemNotFound
	}
	return &remote.ItemInfo{ID: itemID, Title: "Map " + itemID, Owner: "alice"}, nil
}

func (s *stubPortal) FetchDocument(ctx context.Context, itemID string) (*webmap.Document, error) {
	doc, ok := s.docs[itemID]
	if !ok {
		return nil, remote.ErrItemNotFound
	}
	return webmap.Parse([]byte(doc))
}

func (s *stubPortal) WriteDocument(ctx context.Context, itemID string, doc *webmap.Document, info remote.ItemInfo) (string, error) {
	return "", errors.New("read only")
}

func (s *stubPortal) SearchDocuments(ctx context.Context, query string) ([]remote.ItemInfo, error) {
	var items []remote.ItemInfo
	for id := range s.docs {
		items = append(items, remote.ItemInfo{ID: id, Title: "Map " + id})
	}
	return items, nil
}

const stubDoc = `{"operationalLayers": [{"id": "roads", "title": "Roads"}], "baseMap": {"title": "Topo"}}`

func TestRunClonesEntries(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "city")
	portal := &stubPortal{docs: map[string]string{"abc": stubDoc}}

	m := &Manifest{
		Portal:   "https://portal.example.com",
		UserName: "alice",
		Entries:  []Entry{{ItemID: "abc", Dir: dir, Project: "city-map"}},
	}
	results, err := Run(ctx, m, portal)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	repo, err := core.Open(ctx, dir)
	require.NoError(t, err)
	cfg, err := repo.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "city-map", cfg.ProjectName)
	assert.Equal(t, "abc", cfg.Remote.ItemID)
	assert.Equal(t, "alice", cfg.UserName)
}

func TestRunQueryEntry(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	portal := &stubPortal{docs: map[string]string{"a1": stubDoc, "a2": stubDoc}}

	m := &Manifest{
		Portal:  "https://portal.example.com",
		Entries: []Entry{{Query: "owner:alice", Dir: base}},
	}
	results, err := Run(ctx, m, portal)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, filepath.Join(base, r.ItemID), r.Dir, "multiple matches clone into per-item directories")
		_, err := core.Open(ctx, r.Dir)
		assert.NoError(t, err)
	}
}

func TestRunCollectsFailures(t *testing.T) {
	ctx := context.Background()
	portal := &stubPortal{docs: map[string]string{"good": stubDoc}}

	m := &Manifest{
		Portal: "https://portal.example.com",
		Entries: []Entry{
			{ItemID: "missing", Dir: filepath.Join(t.TempDir(), "a")},
			{ItemID: "good", Dir: filepath.Join(t.TempDir(), "b")},
		},
	}
	results, err := Run(ctx, m, portal)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, remote.ErrItemNotFound)
	assert.NoError(t, results[1].Err, "one bad item does not sink the batch")
}

func TestRunEntryWithoutTarget(t *testing.T) {
	ctx := context.Background()
	m := &Manifest{
		Portal:  "https://portal.example.com",
		Entries: []Entry{{Dir: "somewhere"}},
	}
	results, err := Run(ctx, m, &stubPortal{docs: map[string]string{}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
