package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitmap-dev/gitmap/webmap"
)

func TestCanonicalStable(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"y": 2, "x": 3}}
	b := map[string]any{"a": map[string]any{"x": 3, "y": 2}, "b": 1}

	da, err := Canonical(a)
	require.NoError(t, err)
	db, err := Canonical(b)
	require.NoError(t, err)
	assert.Equal(t, da, db, "key order must not change the encoding")
}

func TestCanonicalLowersStructs(t *testing.T) {
	doc := webmap.New()
	asStruct, err := Canonical(doc)
	require.NoError(t, err)
	asClone, err := Canonical(doc.Clone())
	require.NoError(t, err)
	assert.Equal(t, asStruct, asClone)
}

func TestSum(t *testing.T) {
	h := Sum([]byte("hello"))
	assert.Len(t, h.String(), 64)
	assert.True(t, h.Equal(Sum([]byte("hello"))))
	assert.False(t, h.Equal(Sum([]byte("world"))))
}

func TestNewCommitID(t *testing.T) {
	snapshot := webmap.New()
	commit, err := NewCommit("initial", "alice", "alice@example.com", nil, snapshot)
	require.NoError(t, err)

	require.Len(t, commit.ID, 64)
	recomputed, err := commit.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, commit.ID, recomputed, "id recomputes to itself")
}

func TestCommitIDIgnoresBranchHint(t *testing.T) {
	commit, err := NewCommit("work", "bob", "", nil, webmap.New())
	require.NoError(t, err)

	commit.Branch = "feature"
	relabelled, err := commit.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, commit.ID, relabelled)
}

func TestCommitIDCoversContent(t *testing.T) {
	base, err := NewCommit("msg", "alice", "", nil, webmap.New())
	require.NoError(t, err)

	changed := *base
	changed.Message = "other"
	id, err := changed.ComputeID()
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, id)

	changed = *base
	changed.Parents = []string{"abcd"}
	id, err = changed.ComputeID()
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, id)

	changed = *base
	changed.Timestamp = base.Timestamp.Add(time.Second)
	id, err = changed.ComputeID()
	require.NoError(t, err)
	assert.NotEqual(t, base.ID, id)
}

func TestEncodeDecode(t *testing.T) {
	snapshot := webmap.New()
	snapshot.Layers = append(snapshot.Layers, webmap.Layer{ID: "roads", Title: "Roads"})
	commit, err := NewCommit("add roads", "alice", "alice@example.com", []string{"0abc"}, snapshot)
	require.NoError(t, err)

	data, err := commit.Encode()
	require.NoError(t, err)

	decoded, err := DecodeCommit(data)
	require.NoError(t, err)
	assert.Equal(t, commit.ID, decoded.ID)
	assert.Equal(t, commit.Parents, decoded.Parents)
	assert.Equal(t, commit.Timestamp, decoded.Timestamp)
	assert.True(t, webmap.Equal(commit.Snapshot, decoded.Snapshot))

	recomputed, err := decoded.ComputeID()
	require.NoError(t, err)
	assert.Equal(t, commit.ID, recomputed, "the id survives a storage round trip")
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "0123456789ab", ShortID("0123456789abcdef0123"))
	assert.Equal(t, "abc", ShortID("abc"))
}
