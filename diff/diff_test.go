package diff

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wI2L/jsondiff"

	"github.com/gitmap-dev/gitmap/webmap"
)

func doc(layers ...webmap.Layer) *webmap.Document {
	d := webmap.New()
	d.Layers = layers
	return d
}

func TestCompareIdentical(t *testing.T) {
	d := doc(webmap.Layer{ID: "roads", Title: "Roads"})
	result, err := Compare(d, d.Clone())
	require.NoError(t, err)
	assert.True(t, result.Empty())
	assert.Equal(t, "No changes detected.", result.Summary())
}

func TestCompareReorderOnly(t *testing.T) {
	a := doc(
		webmap.Layer{ID: "roads", Title: "Roads"},
		webmap.Layer{ID: "parcels", Title: "Parcels"},
	)
	b := doc(
		webmap.Layer{ID: "parcels", Title: "Parcels"},
		webmap.Layer{ID: "roads", Title: "Roads"},
	)
	result, err := Compare(a, b)
	require.NoError(t, err)
	assert.True(t, result.Empty(), "matching is by identity, reordering is not a change")
}

func TestCompareAddedRemoved(t *testing.T) {
	base := doc(webmap.Layer{ID: "roads", Title: "Roads"})
	other := doc(webmap.Layer{ID: "parcels", Title: "Parcels"})

	result, err := Compare(base, other)
	require.NoError(t, err)
	require.Len(t, result.LayerChanges, 2)

	assert.Equal(t, "parcels", result.LayerChanges[0].LayerID)
	assert.Equal(t, Added, result.LayerChanges[0].Type)
	assert.Equal(t, "roads", result.LayerChanges[1].LayerID)
	assert.Equal(t, Removed, result.LayerChanges[1].Type)
}

func TestCompareModifiedDetail(t *testing.T) {
	base := doc(webmap.Layer{ID: "roads", Title: "Roads", Extra: map[string]any{"opacity": 1.0}})
	other := doc(webmap.Layer{ID: "roads", Title: "Roads", Extra: map[string]any{"opacity": 0.5}})

	result, err := Compare(base, other)
	require.NoError(t, err)
	require.Len(t, result.LayerChanges, 1)

	change := result.LayerChanges[0]
	assert.Equal(t, Modified, change.Type)
	assert.NotEmpty(t, change.Detail, "a modified layer carries a field-level breakdown")
}

func TestCompareGroupChildren(t *testing.T) {
	base := doc(webmap.Layer{ID: "districts", Title: "Districts", Layers: []webmap.Layer{
		{ID: "north", Title: "North"},
	}})
	other := doc(webmap.Layer{ID: "districts", Title: "Districts", Layers: []webmap.Layer{
		{ID: "north", Title: "North"},
		{ID: "south", Title: "South"},
	}})

	result, err := Compare(base, other)
	require.NoError(t, err)
	require.Len(t, result.LayerChanges, 1)

	change := result.LayerChanges[0]
	assert.Equal(t, Modified, change.Type)
	require.Len(t, change.Children, 1)
	assert.Equal(t, "south", change.Children[0].LayerID)
	assert.Equal(t, Added, change.Children[0].Type)
	assert.Empty(t, change.Detail, "the group's own fields did not change")
}

func TestCompareTables(t *testing.T) {
	base := webmap.New()
	other := webmap.New()
	other.Tables = []webmap.Layer{{ID: "inspections", Title: "Inspections"}}

	result, err := Compare(base, other)
	require.NoError(t, err)
	require.Len(t, result.TableChanges, 1)
	assert.Equal(t, Added, result.TableChanges[0].Type)
	assert.Empty(t, result.LayerChanges)
}

func TestCompareProperties(t *testing.T) {
	base := webmap.New()
	other := base.Clone()
	other.Extra["version"] = "2.30"
	other.Extra["newProp"] = true
	delete(other.Extra, "authoringApp")

	result, err := Compare(base, other)
	require.NoError(t, err)

	require.Contains(t, result.PropertyChanges, "version")
	assert.Equal(t, "2.28", result.PropertyChanges["version"].Old)
	assert.Equal(t, "2.30", result.PropertyChanges["version"].New)

	require.Contains(t, result.PropertyChanges, "newProp")
	assert.Nil(t, result.PropertyChanges["newProp"].Old)

	require.Contains(t, result.PropertyChanges, "authoringApp")
	assert.Nil(t, result.PropertyChanges["authoringApp"].New)
}

func TestCompareNilDocuments(t *testing.T) {
	result, err := Compare(nil, doc(webmap.Layer{ID: "roads", Title: "Roads"}))
	require.NoError(t, err)
	require.Len(t, result.LayerChanges, 1)
	assert.Equal(t, Added, result.LayerChanges[0].Type)
}

func TestCompareDeterministicOrder(t *testing.T) {
	base := webmap.New()
	other := doc(
		webmap.Layer{ID: "c", Title: "C"},
		webmap.Layer{ID: "a", Title: "A"},
		webmap.Layer{ID: "b", Title: "B"},
	)
	for i := 0; i < 10; i++ {
		result, err := Compare(base, other)
		require.NoError(t, err)
		require.Len(t, result.LayerChanges, 3)
		assert.Equal(t, "a", result.LayerChanges[0].LayerID)
		assert.Equal(t, "b", result.LayerChanges[1].LayerID)
		assert.Equal(t, "c", result.LayerChanges[2].LayerID)
	}
}

// TestCompareRoundTrip checks that the reported change set is complete:
// replaying it against the base snapshot reproduces the other one,
// with modified layers rebuilt from their field-level patch alone.
func TestCompareRoundTrip(t *testing.T) {
	base := doc(
		webmap.Layer{ID: "roads", Title: "Roads", Extra: map[string]any{
			"opacity":    1.0,
			"visibility": true,
			"popupInfo":  map[string]any{"title": "Road"},
		}},
		webmap.Layer{ID: "old", Title: "Old"},
	)
	other := doc(
		webmap.Layer{ID: "roads", Title: "Streets", Extra: map[string]any{
			"opacity":   0.25,
			"popupInfo": map[string]any{"title": "Street"},
		}},
		webmap.Layer{ID: "zones", Title: "Zones"},
	)
	other.Extra["version"] = "2.30"

	result, err := Compare(base, other)
	require.NoError(t, err)

	rebuilt := base.Clone()
	for _, change := range result.LayerChanges {
		switch change.Type {
		case Removed:
			rebuilt.Layers = dropLayer(rebuilt.Layers, change.LayerID)
		case Added:
			added, ok := other.Layer(change.LayerID)
			require.True(t, ok)
			rebuilt.Layers = append(rebuilt.Layers, *added)
		case Modified:
			current, ok := rebuilt.Layer(change.LayerID)
			require.True(t, ok)
			*current = patchLayer(t, *current, change.Detail)
		}
	}
	for key, change := range result.PropertyChanges {
		if change.New == nil {
			delete(rebuilt.Extra, key)
		} else {
			rebuilt.Extra[key] = change.New
		}
	}

	assert.True(t, webmap.Equal(rebuilt, other),
		"replaying the change set against the base reproduces the other snapshot")
}

func dropLayer(layers []webmap.Layer, identity string) []webmap.Layer {
	out := layers[:0]
	for _, l := range layers {
		if l.Identity() != identity {
			out = append(out, l)
		}
	}
	return out
}

// patchLayer applies a modified layer's field-level patch through the
// layer's JSON form.
func patchLayer(t *testing.T, l webmap.Layer, patch jsondiff.Patch) webmap.Layer {
	t.Helper()
	data, err := json.Marshal(l)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	for _, op := range patch {
		tokens := pointerTokens(op.Path)
		require.NotEmpty(t, tokens, "operation carries a path")
		target := m
		for _, tok := range tokens[:len(tokens)-1] {
			next, ok := target[tok].(map[string]any)
			require.True(t, ok, "path %s traverses objects", op.Path)
			target = next
		}
		last := tokens[len(tokens)-1]
		switch op.Type {
		case jsondiff.OperationAdd, jsondiff.OperationReplace:
			target[last] = op.Value
		case jsondiff.OperationRemove:
			delete(target, last)
		default:
			t.Fatalf("unexpected operation %q at %s", op.Type, op.Path)
		}
	}

	data, err = json.Marshal(m)
	require.NoError(t, err)
	var out webmap.Layer
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func pointerTokens(path string) []string {
	tokens := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, tok := range tokens {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tokens[i] = strings.ReplaceAll(tok, "~0", "~")
	}
	return tokens
}

func TestSummary(t *testing.T) {
	base := doc(
		webmap.Layer{ID: "roads", Title: "Roads"},
		webmap.Layer{ID: "parcels", Title: "Parcels", Extra: map[string]any{"opacity": 1.0}},
	)
	other := doc(
		webmap.Layer{ID: "parcels", Title: "Parcels", Extra: map[string]any{"opacity": 0.5}},
		webmap.Layer{ID: "zones", Title: "Zones"},
	)
	result, err := Compare(base, other)
	require.NoError(t, err)

	summary := result.Summary()
	assert.Contains(t, summary, "+ Zones (zones)")
	assert.Contains(t, summary, "- Roads (roads)")
	assert.Contains(t, summary, "~ Parcels (parcels)")
}
