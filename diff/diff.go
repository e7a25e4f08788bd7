// Package diff implements the structural comparison of two web map
// snapshots. Layers and tables are matched by identity, never by
// position, so reordering alone never shows up as a change.
package diff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/gitmap-dev/gitmap/webmap"
)

// ChangeType classifies a layer or table change.
type ChangeType string

const (
	Added    ChangeType = "added"
	Removed  ChangeType = "removed"
	Modified ChangeType = "modified"
)

// LayerChange describes a change to a single layer or table.
type LayerChange struct {
	// LayerID is the identity key of the changed layer.
	LayerID string
	// Title is the layer title, "Untitled" when absent.
	Title string
	// Type is the kind of change.
	Type ChangeType
	// Detail is the field-level breakdown of a modified layer as a
	// JSON Patch, excluding group children.
	Detail jsondiff.Patch
	// Children holds changes inside a group layer, reported against
	// the innermost layer.
	Children []LayerChange
}

// PropertyChange records the old and new value of a top-level document
// property.
type PropertyChange struct {
	Old any
	New any
}

// Result is the outcome of comparing two snapshots.
type Result struct {
	LayerChanges    []LayerChange
	TableChanges    []LayerChange
	PropertyChanges map[string]PropertyChange
}

// Empty reports whether the two snapshots were structurally identical.
func (r *Result) Empty() bool {
	return len(r.LayerChanges) == 0 && len(r.TableChanges) == 0 && len(r.PropertyChanges) == 0
}

// Compare diffs two snapshots. Layers present only in other are
// reported as added, present only in base as removed, and present in
// both with differing content as modified. Nil documents are treated
// as empty. The result ordering is deterministic: changes sort by
// identity key ascending.
func Compare(base, other *webmap.Document) (*Result, error) {
	if base == nil {
		base = &webmap.Document{}
	}
	if other == nil {
		other = &webmap.Document{}
	}
	layerChanges, err := compareLayers(base.Layers, other.Layers)
	if err != nil {
		return nil, err
	}
	tableChanges, err := compareLayers(base.Tables, other.Tables)
	if err != nil {
		return nil, err
	}
	return &Result{
		LayerChanges:    layerChanges,
		TableChanges:    tableChanges,
		PropertyChanges: compareProperties(base.Extra, other.Extra),
	}, nil
}

func compareLayers(base, other []webmap.Layer) ([]LayerChange, error) {
	baseIndex := indexLayers(base)
	otherIndex := indexLayers(other)

	var changes []LayerChange
	for id, otherLayer := range otherIndex {
		baseLayer, ok := baseIndex[id]
		if !ok {
			changes = append(changes, LayerChange{
				LayerID: id,
				Title:   layerTitle(otherLayer),
				Type:    Added,
			})
			continue
		}
		if webmap.LayerEqual(&baseLayer, &otherLayer) {
			continue
		}
		change, err := modifiedChange(baseLayer, otherLayer)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	for id, baseLayer := range baseIndex {
		if _, ok := otherIndex[id]; !ok {
			changes = append(changes, LayerChange{
				LayerID: id,
				Title:   layerTitle(baseLayer),
				Type:    Removed,
			})
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].LayerID < changes[j].LayerID
	})
	return changes, nil
}

// modifiedChange builds the change record for a layer present on both
// sides with differing content. Group children are compared with the
// same identity matching recursively; the field-level detail covers
// only the layer's own fields.
func modifiedChange(base, other webmap.Layer) (LayerChange, error) {
	children, err := compareLayers(base.Layers, other.Layers)
	if err != nil {
		return LayerChange{}, err
	}
	shallowBase := base
	shallowBase.Layers = nil
	shallowOther := other
	shallowOther.Layers = nil

	var detail jsondiff.Patch
	if !webmap.LayerEqual(&shallowBase, &shallowOther) {
		detail, err = jsondiff.Compare(shallowBase, shallowOther)
		if err != nil {
			return LayerChange{}, fmt.Errorf("diff layer %q: %w", other.Identity(), err)
		}
	}
	return LayerChange{
		LayerID:  other.Identity(),
		Title:    layerTitle(other),
		Type:     Modified,
		Detail:   detail,
		Children: children,
	}, nil
}

func compareProperties(base, other map[string]any) map[string]PropertyChange {
	changes := make(map[string]PropertyChange)
	for k, bv := range base {
		ov, ok := other[k]
		if !ok {
			changes[k] = PropertyChange{Old: bv}
			continue
		}
		if !webmap.ValueEqual(bv, ov) {
			changes[k] = PropertyChange{Old: bv, New: ov}
		}
	}
	for k, ov := range other {
		if _, ok := base[k]; !ok {
			changes[k] = PropertyChange{New: ov}
		}
	}
	return changes
}

func indexLayers(layers []webmap.Layer) map[string]webmap.Layer {
	index := make(map[string]webmap.Layer, len(layers))
	for _, l := range layers {
		if id := l.Identity(); id != "" {
			index[id] = l
		}
	}
	return index
}

func layerTitle(l webmap.Layer) string {
	if l.Title == "" {
		return "Untitled"
	}
	return l.Title
}

// Summary renders the result as a human readable report.
func (r *Result) Summary() string {
	if r.Empty() {
		return "No changes detected."
	}
	var lines []string
	lines = appendChangeLines(lines, r.LayerChanges, "layers")
	lines = appendChangeLines(lines, r.TableChanges, "tables")
	if len(r.PropertyChanges) > 0 {
		lines = append(lines, "Map properties changed:")
		keys := make([]string, 0, len(r.PropertyChanges))
		for k := range r.PropertyChanges {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  * %s", k))
		}
	}
	return strings.Join(lines, "\n")
}

func appendChangeLines(lines []string, changes []LayerChange, noun string) []string {
	groups := []struct {
		ct     ChangeType
		marker string
		label  string
	}{
		{Added, "+", "Added"},
		{Removed, "-", "Removed"},
		{Modified, "~", "Modified"},
	}
	for _, g := range groups {
		var matched []LayerChange
		for _, c := range changes {
			if c.Type == g.ct {
				matched = append(matched, c)
			}
		}
		if len(matched) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s (%d):", g.label, noun, len(matched)))
		for _, c := range matched {
			lines = append(lines, fmt.Sprintf("  %s %s (%s)", g.marker, c.Title, c.LayerID))
		}
	}
	return lines
}
