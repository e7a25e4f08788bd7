// Package merge implements the three-way merge of two web map
// snapshots against their common ancestor. Each layer and table is an
// atomic unit for conflict detection; top-level document properties
// merge per key with the same rules.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gitmap-dev/gitmap/webmap"
)

// Kind tells what a conflict is about.
type Kind string

const (
	KindLayer    Kind = "layer"
	KindTable    Kind = "table"
	KindProperty Kind = "property"
)

// Resolution choices for a conflict.
const (
	ChooseOurs   = "ours"
	ChooseTheirs = "theirs"
	ChooseBase   = "base"
)

// Conflict is a layer, table or property that both sides changed in
// incompatible ways. For layer and table conflicts the candidate
// values are *webmap.Layer; for property conflicts they are plain JSON
// values. A nil candidate means that side removed the entry.
type Conflict struct {
	Kind   Kind
	Key    string
	Title  string
	Ours   any
	Theirs any
	Base   any
}

// Resolve returns the candidate value selected by choice.
func (c *Conflict) Resolve(choice string) (any, error) {
	switch choice {
	case ChooseOurs:
		return c.Ours, nil
	case ChooseTheirs:
		return c.Theirs, nil
	case ChooseBase:
		if c.Base == nil {
			return nil, fmt.Errorf("conflict %q has no base version", c.Key)
		}
		return c.Base, nil
	default:
		return nil, fmt.Errorf("invalid resolution choice %q", choice)
	}
}

// Result is the outcome of a merge. Merged always holds a best-effort
// snapshot: for conflicted entries it carries ours' version (or omits
// the entry when ours removed it) until the conflict is resolved.
type Result struct {
	Merged    *webmap.Document
	Conflicts []Conflict

	// Bookkeeping of clean layer/table decisions, by identity key.
	Added    []string
	Removed  []string
	Modified []string
}

// Resolved reports whether every conflict has been resolved.
func (r *Result) Resolved() bool {
	return len(r.Conflicts) == 0
}

// Conflict returns the unresolved conflict with the given key.
func (r *Result) Conflict(key string) (*Conflict, bool) {
	for i := range r.Conflicts {
		if r.Conflicts[i].Key == key {
			return &r.Conflicts[i], true
		}
	}
	return nil, false
}

// Merge merges ours and theirs against their common ancestor base.
// base may be nil when no ancestor exists (for example both sides are
// root commits); every double-sided difference is then a conflict.
//
// The rules per identity: if only one side changed it relative to
// base, that side wins (including removals). If both sides made the
// same change, either wins. Anything else is a conflict, including
// both sides adding the same identity with different content.
func Merge(base, ours, theirs *webmap.Document) *Result {
	if ours == nil {
		ours = &webmap.Document{}
	}
	if theirs == nil {
		theirs = &webmap.Document{}
	}
	result := &Result{Merged: ours.Clone()}

	var baseLayers, baseTables []webmap.Layer
	baseExtra := map[string]any{}
	if base != nil {
		baseLayers = base.Layers
		baseTables = base.Tables
		baseExtra = base.Extra
	}

	result.Merged.Layers = mergeLayers(result, KindLayer, baseLayers, ours.Layers, theirs.Layers)
	result.Merged.Tables = mergeLayers(result, KindTable, baseTables, ours.Tables, theirs.Tables)
	result.Merged.Extra = mergeProperties(result, baseExtra, ours.Extra, theirs.Extra)
	return result
}

// mergeLayers merges one layer (or table) sequence. The merged order
// is ours' order followed by theirs-only additions in their order,
// which keeps the outcome deterministic.
func mergeLayers(result *Result, kind Kind, base, ours, theirs []webmap.Layer) []webmap.Layer {
	baseIndex := indexLayers(base)
	oursIndex := indexLayers(ours)
	theirsIndex := indexLayers(theirs)

	merged := make([]webmap.Layer, 0, len(ours)+len(theirs))
	seen := make(map[string]bool)

	keep := func(l *webmap.Layer) {
		if l != nil {
			merged = append(merged, *l)
		}
	}

	for _, ourLayer := range ours {
		id := ourLayer.Identity()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keep(mergeOne(result, kind, id, layerTitle(ourLayer), baseIndex[id], oursIndex[id], theirsIndex[id]))
	}
	for _, theirLayer := range theirs {
		id := theirLayer.Identity()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		keep(mergeOne(result, kind, id, layerTitle(theirLayer), baseIndex[id], oursIndex[id], theirsIndex[id]))
	}
	// Identities only the base knows were removed on both sides.
	return merged
}

// mergeOne decides the merged version of a single identity. The
// returned layer is what goes into the merged snapshot; nil drops the
// entry.
func mergeOne(result *Result, kind Kind, id, title string, base, ours, theirs *webmap.Layer) *webmap.Layer {
	switch {
	case webmap.LayerEqual(ours, theirs):
		// Identical on both sides, including both removed.
		return ours
	case webmap.LayerEqual(ours, base):
		// Only theirs changed it.
		switch {
		case theirs == nil:
			result.Removed = append(result.Removed, id)
		case base == nil:
			result.Added = append(result.Added, id)
		default:
			result.Modified = append(result.Modified, id)
		}
		return theirs
	case webmap.LayerEqual(theirs, base):
		// Only ours changed it.
		switch {
		case ours == nil:
			result.Removed = append(result.Removed, id)
		case base == nil:
			result.Added = append(result.Added, id)
		default:
			result.Modified = append(result.Modified, id)
		}
		return ours
	default:
		// Both changed it, differently. Keep ours in the best-effort
		// snapshot; the caller resolves.
		result.Conflicts = append(result.Conflicts, Conflict{
			Kind:   kind,
			Key:    id,
			Title:  title,
			Ours:   layerValue(ours),
			Theirs: layerValue(theirs),
			Base:   layerValue(base),
		})
		return ours
	}
}

func mergeProperties(result *Result, base, ours, theirs map[string]any) map[string]any {
	merged := make(map[string]any)
	keys := make(map[string]bool)
	for k := range base {
		keys[k] = true
	}
	for k := range ours {
		keys[k] = true
	}
	for k := range theirs {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		bv, inBase := base[k]
		ov, inOurs := ours[k]
		tv, inTheirs := theirs[k]

		oursSame := inOurs == inBase && webmap.ValueEqual(ov, bv)
		theirsSame := inTheirs == inBase && webmap.ValueEqual(tv, bv)
		bothSame := inOurs == inTheirs && webmap.ValueEqual(ov, tv)

		switch {
		case bothSame:
			if inOurs {
				merged[k] = ov
			}
		case oursSame:
			if inTheirs {
				merged[k] = tv
			}
		case theirsSame:
			if inOurs {
				merged[k] = ov
			}
		default:
			result.Conflicts = append(result.Conflicts, Conflict{
				Kind:   KindProperty,
				Key:    k,
				Ours:   valueOrNil(ov, inOurs),
				Theirs: valueOrNil(tv, inTheirs),
				Base:   valueOrNil(bv, inBase),
			})
			if inOurs {
				merged[k] = ov
			}
		}
	}
	return merged
}

// Apply installs a resolved value for the conflict with the given key
// and removes the conflict from the result. For layer and table
// conflicts value must be a *webmap.Layer (or nil to delete the
// layer); for property conflicts any JSON value works, with nil
// deleting the property.
func (r *Result) Apply(key string, value any) error {
	conflict, ok := r.Conflict(key)
	if !ok {
		return fmt.Errorf("no unresolved conflict for %q", key)
	}
	switch conflict.Kind {
	case KindLayer:
		layer, err := asLayer(value)
		if err != nil {
			return err
		}
		r.Merged.Layers = replaceLayer(r.Merged.Layers, key, layer)
	case KindTable:
		layer, err := asLayer(value)
		if err != nil {
			return err
		}
		r.Merged.Tables = replaceLayer(r.Merged.Tables, key, layer)
	case KindProperty:
		if r.Merged.Extra == nil {
			r.Merged.Extra = make(map[string]any)
		}
		if value == nil {
			delete(r.Merged.Extra, key)
		} else {
			r.Merged.Extra[key] = value
		}
	}
	remaining := r.Conflicts[:0]
	for _, c := range r.Conflicts {
		if c.Key != key {
			remaining = append(remaining, c)
		}
	}
	r.Conflicts = remaining
	return nil
}

func asLayer(value any) (*webmap.Layer, error) {
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

func replaceLayer(layers []webmap.Layer, id string, layer *webmap.Layer) []webmap.Layer {
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

func indexLayers(layers []webmap.Layer) map[string]*webmap.Layer {
	index := make(map[string]*webmap.Layer, len(layers))
	for i := range layers {
		if id := layers[i].Identity(); id != "" {
			index[id] = &layers[i]
		}
	}
	return index
}

func layerValue(l *webmap.Layer) any {
	if l == nil {
		return nil
	}
	return l
}

func layerTitle(l webmap.Layer) string {
	if l.Title == "" {
		return "Untitled"
	}
	return l.Title
}

func valueOrNil(v any, present bool) any {
	if !present {
		return nil
	}
	return v
}

// Summary renders the merge result as a human readable report.
func (r *Result) Summary() string {
	var lines []string
	if r.Resolved() {
		lines = append(lines, "Merge completed successfully.")
	} else {
		lines = append(lines, fmt.Sprintf("Merge has %d conflict(s).", len(r.Conflicts)))
	}
	groups := []struct {
		label string
		ids   []string
	}{
		{"Added", r.Added},
		{"Removed", r.Removed},
		{"Modified", r.Modified},
	}
	markers := map[string]string{"Added": "+", "Removed": "-", "Modified": "~"}
	for _, g := range groups {
		if len(g.ids) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s layers: %d", g.label, len(g.ids)))
		for _, id := range g.ids {
			lines = append(lines, fmt.Sprintf("  %s %s", markers[g.label], id))
		}
	}
	if len(r.Conflicts) > 0 {
		lines = append(lines, "Conflicts:")
		for _, c := range r.Conflicts {
			name := c.Title
			if name == "" {
				name = string(c.Kind)
			}
			lines = append(lines, fmt.Sprintf("  ! %s (%s)", name, c.Key))
		}
	}
	return strings.Join(lines, "\n")
}
