// Package webmap models the web map JSON document that the version
// control engine operates on. The document is a typed tree of layers
// and tables with an opaque extras bucket so that vendor-specific
// fields survive a parse/serialize round trip untouched.
package webmap

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

const (
	layersKey = "operationalLayers"
	tablesKey = "tables"
)

// Document is the full JSON state of a web map. Layers and Tables hold
// the operational layer and table sequences; every other top-level
// property lives in Extra and is preserved verbatim.
type Document struct {
	Layers []Layer
	Tables []Layer
	Extra  map[string]any
}

// Layer is a single operational layer or table. A group layer carries
// its child layers in Layers. Fields the engine does not understand
// are kept in Extra.
//
// ID is kept as the raw JSON value because portals emit both string
// and numeric layer ids.
type Layer struct {
	ID     any
	Title  string
	Layers []Layer
	Extra  map[string]any
}

// New returns an empty web map document.
func New() *Document {
	return &Document{
		Layers: []Layer{},
		Tables: []Layer{},
		Extra: map[string]any{
			"baseMap": map[string]any{
				"baseMapLayers": []any{},
				"title":         "Basemap",
			},
			"spatialReference": map[string]any{
				"wkid": float64(102100),
			},
			"version":             "2.28",
			"authoringApp":        "GitMap",
			"authoringAppVersion": "0.1.0",
		},
	}
}

// Parse decodes a web map document from JSON.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse web map: %w", err)
	}
	return &doc, nil
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*d = documentFromMap(m)
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.asMap())
}

func documentFromMap(m map[string]any) Document {
	doc := Document{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case layersKey:
			doc.Layers = layersFromValue(v)
		case tablesKey:
			doc.Tables = layersFromValue(v)
		default:
			doc.Extra[k] = v
		}
	}
	return doc
}

func (d Document) asMap() map[string]any {
	m := make(map[string]any, len(d.Extra)+2)
	for k, v := range d.Extra {
		m[k] = v
	}
	if d.Layers != nil {
		layers := make([]any, len(d.Layers))
		for i, l := range d.Layers {
			layers[i] = l.asMap()
		}
		m[layersKey] = layers
	}
	if d.Tables != nil {
		tables := make([]any, len(d.Tables))
		for i, l := range d.Tables {
			tables[i] = l.asMap()
		}
		m[tablesKey] = tables
	}
	return m
}

func layersFromValue(v any) []Layer {
	arr, ok := v.([]any)
	if !ok {
		return []Layer{}
	}
	layers := make([]Layer, 0, len(arr))
	for _, e := range arr {
		if em, ok := e.(map[string]any); ok {
			layers = append(layers, layerFromMap(em))
		}
	}
	return layers
}

func layerFromMap(m map[string]any) Layer {
	l := Layer{Extra: make(map[string]any)}
	for k, v := range m {
		switch k {
		case "id":
			l.ID = v
		case "title":
			if s, ok := v.(string); ok {
				l.Title = s
			} else {
				l.Extra[k] = v
			}
		case "layers":
			if arr, ok := v.([]any); ok {
				l.Layers = layersFromValue(arr)
			} else {
				l.Extra[k] = v
			}
		default:
			l.Extra[k] = v
		}
	}
	return l
}

func (l Layer) asMap() map[string]any {
	m := make(map[string]any, len(l.Extra)+3)
	for k, v := range l.Extra {
		m[k] = v
	}
	if l.ID != nil {
		m["id"] = l.ID
	}
	if l.Title != "" {
		m["title"] = l.Title
	}
	if l.Layers != nil {
		children := make([]any, len(l.Layers))
		for i, c := range l.Layers {
			children[i] = c.asMap()
		}
		m["layers"] = children
	}
	return m
}

func (l Layer) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.asMap())
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*l = layerFromMap(m)
	return nil
}

// Identity returns the key used to match this layer across snapshots:
// the id when present, otherwise the title. Matching is by identity,
// never by position.
func (l Layer) Identity() string {
	if s := identityString(l.ID); s != "" {
		return s
	}
	return l.Title
}

// IsGroup reports whether the layer is a group layer with children.
func (l Layer) IsGroup() bool {
	return len(l.Layers) > 0
}

func identityString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// Layer returns the layer with the given identity, searching group
// layers recursively.
func (d *Document) Layer(identity string) (*Layer, bool) {
	return findLayer(d.Layers, identity)
}

// Table returns the table with the given identity.
func (d *Document) Table(identity string) (*Layer, bool) {
	return findLayer(d.Tables, identity)
}

func findLayer(layers []Layer, identity string) (*Layer, bool) {
	for i := range layers {
		if layers[i].Identity() == identity {
			return &layers[i], true
		}
		if found, ok := findLayer(layers[i].Layers, identity); ok {
			return found, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the document via a JSON round trip, so
// the copy shares no structure with the original.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	data, err := json.Marshal(d)
	if err != nil {
		// The document came from JSON, so it must marshal.
		panic(fmt.Sprintf("webmap: clone: %v", err))
	}
	clone, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("webmap: clone: %v", err))
	}
	return clone
}

// Equal reports deep structural equality of two documents. Map keys
// compare order-independently; sequences compare order-sensitively.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return normalizedEqual(a, b)
}

// LayerEqual reports deep structural equality of two layers. Nil
// stands for an absent layer and only equals nil.
func LayerEqual(a, b *Layer) bool {
	if a == nil || b == nil {
		return a == b
	}
	return normalizedEqual(a, b)
}

// normalizedEqual compares two values through their JSON form, which
// collapses Go-side representation differences (typed tree vs. plain
// maps) into a single shape.
func normalizedEqual(a, b any) bool {
	da, err := json.Marshal(a)
	if err != nil {
		return false
	}
	db, err := json.Marshal(b)
	if err != nil {
		return false
	}
	var ta, tb any
	if err := json.Unmarshal(da, &ta); err != nil {
		return false
	}
	if err := json.Unmarshal(db, &tb); err != nil {
		return false
	}
	return reflect.DeepEqual(ta, tb)
}

// ValueEqual reports deep equality of two arbitrary JSON values.
func ValueEqual(a, b any) bool {
	return normalizedEqual(a, b)
}
