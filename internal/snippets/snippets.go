// Package snippets parses snippet configuration files and resolves them into
// a flat, ordered list of enabled snippets.
//
// Two payload shapes are accepted. The legacy flat shape maps abbreviations
// directly to replacement text:
//
//	{".brb": "be right back"}
//
// The hierarchical shape maps category names to categories, each with an
// enabled flag, an optional window filter, direct snippets and nested
// categories:
//
//	{"Work": {
//	    "enabled": true,
//	    "window_filter": {"class": "OpusApp", "match_mode": "exact"},
//	    "snippets": {".sig": {"text": "Regards", "enabled": true}},
//	    "categories": {"Mail": {"snippets": {".ty": "thank you"}}}
//	}}
//
// Inheritance is resolved once, at parse time. Matching never walks the tree.
package snippets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"snipd/internal/focus"
)

// Format identifies the encoding of a snippet payload.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrNotObject is returned when the top-level value is not an object.
var ErrNotObject = errors.New("snippets: top-level value must be an object")

// FormatFromPath picks the format from a file extension, defaulting to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Snippet is one abbreviation as written in a category.
type Snippet struct {
	Abbreviation string
	Text         string
	Enabled      *bool
	Filter       *focus.Filter
}

// Category is a node of the snippet tree.
type Category struct {
	Name       string
	Enabled    *bool
	Filter     *focus.Filter
	Snippets   []Snippet
	Categories []*Category
}

// Document is a parsed snippet payload.
type Document struct {
	// Legacy is set when the payload used the flat abbreviation→text shape.
	Legacy     bool
	Categories []*Category
	// Warnings collects entries that were skipped during parsing.
	Warnings []string
}

// Resolved is a snippet with inheritance applied.
type Resolved struct {
	Abbreviation string
	Text         string
	Filter       *focus.Filter
	// Path is the slash-joined category path, empty for legacy payloads.
	Path string
}

// Parse decodes a payload in the given format into a Document.
func Parse(data []byte, format Format) (*Document, error) {
	root, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return build(root)
}

// Load reads and parses a snippet file, choosing the format by extension.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("snippets: read %s: %w", path, err)
	}
	doc, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("snippets: %s: %w", path, err)
	}
	return doc, nil
}

func decode(data []byte, format Format) (*node, error) {
	var (
		root *node
		err  error
	)
	switch format {
	case FormatYAML:
		root, err = decodeYAML(data)
	case FormatJSON, "":
		root, err = decodeJSON(data)
	default:
		return nil, fmt.Errorf("snippets: unknown format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("snippets: decode %s: %w", format, err)
	}
	if root.kind != kindObject {
		return nil, ErrNotObject
	}
	return root, nil
}

func build(root *node) (*Document, error) {
	doc := &Document{}

	if isFlat(root) {
		doc.Legacy = true
		cat := &Category{}
		for _, abbr := range root.keys {
			cat.Snippets = append(cat.Snippets, Snippet{
				Abbreviation: abbr,
				Text:         root.fields[abbr].text,
			})
		}
		doc.Categories = []*Category{cat}
		return doc, nil
	}

	for _, name := range root.keys {
		if cat := doc.category(name, root.fields[name], name); cat != nil {
			doc.Categories = append(doc.Categories, cat)
		}
	}
	return doc, nil
}

// isFlat reports whether the payload is a legacy abbreviation→text map.
func isFlat(root *node) bool {
	if len(root.keys) == 0 {
		return false
	}
	for _, k := range root.keys {
		if root.fields[k].kind != kindString {
			return false
		}
	}
	return true
}

var categoryKeys = map[string]bool{
	"enabled":       true,
	"window_filter": true,
	"snippets":      true,
	"categories":    true,
}

func (d *Document) warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

func (d *Document) category(name string, n *node, path string) *Category {
	if n.kind != kindObject {
		d.warn("category %q: expected an object, skipped", path)
		return nil
	}

	cat := &Category{Name: name}
	cat.Enabled = d.flag(n, path)
	cat.Filter = d.filter(n, path)

	if block, ok := n.get("snippets"); ok {
		if block.kind == kindObject {
			for _, abbr := range block.keys {
				if s, ok := d.snippet(abbr, block.fields[abbr], path); ok {
					cat.Snippets = append(cat.Snippets, s)
				}
			}
		} else if block.kind != kindNull {
			d.warn("category %q: snippets must be an object, ignored", path)
		}
	} else {
		// Older files list snippets directly in the category body.
		for _, abbr := range n.keys {
			if categoryKeys[abbr] {
				continue
			}
			if s, ok := d.snippet(abbr, n.fields[abbr], path); ok {
				cat.Snippets = append(cat.Snippets, s)
			}
		}
	}

	if block, ok := n.get("categories"); ok {
		if block.kind == kindObject {
			for _, sub := range block.keys {
				if c := d.category(sub, block.fields[sub], path+"/"+sub); c != nil {
					cat.Categories = append(cat.Categories, c)
				}
			}
		} else if block.kind != kindNull {
			d.warn("category %q: categories must be an object, ignored", path)
		}
	}
	return cat
}

func (d *Document) snippet(abbr string, n *node, path string) (Snippet, bool) {
	s := Snippet{Abbreviation: abbr}
	switch n.kind {
	case kindObject:
		if t, ok := n.get("text"); ok {
			s.Text = scalarText(t)
		}
		s.Enabled = d.flag(n, path+"/"+abbr)
		s.Filter = d.filter(n, path+"/"+abbr)
	case kindArray:
		d.warn("snippet %q in %q: lists are not supported, skipped", abbr, path)
		return s, false
	default:
		s.Text = scalarText(n)
	}
	return s, true
}

// scalarText renders a scalar as replacement text. Numbers and booleans keep
// their literal spelling; null becomes empty.
func scalarText(n *node) string {
	switch n.kind {
	case kindString, kindNumber, kindBool:
		return n.text
	}
	return ""
}

func (d *Document) flag(n *node, path string) *bool {
	v, ok := n.get("enabled")
	if !ok || v.kind == kindNull {
		return nil
	}
	if v.kind != kindBool {
		d.warn("%q: enabled must be a boolean, ignored", path)
		return nil
	}
	b := v.boolean
	return &b
}

func (d *Document) filter(n *node, path string) *focus.Filter {
	v, ok := n.get("window_filter")
	if !ok || v.kind == kindNull {
		return nil
	}
	if v.kind != kindObject {
		d.warn("%q: window_filter must be an object, ignored", path)
		return nil
	}

	f := &focus.Filter{Mode: focus.Contains}
	if t, ok := v.get("title"); ok {
		f.Title = strings.TrimSpace(scalarText(t))
	}
	if c, ok := v.get("class"); ok {
		f.Class = strings.TrimSpace(scalarText(c))
	}
	if m, ok := v.get("match_mode"); ok {
		f.Mode = focus.ParseMatchMode(scalarText(m))
	}
	if f.IsEmpty() {
		return nil
	}
	return f
}
