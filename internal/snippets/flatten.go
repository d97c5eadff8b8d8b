package snippets

import "snipd/internal/focus"

// Flatten resolves inheritance and returns the enabled snippets in document
// order. Categories are visited depth-first: a category's own snippets come
// before those of its subcategories.
//
// A category inherits its parent's filter unless it sets one, and its
// parent's enabled default unless it sets one. Top-level categories default
// to enabled. A snippet's own enabled flag and filter override the
// category's.
func (d *Document) Flatten() []Resolved {
	var out []Resolved
	for _, c := range d.Categories {
		out = flattenCategory(out, c, "", true, nil)
	}
	return out
}

func flattenCategory(out []Resolved, c *Category, parentPath string, parentEnabled bool, parentFilter *focus.Filter) []Resolved {
	path := c.Name
	if parentPath != "" {
		path = parentPath + "/" + c.Name
	}

	enabled := parentEnabled
	if c.Enabled != nil {
		enabled = *c.Enabled
	}
	filter := parentFilter
	if c.Filter != nil {
		filter = c.Filter
	}

	for _, s := range c.Snippets {
		on := enabled
		if s.Enabled != nil {
			on = *s.Enabled
		}
		if !on {
			continue
		}
		f := filter
		if s.Filter != nil {
			f = s.Filter
		}
		out = append(out, Resolved{
			Abbreviation: s.Abbreviation,
			Text:         s.Text,
			Filter:       f,
			Path:         path,
		})
	}

	for _, sub := range c.Categories {
		out = flattenCategory(out, sub, path, enabled, filter)
	}
	return out
}
