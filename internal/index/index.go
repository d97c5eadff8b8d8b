// Package index maps scan-code sequences to snippet candidates.
//
// An Index is immutable once built. Reloading builds a new Index and swaps
// it in whole, so a lookup never sees a partially populated table.
package index

import (
	"log/slog"
	"sort"

	"snipd/internal/focus"
	"snipd/internal/scancode"
	"snipd/internal/snippets"
)

// Entry is one indexed snippet.
type Entry struct {
	Abbreviation string
	Text         string
	Filter       *focus.Filter
	Path         string
	Sequences    []scancode.Sequence
}

// Skipped records an abbreviation that no layout could translate.
type Skipped struct {
	Abbreviation string `json:"abbreviation"`
	Missing      string `json:"missing"`
}

// Collision is a sequence shared by more than one snippet. The first
// abbreviation wins unless its window filter rejects the active window.
type Collision struct {
	Sequence      string   `json:"sequence"`
	Abbreviations []string `json:"abbreviations"`
}

// Index is the lookup table consulted on every terminator key.
type Index struct {
	buckets map[scancode.Key][]*Entry
	entries []*Entry
	skipped []Skipped
}

// Empty returns an index with no entries.
func Empty() *Index {
	return &Index{buckets: make(map[scancode.Key][]*Entry)}
}

// Build translates every resolved snippet and fills the buckets in order.
// When several snippets share a sequence they are kept in the order they
// were added, and each later addition is logged as a collision.
func Build(resolved []snippets.Resolved, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "index")

	ix := Empty()
	for _, r := range resolved {
		tr := scancode.Translate(r.Abbreviation)
		if !tr.OK() {
			ix.skipped = append(ix.skipped, Skipped{
				Abbreviation: r.Abbreviation,
				Missing:      tr.MissingString(),
			})
			logger.Warn("abbreviation has no scan-code mapping, skipped",
				"abbreviation", r.Abbreviation,
				"missing", tr.MissingString(),
			)
			continue
		}

		e := &Entry{
			Abbreviation: r.Abbreviation,
			Text:         r.Text,
			Filter:       r.Filter,
			Path:         r.Path,
			Sequences:    tr.Sequences,
		}
		ix.entries = append(ix.entries, e)

		for _, seq := range tr.Sequences {
			k := seq.Key()
			if existing := ix.buckets[k]; len(existing) > 0 {
				logger.Warn("scan-code collision",
					"sequence", seq.String(),
					"abbreviation", r.Abbreviation,
					"shadowed_by", existing[0].Abbreviation,
					"position", len(existing)+1,
				)
			}
			ix.buckets[k] = append(ix.buckets[k], e)
		}
	}

	logger.Info("index built",
		"snippets", len(ix.entries),
		"sequences", len(ix.buckets),
		"skipped", len(ix.skipped),
	)
	return ix
}

// Lookup returns the candidates for an exact sequence, in priority order.
// The returned slice must not be modified.
func (ix *Index) Lookup(seq scancode.Sequence) []*Entry {
	if ix == nil || len(seq) == 0 {
		return nil
	}
	return ix.buckets[seq.Key()]
}

// Entries returns the indexed snippets in insertion order.
func (ix *Index) Entries() []*Entry {
	if ix == nil {
		return nil
	}
	return ix.entries
}

// Skipped returns the abbreviations that could not be translated.
func (ix *Index) Skipped() []Skipped {
	if ix == nil {
		return nil
	}
	return ix.skipped
}

// Len returns the number of indexed snippets.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// Sequences returns the number of distinct sequences.
func (ix *Index) Sequences() int {
	if ix == nil {
		return 0
	}
	return len(ix.buckets)
}

// Collisions returns every shared sequence, sorted by sequence.
func (ix *Index) Collisions() []Collision {
	if ix == nil {
		return nil
	}
	var out []Collision
	for _, e := range ix.entries {
		for _, seq := range e.Sequences {
			bucket := ix.buckets[seq.Key()]
			if len(bucket) < 2 || bucket[0] != e {
				continue
			}
			c := Collision{Sequence: seq.String()}
			for _, b := range bucket {
				c.Abbreviations = append(c.Abbreviations, b.Abbreviation)
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
