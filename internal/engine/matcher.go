package engine

import (
	"snipd/internal/focus"
	"snipd/internal/index"
	"snipd/internal/scancode"
)

// MissReason explains why a terminator selected nothing.
type MissReason string

const (
	MissEmpty    MissReason = "empty"
	MissNoEntry  MissReason = "no_entry"
	MissFiltered MissReason = "filtered"
)

// Match is a selected snippet ready for replacement.
type Match struct {
	Entry     *index.Entry
	Sequence  scancode.Sequence
	Committed int
}

// Text returns the replacement text.
func (m Match) Text() string {
	return m.Entry.Text
}

// match looks up seq and returns the first candidate whose window filter
// accepts the foreground window. The window is queried at most once, and
// only if some candidate carries a filter. A failed query rejects every
// filtered candidate.
func match(ix *index.Index, seq scancode.Sequence, q focus.Querier) (Match, MissReason, bool) {
	if len(seq) == 0 {
		return Match{}, MissEmpty, false
	}
	bucket := ix.Lookup(seq)
	if len(bucket) == 0 {
		return Match{}, MissNoEntry, false
	}

	var (
		window  focus.Info
		queried bool
		known   bool
	)
	for _, e := range bucket {
		if !e.Filter.IsEmpty() {
			if !queried {
				queried = true
				if q != nil {
					w, err := q.ActiveWindow()
					window, known = w, err == nil
				}
			}
			if !known || !e.Filter.Match(window) {
				continue
			}
		}
		return Match{Entry: e, Sequence: seq, Committed: len(seq)}, "", true
	}
	return Match{}, MissFiltered, false
}
