package scancode

import (
	"sort"
	"unicode"
)

// Translation is the result of translating one abbreviation.
type Translation struct {
	// Sequences holds every distinct sequence produced by a layout that
	// resolved all characters, in layout order.
	Sequences []Sequence

	// Missing holds the characters that prevented some layout from
	// resolving, sorted and deduplicated.
	Missing []rune
}

// OK reports whether at least one layout resolved the abbreviation.
func (t Translation) OK() bool {
	return len(t.Sequences) > 0
}

// MissingString returns the unmapped characters as a single string.
func (t Translation) MissingString() string {
	return string(t.Missing)
}

func isCyrillic(r rune) bool {
	return r >= 0x0400 && r <= 0x052F
}

func hasLatin(s string) bool {
	for _, r := range s {
		lr := unicode.ToLower(r)
		if lr >= 'a' && lr <= 'z' {
			return true
		}
	}
	return false
}

// Layouts returns the candidate layouts for an abbreviation.
func Layouts(abbr string) []Layout {
	for _, r := range abbr {
		if isCyrillic(r) {
			return []Layout{Cyrillic}
		}
	}
	if hasLatin(abbr) {
		return []Layout{Latin}
	}
	return []Layout{Latin, Cyrillic}
}

// Translate builds all scan-code sequences that could produce abbr.
func Translate(abbr string) Translation {
	var t Translation
	if abbr == "" {
		return t
	}

	seen := make(map[Key]struct{})
	missing := make(map[rune]struct{})

	for _, layout := range Layouts(abbr) {
		seq := make(Sequence, 0, len(abbr))
		ok := true
		for _, r := range abbr {
			c, found := layout.Lookup(unicode.ToLower(r))
			if !found {
				missing[r] = struct{}{}
				ok = false
				break
			}
			seq = append(seq, c)
		}
		if !ok {
			continue
		}
		k := seq.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		t.Sequences = append(t.Sequences, seq)
	}

	if len(missing) > 0 {
		t.Missing = make([]rune, 0, len(missing))
		for r := range missing {
			t.Missing = append(t.Missing, r)
		}
		sort.Slice(t.Missing, func(i, j int) bool { return t.Missing[i] < t.Missing[j] })
	}
	return t
}
