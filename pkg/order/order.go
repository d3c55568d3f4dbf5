// Package order sorts normalized entries into headword order and derives the
// projections storage needs: the distinct headword list and the optional
// two-way split at a boundary headword.
package order

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/japaniel/wiktload/pkg/dictionary"
)

// DefaultBoundary is the headword the partitioned layout splits on.
const DefaultBoundary = "m"

// ErrBoundaryNotFound is returned by Partition when no entry has the
// boundary headword.
var ErrBoundaryNotFound = errors.New("boundary headword not found")

// Options tunes Sort.
type Options struct {
	// ExactTieBreak orders headwords that differ only in case, and share
	// the same noun/non-noun class, by exact byte comparison. Without it
	// such entries keep their input order.
	ExactTieBreak bool
}

// Sort orders entries in place: case-insensitively by headword, then nouns
// before other parts of speech. The sort is stable, so entries the
// comparison cannot tell apart keep their input order.
func Sort(entries []dictionary.Entry, opts Options) {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = foldKey(e.Word)
	}
	sort.Stable(&sorter{entries: entries, keys: keys, exact: opts.ExactTieBreak})
}

type sorter struct {
	entries []dictionary.Entry
	keys    []string
	exact   bool
}

func (s *sorter) Len() int { return len(s.entries) }

func (s *sorter) Swap(i, j int) {
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
	s.keys[i], s.keys[j] = s.keys[j], s.keys[i]
}

func (s *sorter) Less(i, j int) bool {
	return compare(s.entries[i], s.entries[j], s.keys[i], s.keys[j], s.exact) < 0
}

// foldKey maps every rune through simple upper then lower case mapping.
// Unlike full case folding it never changes the rune count, so "straße"
// and "strasse" stay distinct while "STRAẞE" matches "straße".
func foldKey(w string) string {
	return strings.Map(func(r rune) rune {
		return unicode.ToLower(unicode.ToUpper(r))
	}, w)
}

func compare(a, b dictionary.Entry, ka, kb string, exact bool) int {
	if c := strings.Compare(ka, kb); c != 0 {
		return c
	}
	switch an, bn := a.IsNoun(), b.IsNoun(); {
	case an && !bn:
		return -1
	case bn && !an:
		return 1
	}
	if exact {
		return strings.Compare(a.Word, b.Word)
	}
	return 0
}

// Compare exposes the ordering used by Sort for a single pair of entries.
func Compare(a, b dictionary.Entry) int {
	return compare(a, b, foldKey(a.Word), foldKey(b.Word), false)
}

// Words projects sorted entries onto their headwords, dropping exact
// repeats and keeping first-seen order.
func Words(entries []dictionary.Entry) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.Word]; ok {
			continue
		}
		seen[e.Word] = struct{}{}
		out = append(out, e.Word)
	}
	return out
}

// FoldWords removes headwords that differ from an earlier one only by case
// ("Apple" after "apple"), keeping the first occurrence.
func FoldWords(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		k := foldKey(w)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Partition splits sorted entries at the first entry whose headword is
// exactly boundary: lower is everything before it, upper starts with it.
// Both halves share entries' backing array.
func Partition(entries []dictionary.Entry, boundary string) (lower, upper []dictionary.Entry, err error) {
	for i, e := range entries {
		if e.Word == boundary {
			return entries[:i:i], entries[i:], nil
		}
	}
	return nil, nil, errors.Wrapf(ErrBoundaryNotFound, "%q", boundary)
}
