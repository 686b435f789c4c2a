package annotations

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilm "github.com/sahilm/fuzzy"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

// MatchKind tags what a search result points at
type MatchKind int

const (
	MatchHighlight MatchKind = iota
	MatchNote
)

// Match is one annotation search result with metadata for rune-level
// highlighting in the annotations panel.
type Match struct {
	Kind           MatchKind
	Highlight      *domain.Highlight // Set when Kind == MatchHighlight
	Note           *domain.Note      // Set when Kind == MatchNote
	Score          int               // Lower is better
	MatchedIndexes []int             // Rune positions that matched
}

// searchEntry is one searchable annotation in the index
type searchEntry struct {
	kind      MatchKind
	highlight *domain.Highlight
	note      *domain.Note
	text      string // Lowercased searchable text
}

// searchIndex implements sahilm/fuzzy.Source over annotation texts
type searchIndex struct {
	entries []searchEntry
}

func (idx *searchIndex) String(i int) string { return idx.entries[i].text }
func (idx *searchIndex) Len() int            { return len(idx.entries) }

// Search fuzzy-matches the query against highlight excerpts and note content,
// returning results sorted best-first with matched rune positions.
func (s *Store) Search(query string) []Match {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil
	}

	idx := s.buildIndex()
	if idx.Len() == 0 {
		return nil
	}

	found := sahilm.FindFrom(query, idx)

	matches := make([]Match, 0, len(found))
	for _, f := range found {
		entry := idx.entries[f.Index]
		matches = append(matches, Match{
			Kind:           entry.kind,
			Highlight:      entry.highlight,
			Note:           entry.note,
			Score:          scoreEntry(entry.text, query, f.Score),
			MatchedIndexes: f.MatchedIndexes,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score < matches[j].Score
	})
	return matches
}

// Rank orders matching annotations by Levenshtein distance to the query,
// closest first. Coarser than Search but cheap, used for the quick-jump list.
func (s *Store) Rank(query string) []Match {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		return nil
	}

	idx := s.buildIndex()
	texts := make([]string, idx.Len())
	for i, e := range idx.entries {
		texts[i] = e.text
	}

	ranked := fuzzy.RankFindFold(query, texts)
	sort.Slice(ranked, func(i, j int) bool {
		return ranked[i].Distance < ranked[j].Distance
	})

	matches := make([]Match, 0, len(ranked))
	for _, r := range ranked {
		entry := idx.entries[r.OriginalIndex]
		matches = append(matches, Match{
			Kind:      entry.kind,
			Highlight: entry.highlight,
			Note:      entry.note,
			Score:     r.Distance,
		})
	}
	return matches
}

// buildIndex snapshots the annotation lists into a searchable index
func (s *Store) buildIndex() *searchIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := &searchIndex{}
	for i := range s.highlights {
		h := s.highlights[i]
		idx.entries = append(idx.entries, searchEntry{
			kind:      MatchHighlight,
			highlight: &h,
			text:      strings.ToLower(h.Text),
		})
	}
	for i := range s.notes {
		n := s.notes[i]
		idx.entries = append(idx.entries, searchEntry{
			kind: MatchNote,
			note: &n,
			text: strings.ToLower(n.Content),
		})
	}
	return idx
}

// scoreEntry biases the subsequence score with exact/prefix/contains checks,
// lower is better
func scoreEntry(text, query string, base int) int {
	switch {
	case text == query:
		return 0
	case strings.HasPrefix(text, query):
		return 10
	case strings.Contains(text, query):
		return 50
	}
	return 100 + fuzzy.LevenshteinDistance(query, text) - base
}
