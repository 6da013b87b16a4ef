// Package search ranks cached document metadata against a query. It
// never touches the network: candidates are whatever the caller already
// holds in memory.
package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/halvard/muninn/internal/models"
)

const snippetWindow = 60

// Candidate is one searchable entry. Placeholder candidates carry a
// filename-derived title because the document itself was never fetched.
type Candidate struct {
	ID          string
	Category    models.Category
	Title       string
	Preview     string
	Sequence    int
	Placeholder bool
}

// MatchKind says which field matched.
type MatchKind string

const (
	MatchTitle   MatchKind = "title"
	MatchPreview MatchKind = "preview"
)

// Match is one search hit.
type Match struct {
	ID          string          `json:"id"`
	Category    models.Category `json:"category"`
	Title       string          `json:"title"`
	Kind        MatchKind       `json:"match"`
	Snippet     string          `json:"snippet,omitempty"`
	Placeholder bool            `json:"placeholder,omitempty"`
}

// Rank returns candidates matching query by case-insensitive substring,
// title matches ahead of preview matches. Within each band the incoming
// candidate order is preserved, so callers passing canonical order get
// canonical ties.
func Rank(query string, cands []Candidate) []Match {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var titles, previews []Match
	for _, c := range cands {
		m := Match{
			ID:          c.ID,
			Category:    c.Category,
			Title:       c.Title,
			Placeholder: c.Placeholder,
		}
		switch {
		case strings.Contains(strings.ToLower(c.Title), q):
			m.Kind = MatchTitle
			m.Snippet = snippet(c.Preview, q)
			titles = append(titles, m)
		case strings.Contains(strings.ToLower(c.Preview), q):
			m.Kind = MatchPreview
			m.Snippet = snippet(c.Preview, q)
			previews = append(previews, m)
		}
	}
	return append(titles, previews...)
}

// snippet cuts a window of preview around the first occurrence of q,
// or the head of preview when q only matched the title.
func snippet(preview, q string) string {
	if preview == "" {
		return ""
	}
	matchStart, matchEnd := foldIndex(preview, q)
	if matchStart < 0 {
		return head(preview, 2*snippetWindow)
	}

	start := matchStart - snippetWindow
	if start < 0 {
		start = 0
	}
	end := matchEnd + snippetWindow
	if end > len(preview) {
		end = len(preview)
	}
	for start > 0 && !utf8.RuneStart(preview[start]) {
		start--
	}
	for end < len(preview) && !utf8.RuneStart(preview[end]) {
		end++
	}

	s := preview[start:end]
	if start > 0 {
		s = "..." + s
	}
	if end < len(preview) {
		s += "..."
	}
	return s
}

// foldIndex locates the lowercased query q inside s and returns the
// byte range of the match in s itself. Lowering can change a rune's
// byte length, so offsets into the lowered text cannot be applied to s
// directly; a per-byte offset map bridges the two.
func foldIndex(s, q string) (start, end int) {
	var lowered strings.Builder
	lowered.Grow(len(s))
	offs := make([]int, 0, len(s)+1)
	for i, r := range s {
		lr := unicode.ToLower(r)
		for j := 0; j < utf8.RuneLen(lr); j++ {
			offs = append(offs, i)
		}
		lowered.WriteRune(lr)
	}
	offs = append(offs, len(s))

	idx := strings.Index(lowered.String(), q)
	if idx < 0 {
		return -1, -1
	}
	return offs[idx], offs[idx+len(q)]
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
