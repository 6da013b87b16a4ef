package models

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Document is a fully hydrated corpus entry: parsed frontmatter plus the
// markdown body that followed it.
type Document struct {
	ID        string    `json:"id"`
	Category  Category  `json:"category"`
	Title     string    `json:"title"`
	Status    string    `json:"status,omitempty"`
	Sequence  int       `json:"sequence,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	Body      string    `json:"body"`
	Preview   string    `json:"preview,omitempty"`
	SourceURI string    `json:"source_uri,omitempty"`
	Checksum  string    `json:"checksum"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Summary is the lightweight representation returned by list operations.
// Placeholder is set when the document itself was unavailable and the
// raw filename stands in for its title.
type Summary struct {
	ID          string   `json:"id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Status      string   `json:"status,omitempty"`
	Sequence    int      `json:"sequence,omitempty"`
	Placeholder bool     `json:"placeholder,omitempty"`
}

// Origin records where a file listing came from.
type Origin string

const (
	OriginLive     Origin = "live"
	OriginFallback Origin = "fallback"
)

// FileList is a category's markdown filenames in canonical order.
type FileList struct {
	Category  Category  `json:"category"`
	Files     []string  `json:"files"`
	Origin    Origin    `json:"origin"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Stem strips the markdown extension from a filename.
func Stem(filename string) string {
	return strings.TrimSuffix(filename, ".md")
}

// DeriveID maps a filename to its document ID: the stem with the
// category prefix removed. "ri-10_data-leakage.md" becomes
// "10_data-leakage".
func DeriveID(c Category, filename string) string {
	stem := Stem(filename)
	if p := c.Prefix(); p != "" && len(stem) >= len(p) && strings.EqualFold(stem[:len(p)], p) {
		return stem[len(p):]
	}
	return stem
}

// NormalizeID reduces a requested identifier to canonical form so
// lookups tolerate the full filename, the prefixed stem, or the bare ID.
func NormalizeID(c Category, requested string) string {
	return DeriveID(c, strings.TrimSpace(requested))
}

// SequenceOf extracts the leading numeric ordinal of a document ID.
// "10_data-leakage" yields 10. IDs without a leading number report false.
func SequenceOf(id string) (int, bool) {
	i := 0
	for i < len(id) && unicode.IsDigit(rune(id[i])) {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n := 0
	for _, r := range id[:i] {
		n = n*10 + int(r-'0')
	}
	return n, true
}

// ResolveFilename finds the file a requested identifier refers to.
// Accepted forms, tried in order: canonical ID ("10_data-leakage"),
// full filename or prefixed stem ("ri-10_data-leakage.md"), and the
// bare sequence number ("10"). Sequence matching is exact: "1" never
// matches "10_...". Returns "" when nothing matches.
func ResolveFilename(files []string, c Category, requested string) string {
	norm := NormalizeID(c, requested)
	if norm == "" {
		return ""
	}
	for _, f := range files {
		if strings.EqualFold(DeriveID(c, f), norm) {
			return f
		}
	}
	if n, ok := parseAllDigits(norm); ok {
		for _, f := range files {
			if seq, ok := SequenceOf(DeriveID(c, f)); ok && seq == n {
				return f
			}
		}
	}
	return ""
}

func parseAllDigits(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// SortFiles orders filenames canonically: numeric sequence ascending,
// then filename. Files without a sequence sort after those with one.
func SortFiles(c Category, files []string) {
	sort.SliceStable(files, func(i, j int) bool {
		si, oki := SequenceOf(DeriveID(c, files[i]))
		sj, okj := SequenceOf(DeriveID(c, files[j]))
		switch {
		case oki && !okj:
			return true
		case !oki && okj:
			return false
		case oki && okj && si != sj:
			return si < sj
		}
		return files[i] < files[j]
	})
}

// DedupeByID drops files whose derived ID was already claimed by an
// earlier file. Returns the kept list and the dropped filenames.
func DedupeByID(c Category, files []string) (kept, dropped []string) {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		id := strings.ToLower(DeriveID(c, f))
		if seen[id] {
			dropped = append(dropped, f)
			continue
		}
		seen[id] = true
		kept = append(kept, f)
	}
	return kept, dropped
}
