// Package parser splits YAML frontmatter from markdown bodies.
package parser

import (
	"bytes"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/halvard/muninn/internal/models"
)

const previewLimit = 240

// Result holds the output of parsing a markdown document.
type Result struct {
	Metadata models.Metadata
	Body     string
	Title    string
	Sequence int
	Status   string
	Preview  string
}

// ParseError reports frontmatter that looked like a fenced block but did
// not decode as YAML.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse frontmatter: " + e.Err.Error() }

func (e *ParseError) Unwrap() error { return e.Err }

// Parse splits data into frontmatter and body and derives the typed
// fields list and search rely on. Documents without a fence are all
// body. Malformed YAML degrades: the returned Result still carries the
// complete original text as body, alongside a *ParseError.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		r := bodyOnly(data)
		return r, &ParseError{Err: err}
	}

	r := &Result{
		Metadata: fm,
		Body:     body,
		Title:    deriveTitle(fm, body),
		Status:   deriveStatus(fm),
		Preview:  buildPreview(body),
	}
	if seq, ok := fm.Int("sequence"); ok {
		r.Sequence = seq
	}
	return r, nil
}

func bodyOnly(data []byte) *Result {
	body := string(data)
	return &Result{
		Body:    body,
		Title:   deriveTitle(nil, body),
		Preview: buildPreview(body),
	}
}

// splitFrontmatter separates YAML frontmatter (between leading ---
// fences) from the markdown body. The body is everything after the
// closing fence line, byte for byte. Content without an opening fence,
// or with a fence that never closes, is returned whole as body.
func splitFrontmatter(data []byte) (models.Metadata, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	yamlBlock, body, found := splitAtClosingFence(rest)
	if !found {
		return nil, string(data), nil
	}

	var fm models.Metadata
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", err
	}
	return fm, string(body), nil
}

// splitAtClosingFence finds the first line that is exactly "---" and
// returns the bytes before it and the bytes after its line break. A
// line like "----" or "--- x" is not a fence.
func splitAtClosingFence(rest []byte) (yamlBlock, body []byte, found bool) {
	search := rest
	offset := 0
	for {
		idx := bytes.Index(search, []byte("\n---"))
		if idx < 0 {
			return nil, nil, false
		}
		end := offset + idx
		after := rest[end+4:]
		switch {
		case len(after) == 0:
			return rest[:end], nil, true
		case after[0] == '\n':
			return rest[:end], after[1:], true
		case after[0] == '\r' && len(after) > 1 && after[1] == '\n':
			return rest[:end], after[2:], true
		}
		offset = end + 1
		search = rest[offset:]
	}
}

// deriveTitle returns the frontmatter "title" if present, otherwise the
// first H1 heading, otherwise empty string.
func deriveTitle(fm models.Metadata, body string) string {
	if t := fm.String("title"); t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

func deriveStatus(fm models.Metadata) string {
	if s := fm.String("doc_status"); s != "" {
		return s
	}
	return fm.String("status")
}

// buildPreview condenses the body into a short plain snippet: heading
// lines are skipped and whitespace runs collapse to single spaces.
func buildPreview(body string) string {
	var b strings.Builder
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(trimmed)
		if b.Len() > 4*previewLimit {
			break
		}
	}
	runes := []rune(b.String())
	if len(runes) > previewLimit {
		return strings.TrimSpace(string(runes[:previewLimit]))
	}
	return b.String()
}
