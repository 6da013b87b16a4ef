package fetch

import (
	"fmt"
	"strings"
)

// Source locates the GitHub-hosted corpus: which repository, which
// branch, and which hosts to talk to. The base URLs are configurable so
// tests and GitHub Enterprise deployments can point elsewhere.
type Source struct {
	APIBase  string
	RawBase  string
	HTMLBase string
	Owner    string
	Repo     string
	Branch   string
}

// ContentsURL returns the directory-listing endpoint for dir.
func (s Source) ContentsURL(dir string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		strings.TrimRight(s.APIBase, "/"), s.Owner, s.Repo, dir, s.Branch)
}

// RawURL returns the raw-content endpoint for a repository path.
func (s Source) RawURL(path string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		strings.TrimRight(s.RawBase, "/"), s.Owner, s.Repo, s.Branch, path)
}

// HTMLURL returns the human-facing page for a repository path, used as
// a document's source URI.
func (s Source) HTMLURL(path string) string {
	return fmt.Sprintf("%s/%s/%s/blob/%s/%s",
		strings.TrimRight(s.HTMLBase, "/"), s.Owner, s.Repo, s.Branch, path)
}
