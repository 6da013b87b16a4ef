// Package testutil provides shared test helpers: a scripted fetcher, a
// throwaway snapshot store, and small constructors the pipeline tests
// reuse.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/halvard/muninn/internal/apperr"
	"github.com/halvard/muninn/internal/snapshot"
)

// StubFetcher serves scripted responses keyed by URL and records every
// call, so tests can assert both content flow and fetch counts.
type StubFetcher struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []string
}

type response struct {
	text string
	err  error
}

func NewStubFetcher() *StubFetcher {
	return &StubFetcher{responses: make(map[string]response)}
}

// Respond scripts a successful body for url.
func (f *StubFetcher) Respond(url, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = response{text: text}
}

// Fail scripts an error for url.
func (f *StubFetcher) Fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = response{err: err}
}

// Text implements fetch.Fetcher. Unscripted URLs report not found.
func (f *StubFetcher) Text(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	r, ok := f.responses[url]
	if !ok {
		return "", fmt.Errorf("%s: %w", url, apperr.ErrNotFound)
	}
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

// Calls returns the total number of fetches made.
func (f *StubFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// CallsFor returns how many times url was fetched.
func (f *StubFetcher) CallsFor(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == url {
			n++
		}
	}
	return n
}

// ListingJSON renders filenames as a contents-API directory listing.
func ListingJSON(files ...string) string {
	type entry struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	entries := make([]entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, entry{Name: f, Type: "file"})
	}
	b, _ := json.Marshal(entries)
	return string(b)
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestSnapshot creates a temporary SQLite snapshot store that is
// automatically cleaned up.
func TestSnapshot(t *testing.T) *snapshot.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "muninn-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := snapshot.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}
