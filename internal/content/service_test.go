package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/halvard/muninn/internal/apperr"
	"github.com/halvard/muninn/internal/cache"
	"github.com/halvard/muninn/internal/discovery"
	"github.com/halvard/muninn/internal/events"
	"github.com/halvard/muninn/internal/fetch"
	"github.com/halvard/muninn/internal/models"
	"github.com/halvard/muninn/internal/parser"
	"github.com/halvard/muninn/internal/search"
	"github.com/halvard/muninn/internal/seed"
	"github.com/halvard/muninn/internal/testutil"
)

func testSource() fetch.Source {
	return fetch.Source{
		APIBase:  "https://api.test",
		RawBase:  "https://raw.test",
		HTMLBase: "https://html.test",
		Owner:    "halvard",
		Repo:     "governance-docs",
		Branch:   "main",
	}
}

func listingURL(dir string) string {
	return "https://api.test/repos/halvard/governance-docs/contents/" + dir + "?ref=main"
}

func rawURL(path string) string {
	return "https://raw.test/halvard/governance-docs/main/" + path
}

// seedsWith builds a registry whose fallback lists are exactly files;
// categories missing from the map end up empty.
func seedsWith(files map[models.Category][]string) *seed.Registry {
	r := seed.Default()
	for _, c := range models.Categories() {
		r.Replace(c, files[c])
	}
	return r
}

func docText(title string, seq int) string {
	return fmt.Sprintf("---\ntitle: %s\nsequence: %d\ndoc_status: active\n---\n\n# %s\n\nBody text for %s.\n", title, seq, title, title)
}

func makeDoc(c models.Category, id, title string, fetchedAt time.Time) *models.Document {
	seq, _ := models.SequenceOf(id)
	return &models.Document{
		ID:        id,
		Category:  c,
		Title:     title,
		Status:    "active",
		Sequence:  seq,
		Body:      "# " + title + "\n\nBody.",
		Preview:   "Body.",
		Checksum:  "c0ffee",
		FetchedAt: fetchedAt,
	}
}

type env struct {
	fetcher  *testutil.StubFetcher
	docs     *cache.Cache[*models.Document]
	listings *cache.Cache[models.FileList]
	seeds    *seed.Registry
	svc      *Service
}

func newEnv(t *testing.T, seeds *seed.Registry, opts ...Option) *env {
	t.Helper()
	fetcher := testutil.NewStubFetcher()
	listings, err := cache.New[models.FileList](time.Hour, 16)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := cache.New[*models.Document](time.Hour, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := testSource()
	lister := discovery.NewLister(fetcher, src, nil, listings, seeds, testutil.Logger())
	svc := NewService(fetcher, lister, docs, seeds, src, testutil.Logger(), opts...)
	return &env{fetcher: fetcher, docs: docs, listings: listings, seeds: seeds, svc: svc}
}

func TestGet_FetchesThenServesFromCache(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_intro.md", "ri-2_scope.md"))
	e.fetcher.Respond(rawURL("risks/ri-1_intro.md"), docText("Introduction", 1))

	res, err := e.svc.Get(context.Background(), models.CategoryRisk, "1_intro")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Outcome != OutcomeFetched {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeFetched)
	}
	doc := res.Document
	if doc.ID != "1_intro" || doc.Title != "Introduction" || doc.Sequence != 1 || doc.Status != "active" {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Checksum == "" {
		t.Error("checksum not set")
	}
	if want := "https://html.test/halvard/governance-docs/blob/main/risks/ri-1_intro.md"; doc.SourceURI != want {
		t.Errorf("SourceURI = %q, want %q", doc.SourceURI, want)
	}

	res, err = e.svc.Get(context.Background(), models.CategoryRisk, "1_intro")
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if res.Outcome != OutcomeCached {
		t.Errorf("second outcome = %q, want %q", res.Outcome, OutcomeCached)
	}
	if got := e.fetcher.Calls(); got != 2 {
		t.Errorf("total fetches = %d, want 2 (one listing, one document)", got)
	}
}

func TestGet_SeedFallbackResolvesSequenceAlias(t *testing.T) {
	seeds := seedsWith(map[models.Category][]string{
		models.CategoryRisk: {"ri-1_foo.md", "ri-10_bar.md"},
	})
	e := newEnv(t, seeds)
	e.fetcher.Fail(listingURL("risks"), &fetch.Error{URL: listingURL("risks"), Attempts: 3, Err: errors.New("connect: connection refused")})
	e.fetcher.Respond(rawURL("risks/ri-10_bar.md"), docText("Bar", 10))

	res, err := e.svc.Get(context.Background(), models.CategoryRisk, "10_bar")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Document.ID != "10_bar" {
		t.Errorf("ID = %q, want %q", res.Document.ID, "10_bar")
	}
	if got := e.fetcher.CallsFor(rawURL("risks/ri-10_bar.md")); got != 1 {
		t.Errorf("raw fetches for ri-10_bar.md = %d, want 1", got)
	}
	if got := e.fetcher.CallsFor(rawURL("risks/ri-1_foo.md")); got != 0 {
		t.Errorf("ri-1_foo.md fetched %d times, want 0", got)
	}
}

func TestGet_AliasesHitCanonicalCacheEntry(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-3_handling.md"))
	e.fetcher.Respond(rawURL("risks/ri-3_handling.md"), docText("Handling", 3))

	if _, err := e.svc.Get(context.Background(), models.CategoryRisk, "3_handling"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	for _, alias := range []string{"ri-3_handling", "ri-3_handling.md", "3", "RI-3_HANDLING"} {
		res, err := e.svc.Get(context.Background(), models.CategoryRisk, alias)
		if err != nil {
			t.Fatalf("Get(%q) error = %v", alias, err)
		}
		if res.Outcome != OutcomeCached {
			t.Errorf("Get(%q) outcome = %q, want %q", alias, res.Outcome, OutcomeCached)
		}
	}
	if got := e.fetcher.Calls(); got != 2 {
		t.Errorf("total fetches = %d, want 2", got)
	}
}

func TestGet_UnknownIDNotFound(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_intro.md"))

	_, err := e.svc.Get(context.Background(), models.CategoryRisk, "9_missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if info := Describe(err); info.Type != "not_found" {
		t.Errorf("Describe().Type = %q, want %q", info.Type, "not_found")
	}
}

func TestGet_RateLimitServesStaleCopy(t *testing.T) {
	seeds := seedsWith(map[models.Category][]string{
		models.CategoryRisk: {"ri-7_stale.md"},
	})
	e := newEnv(t, seeds)
	stale := makeDoc(models.CategoryRisk, "7_stale", "Stale Copy", time.Now().Add(-2*time.Hour))
	e.docs.PutAt("risk/7_stale", stale, stale.FetchedAt)

	reset := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	e.fetcher.Fail(listingURL("risks"), &fetch.Error{URL: listingURL("risks"), Attempts: 3, Err: errors.New("timeout")})
	e.fetcher.Fail(rawURL("risks/ri-7_stale.md"), &fetch.RateLimitError{URL: rawURL("risks/ri-7_stale.md"), ResetAt: reset})

	res, err := e.svc.Get(context.Background(), models.CategoryRisk, "7")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Outcome != OutcomeStale {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeStale)
	}
	if res.Document.Title != "Stale Copy" {
		t.Errorf("Title = %q, want stale document served", res.Document.Title)
	}
	if res.RetryAt == nil || !res.RetryAt.Equal(reset) {
		t.Errorf("RetryAt = %v, want %v", res.RetryAt, reset)
	}
}

func TestGet_TransientFailureServesStaleCopy(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-2_net.md"))
	stale := makeDoc(models.CategoryRisk, "2_net", "Old Net Doc", time.Now().Add(-2*time.Hour))
	e.docs.PutAt("risk/2_net", stale, stale.FetchedAt)
	e.fetcher.Fail(rawURL("risks/ri-2_net.md"), &fetch.Error{URL: rawURL("risks/ri-2_net.md"), Attempts: 3, Err: errors.New("i/o timeout")})

	res, err := e.svc.Get(context.Background(), models.CategoryRisk, "2_net")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Outcome != OutcomeStale {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeStale)
	}
	if res.RetryAt != nil {
		t.Errorf("RetryAt = %v, want nil for non rate-limit failure", res.RetryAt)
	}
}

func TestGet_RateLimitWithoutCacheReturnsMetadataOnly(t *testing.T) {
	seeds := seedsWith(map[models.Category][]string{
		models.CategoryRisk: {"ri-8_gap.md"},
	})
	e := newEnv(t, seeds)
	reset := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	e.fetcher.Fail(listingURL("risks"), &fetch.Error{URL: listingURL("risks"), Attempts: 3, Err: errors.New("timeout")})
	e.fetcher.Fail(rawURL("risks/ri-8_gap.md"), &fetch.RateLimitError{URL: rawURL("risks/ri-8_gap.md"), ResetAt: reset})

	res, err := e.svc.Get(context.Background(), models.CategoryRisk, "8_gap")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Outcome != OutcomeMetadataOnly {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeMetadataOnly)
	}
	if res.Document.Title != "ri-8_gap.md" || res.Document.Body != "" {
		t.Errorf("placeholder document = %+v", res.Document)
	}
	if res.RetryAt == nil || !res.RetryAt.Equal(reset) {
		t.Errorf("RetryAt = %v, want %v", res.RetryAt, reset)
	}
	if got := e.docs.Len(); got != 0 {
		t.Errorf("document cache size = %d, want 0: metadata-only results must not be cached", got)
	}

	// A later request tries upstream again rather than reusing the shell.
	if _, err := e.svc.Get(context.Background(), models.CategoryRisk, "8_gap"); err != nil {
		t.Fatalf("retry Get() error = %v", err)
	}
	if got := e.fetcher.CallsFor(rawURL("risks/ri-8_gap.md")); got != 2 {
		t.Errorf("raw fetches = %d, want 2", got)
	}
}

func TestGet_TransientFailureWithoutCachePropagates(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-4_flaky.md"))
	e.fetcher.Fail(rawURL("risks/ri-4_flaky.md"), &fetch.Error{URL: rawURL("risks/ri-4_flaky.md"), Attempts: 3, Err: errors.New("connection reset")})

	_, err := e.svc.Get(context.Background(), models.CategoryRisk, "4_flaky")
	var fe *fetch.Error
	if !errors.As(err, &fe) {
		t.Fatalf("Get() error = %v, want *fetch.Error", err)
	}
	if info := Describe(err); info.Type != "unavailable" {
		t.Errorf("Describe().Type = %q, want %q", info.Type, "unavailable")
	}
}

func TestGet_ListingDriftDropsCachedEntry(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-5_gone.md"))
	// Raw URL is deliberately unscripted: the stub reports not found,
	// mirroring a file deleted upstream after the listing was taken.
	stale := makeDoc(models.CategoryRisk, "5_gone", "Ghost", time.Now().Add(-2*time.Hour))
	e.docs.PutAt("risk/5_gone", stale, stale.FetchedAt)

	_, err := e.svc.Get(context.Background(), models.CategoryRisk, "5_gone")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	if _, _, ok := e.docs.GetStale("risk/5_gone"); ok {
		t.Error("cached entry survived a 404 from upstream")
	}
}

func TestGet_MalformedFrontmatterDegradesAndCaches(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	raw := "---\ntitle: [unclosed\n---\n\n# Fallback Heading\n\nStill readable body.\n"
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-6_broken.md"))
	e.fetcher.Respond(rawURL("risks/ri-6_broken.md"), raw)

	res, err := e.svc.Get(context.Background(), models.CategoryRisk, "6_broken")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if res.Outcome != OutcomeParseDegraded {
		t.Errorf("outcome = %q, want %q", res.Outcome, OutcomeParseDegraded)
	}
	if res.Document.Body != raw {
		t.Errorf("degraded body = %q, want the complete original text", res.Document.Body)
	}
	if res.Document.Title != "Fallback Heading" {
		t.Errorf("Title = %q, want H1 fallback", res.Document.Title)
	}
	if res.Document.Sequence != 6 {
		t.Errorf("Sequence = %d, want 6 from the identifier", res.Document.Sequence)
	}

	res, err = e.svc.Get(context.Background(), models.CategoryRisk, "6_broken")
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if res.Outcome != OutcomeCached {
		t.Errorf("second outcome = %q, want %q: degraded documents are cached", res.Outcome, OutcomeCached)
	}
	if got := e.fetcher.CallsFor(rawURL("risks/ri-6_broken.md")); got != 1 {
		t.Errorf("raw fetches = %d, want 1", got)
	}
}

type blockingFetcher struct {
	release chan struct{}
	started chan struct{}
	once    sync.Once
	calls   atomic.Int32
	text    string
}

func (f *blockingFetcher) Text(ctx context.Context, _ string) (string, error) {
	f.calls.Add(1)
	f.once.Do(func() { close(f.started) })
	select {
	case <-f.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return f.text, nil
}

func TestGet_CoalescesConcurrentFetches(t *testing.T) {
	seeds := seedsWith(nil)
	fetcher := &blockingFetcher{
		release: make(chan struct{}),
		started: make(chan struct{}),
		text:    docText("Coalesced", 5),
	}
	listings, err := cache.New[models.FileList](time.Hour, 16)
	if err != nil {
		t.Fatal(err)
	}
	docs, err := cache.New[*models.Document](time.Hour, 64)
	if err != nil {
		t.Fatal(err)
	}
	src := testSource()
	lister := discovery.NewLister(fetcher, src, nil, listings, seeds, testutil.Logger())
	svc := NewService(fetcher, lister, docs, seeds, src, testutil.Logger())
	listings.Put("risk", models.FileList{
		Category:  models.CategoryRisk,
		Files:     []string{"ri-5_x.md"},
		Origin:    models.OriginLive,
		FetchedAt: time.Now(),
	})

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	results := make([]*Result, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Get(context.Background(), models.CategoryRisk, "5_x")
		}(i)
	}

	<-fetcher.started
	time.Sleep(100 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	if got := fetcher.calls.Load(); got != 1 {
		t.Errorf("upstream fetches = %d, want 1", got)
	}
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d error = %v", i, errs[i])
		}
		if results[i].Document.ID != "5_x" {
			t.Errorf("worker %d ID = %q, want %q", i, results[i].Document.ID, "5_x")
		}
	}
}

func TestList_HydratesInCanonicalOrder(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-2_second.md", "ri-1_first.md"))
	e.fetcher.Respond(rawURL("risks/ri-1_first.md"), docText("First", 1))
	e.fetcher.Respond(rawURL("risks/ri-2_second.md"), docText("Second", 2))

	summaries, err := e.svc.List(context.Background(), models.CategoryRisk)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("len(summaries) = %d, want 2", len(summaries))
	}
	if summaries[0].ID != "1_first" || summaries[1].ID != "2_second" {
		t.Errorf("order = [%s %s], want [1_first 2_second]", summaries[0].ID, summaries[1].ID)
	}
	if summaries[0].Title != "First" || summaries[0].Placeholder {
		t.Errorf("summaries[0] = %+v, want hydrated title", summaries[0])
	}
}

func TestList_RateLimitSwitchesToPlaceholders(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_a.md", "ri-2_b.md", "ri-3_c.md"))
	e.fetcher.Respond(rawURL("risks/ri-1_a.md"), docText("Alpha", 1))
	e.fetcher.Fail(rawURL("risks/ri-2_b.md"), &fetch.RateLimitError{URL: rawURL("risks/ri-2_b.md")})
	e.fetcher.Respond(rawURL("risks/ri-3_c.md"), docText("Gamma", 3))

	summaries, err := e.svc.List(context.Background(), models.CategoryRisk)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("len(summaries) = %d, want 3", len(summaries))
	}
	if summaries[0].Placeholder || summaries[0].Title != "Alpha" {
		t.Errorf("summaries[0] = %+v, want hydrated", summaries[0])
	}
	if !summaries[1].Placeholder || summaries[1].Title != "ri-2_b.md" {
		t.Errorf("summaries[1] = %+v, want filename placeholder", summaries[1])
	}
	if !summaries[2].Placeholder {
		t.Errorf("summaries[2] = %+v, want placeholder after rate limit", summaries[2])
	}
	if got := e.fetcher.CallsFor(rawURL("risks/ri-3_c.md")); got != 0 {
		t.Errorf("ri-3_c.md fetched %d times after rate limit, want 0", got)
	}
}

func TestList_UsesExpiredEntriesWithoutRefetch(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_old.md"))
	stale := makeDoc(models.CategoryRisk, "1_old", "Old But Known", time.Now().Add(-2*time.Hour))
	e.docs.PutAt("risk/1_old", stale, stale.FetchedAt)

	summaries, err := e.svc.List(context.Background(), models.CategoryRisk)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].Title != "Old But Known" || summaries[0].Placeholder {
		t.Errorf("summaries = %+v, want the expired entry's metadata", summaries)
	}
	if got := e.fetcher.CallsFor(rawURL("risks/ri-1_old.md")); got != 0 {
		t.Errorf("raw fetches = %d, want 0", got)
	}
}

func TestSearch_PerformsNoFetches(t *testing.T) {
	e := newEnv(t, seed.Default())
	doc := makeDoc(models.CategoryRisk, "1_prompt-injection", "Prompt Injection", time.Now())
	e.docs.Put("risk/1_prompt-injection", doc)

	matches, err := e.svc.Search(context.Background(), "", "injection")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1: %+v", len(matches), matches)
	}
	m := matches[0]
	if m.ID != "1_prompt-injection" || m.Kind != search.MatchTitle || m.Placeholder {
		t.Errorf("match = %+v, want cached title match", m)
	}
	if got := e.fetcher.Calls(); got != 0 {
		t.Errorf("fetches during search = %d, want 0", got)
	}
}

func TestSearch_SeedPlaceholdersSearchable(t *testing.T) {
	e := newEnv(t, seed.Default())

	matches, err := e.svc.Search(context.Background(), models.CategoryRisk, "leakage")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1: %+v", len(matches), matches)
	}
	if matches[0].ID != "2_data-leakage" || !matches[0].Placeholder {
		t.Errorf("match = %+v, want placeholder from seed filename", matches[0])
	}
	if got := e.fetcher.Calls(); got != 0 {
		t.Errorf("fetches during search = %d, want 0", got)
	}
}

func TestSearch_TitleMatchesBeforePreviewMatches(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	a := makeDoc(models.CategoryRisk, "1_a", "Nothing here", time.Now())
	a.Preview = "mentions shadow integrations"
	b := makeDoc(models.CategoryRisk, "2_b", "Shadow systems", time.Now())
	b.Preview = "unrelated"
	e.docs.Put("risk/1_a", a)
	e.docs.Put("risk/2_b", b)

	matches, err := e.svc.Search(context.Background(), models.CategoryRisk, "shadow")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].ID != "2_b" || matches[0].Kind != search.MatchTitle {
		t.Errorf("matches[0] = %+v, want title match first", matches[0])
	}
	if matches[1].ID != "1_a" || matches[1].Kind != search.MatchPreview {
		t.Errorf("matches[1] = %+v, want preview match second", matches[1])
	}
}

func TestSearch_CategoryScopesCandidates(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	e.docs.Put("risk/1_shared", makeDoc(models.CategoryRisk, "1_shared", "Shared term", time.Now()))
	e.docs.Put("mitigation/1_shared", makeDoc(models.CategoryMitigation, "1_shared", "Shared term", time.Now()))

	matches, err := e.svc.Search(context.Background(), models.CategoryMitigation, "shared")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Category != models.CategoryMitigation {
		t.Errorf("matches = %+v, want only the mitigation document", matches)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	e := newEnv(t, seedsWith(nil))
	_, err := e.svc.Search(context.Background(), "", "   ")
	if !errors.Is(err, apperr.ErrEmptyQuery) {
		t.Fatalf("Search() error = %v, want ErrEmptyQuery", err)
	}
	if info := Describe(err); info.Type != "invalid_argument" {
		t.Errorf("Describe().Type = %q, want %q", info.Type, "invalid_argument")
	}
}

func TestSyncSeed_ReplacesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	initial := "version: 2\ncategories:\n  risks:\n    - ri-9_old.md\n"
	if err := os.WriteFile(path, []byte(initial), 0o644); err != nil {
		t.Fatal(err)
	}
	seeds, err := seed.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	e := newEnv(t, seeds)
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_new.md", "ri-2_more.md"))
	e.fetcher.Respond(listingURL("mitigations"), testutil.ListingJSON("mi-1_val.md"))
	e.fetcher.Respond(listingURL("frameworks"), testutil.ListingJSON("fw-1_nist.md"))

	counts, err := e.svc.SyncSeed(context.Background())
	if err != nil {
		t.Fatalf("SyncSeed() error = %v", err)
	}
	if counts[models.CategoryRisk] != 2 || counts[models.CategoryMitigation] != 1 || counts[models.CategoryFramework] != 1 {
		t.Errorf("counts = %v", counts)
	}
	if got := seeds.Version(); got != 5 {
		t.Errorf("version = %d, want 5 after three replacements", got)
	}

	reloaded, err := seed.Load(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	got := reloaded.Files(models.CategoryRisk)
	if len(got) != 2 || got[0] != "ri-1_new.md" || got[1] != "ri-2_more.md" {
		t.Errorf("persisted risks = %v", got)
	}
}

func TestSyncSeed_PartialFailureKeepsOldEntries(t *testing.T) {
	seeds := seedsWith(map[models.Category][]string{
		models.CategoryRisk: {"ri-1_keep.md"},
	})
	e := newEnv(t, seeds)
	e.fetcher.Fail(listingURL("risks"), &fetch.Error{URL: listingURL("risks"), Attempts: 3, Err: errors.New("unreachable")})
	e.fetcher.Respond(listingURL("mitigations"), testutil.ListingJSON("mi-1_new.md"))
	e.fetcher.Respond(listingURL("frameworks"), testutil.ListingJSON("fw-1_new.md"))

	counts, err := e.svc.SyncSeed(context.Background())
	if err != nil {
		t.Fatalf("SyncSeed() error = %v, want nil on partial success", err)
	}
	if _, ok := counts[models.CategoryRisk]; ok {
		t.Errorf("counts includes the failed category: %v", counts)
	}
	if got := e.seeds.Files(models.CategoryRisk); len(got) != 1 || got[0] != "ri-1_keep.md" {
		t.Errorf("risk seed = %v, want untouched", got)
	}
	if got := e.seeds.Files(models.CategoryMitigation); len(got) != 1 || got[0] != "mi-1_new.md" {
		t.Errorf("mitigation seed = %v, want refreshed", got)
	}
}

func TestSyncSeed_TotalFailureErrors(t *testing.T) {
	e := newEnv(t, seedsWith(map[models.Category][]string{
		models.CategoryRisk: {"ri-1_keep.md"},
	}))
	for _, dir := range []string{"risks", "mitigations", "frameworks"} {
		e.fetcher.Fail(listingURL(dir), &fetch.Error{URL: listingURL(dir), Attempts: 3, Err: errors.New("unreachable")})
	}

	counts, err := e.svc.SyncSeed(context.Background())
	if err == nil {
		t.Fatal("SyncSeed() error = nil, want error when every category fails")
	}
	if len(counts) != 0 {
		t.Errorf("counts = %v, want empty", counts)
	}
	if got := e.seeds.Files(models.CategoryRisk); len(got) != 1 || got[0] != "ri-1_keep.md" {
		t.Errorf("risk seed = %v, want untouched", got)
	}
}

func TestWarmFromSnapshot_RestoresOriginalFetchTimes(t *testing.T) {
	snap := testutil.TestSnapshot(t)
	fresh := makeDoc(models.CategoryRisk, "1_fresh", "Fresh", time.Now().Add(-time.Minute))
	old := makeDoc(models.CategoryRisk, "2_old", "Old", time.Now().Add(-3*time.Hour))
	if err := snap.Upsert(fresh); err != nil {
		t.Fatal(err)
	}
	if err := snap.Upsert(old); err != nil {
		t.Fatal(err)
	}

	e := newEnv(t, seedsWith(nil), WithSnapshot(snap))
	n, err := e.svc.WarmFromSnapshot()
	if err != nil {
		t.Fatalf("WarmFromSnapshot() error = %v", err)
	}
	if n != 2 {
		t.Errorf("warmed = %d, want 2", n)
	}
	if _, ok := e.docs.Get("risk/1_fresh"); !ok {
		t.Error("fresh document not served from warmed cache")
	}
	if _, ok := e.docs.Get("risk/2_old"); ok {
		t.Error("expired document served as fresh after warming")
	}
	if _, _, ok := e.docs.GetStale("risk/2_old"); !ok {
		t.Error("expired document missing from stale reads after warming")
	}
}

func TestStats_ReportsCachesSeedAndSnapshot(t *testing.T) {
	snap := testutil.TestSnapshot(t)
	e := newEnv(t, seedsWith(nil), WithSnapshot(snap))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_a.md"))
	e.fetcher.Respond(rawURL("risks/ri-1_a.md"), docText("Alpha", 1))

	if _, err := e.svc.Get(context.Background(), models.CategoryRisk, "1_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.svc.Get(context.Background(), models.CategoryRisk, "1_a"); err != nil {
		t.Fatal(err)
	}

	stats := e.svc.Stats()
	if stats.Documents.Hits != 1 || stats.Documents.Misses != 1 {
		t.Errorf("document stats = %+v, want 1 hit / 1 miss", stats.Documents)
	}
	if stats.SeedVersion != e.seeds.Version() {
		t.Errorf("SeedVersion = %d, want %d", stats.SeedVersion, e.seeds.Version())
	}
	if stats.SnapshotDocuments != 1 {
		t.Errorf("SnapshotDocuments = %d, want 1", stats.SnapshotDocuments)
	}
}

func TestGet_PublishesFetchEvent(t *testing.T) {
	broker := events.NewBroker(0)
	defer broker.Close()
	ch := broker.Subscribe()
	deadline := time.Now().Add(time.Second)
	for broker.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e := newEnv(t, seedsWith(nil), WithEvents(broker))
	e.fetcher.Respond(listingURL("risks"), testutil.ListingJSON("ri-1_evt.md"))
	e.fetcher.Respond(rawURL("risks/ri-1_evt.md"), docText("Evented", 1))

	if _, err := e.svc.Get(context.Background(), models.CategoryRisk, "1_evt"); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "document.fetched") || !strings.Contains(s, `"id":"1_evt"`) {
			t.Errorf("event = %q, want document.fetched for 1_evt", s)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestDescribe_Classification(t *testing.T) {
	reset := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"not_found", fmt.Errorf("risk/9: %w", apperr.ErrNotFound), "not_found"},
		{"invalid_category", fmt.Errorf("parse: %w", apperr.ErrInvalidCategory), "invalid_argument"},
		{"empty_query", fmt.Errorf("search: %w", apperr.ErrEmptyQuery), "invalid_argument"},
		{"rate_limited", &fetch.RateLimitError{URL: "u", ResetAt: reset}, "rate_limited"},
		{"unavailable", &fetch.Error{URL: "u", Attempts: 3, Err: errors.New("boom")}, "unavailable"},
		{"canceled", context.Canceled, "canceled"},
		{"parse", &parser.ParseError{Err: errors.New("yaml: bad")}, "parse_error"},
		{"internal", errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if info := Describe(tc.err); info.Type != tc.want {
				t.Errorf("Describe(%v).Type = %q, want %q", tc.err, info.Type, tc.want)
			}
		})
	}

	info := Describe(&fetch.RateLimitError{URL: "u", ResetAt: reset})
	if got := info.Context["reset_at"]; got != "2026-03-01T10:00:00Z" {
		t.Errorf("reset_at = %v, want RFC 3339", got)
	}
	info = Describe(&fetch.Error{URL: "u", Attempts: 3, Err: errors.New("x")})
	if got := info.Context["attempts"]; got != 3 {
		t.Errorf("attempts = %v, want 3", got)
	}
}
