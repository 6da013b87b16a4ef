// Package content orchestrates the document pipeline: cache lookups,
// discovery, fetching, parsing, and the degradation ladder that keeps
// reads answering when the upstream host is not.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/halvard/muninn/internal/apperr"
	"github.com/halvard/muninn/internal/cache"
	"github.com/halvard/muninn/internal/checksum"
	"github.com/halvard/muninn/internal/discovery"
	"github.com/halvard/muninn/internal/events"
	"github.com/halvard/muninn/internal/fetch"
	"github.com/halvard/muninn/internal/models"
	"github.com/halvard/muninn/internal/parser"
	"github.com/halvard/muninn/internal/search"
	"github.com/halvard/muninn/internal/seed"
	"github.com/halvard/muninn/internal/snapshot"
)

// Outcome says how a document request was satisfied.
type Outcome string

const (
	// OutcomeCached: served fresh from the cache.
	OutcomeCached Outcome = "cached"
	// OutcomeFetched: fetched live and cached.
	OutcomeFetched Outcome = "fetched"
	// OutcomeParseDegraded: fetched live, frontmatter malformed, body-only.
	OutcomeParseDegraded Outcome = "parse_degraded"
	// OutcomeStale: upstream unavailable, expired cache entry served.
	OutcomeStale Outcome = "stale"
	// OutcomeMetadataOnly: upstream rate limited with nothing cached;
	// only filename-derived metadata is available.
	OutcomeMetadataOnly Outcome = "metadata_only"
)

// Result is a document plus how it was obtained. RetryAt carries the
// upstream rate-limit reset hint on degraded outcomes.
type Result struct {
	Document *models.Document `json:"document"`
	Outcome  Outcome          `json:"outcome"`
	RetryAt  *time.Time       `json:"retry_at,omitempty"`
}

// StatsBundle aggregates the observability counters a stats call reports.
type StatsBundle struct {
	Documents         cache.Stats `json:"documents"`
	Listings          cache.Stats `json:"listings"`
	SeedVersion       int         `json:"seed_version"`
	SnapshotDocuments int         `json:"snapshot_documents,omitempty"`
}

// Service coordinates the fetch client, discovery, caches, and seed
// registry behind the get/list/search operations.
type Service struct {
	fetcher fetch.Fetcher
	lister  *discovery.Lister
	docs    *cache.Cache[*models.Document]
	seeds   *seed.Registry
	source  fetch.Source
	logger  *slog.Logger

	group  singleflight.Group
	snap   *snapshot.Store
	broker *events.Broker
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithSnapshot persists fetched documents so a restart can warm the cache.
func WithSnapshot(s *snapshot.Store) Option {
	return func(svc *Service) { svc.snap = s }
}

// WithEvents publishes document lifecycle events to the broker.
func WithEvents(b *events.Broker) Option {
	return func(svc *Service) { svc.broker = b }
}

// NewService creates the content service.
func NewService(fetcher fetch.Fetcher, lister *discovery.Lister, docs *cache.Cache[*models.Document], seeds *seed.Registry, source fetch.Source, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		lister:  lister,
		docs:    docs,
		seeds:   seeds,
		source:  source,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func docKey(c models.Category, id string) string {
	return string(c) + "/" + id
}

// Get returns a single document. Fresh cache entries are served without
// any network use; otherwise the requested identifier is resolved
// through discovery and the document fetched, with stale or
// metadata-only fallbacks when the upstream host degrades.
func (s *Service) Get(ctx context.Context, c models.Category, id string) (*Result, error) {
	norm := models.NormalizeID(c, id)
	if doc, ok := s.docs.Get(docKey(c, norm)); ok {
		return &Result{Document: doc, Outcome: OutcomeCached}, nil
	}

	fl, err := s.lister.Files(ctx, c)
	if err != nil {
		return nil, err
	}
	filename := models.ResolveFilename(fl.Files, c, id)
	if filename == "" {
		return nil, fmt.Errorf("%s/%s: %w", c, strings.TrimSpace(id), apperr.ErrNotFound)
	}

	canonical := models.DeriveID(c, filename)
	if canonical != norm {
		if doc, ok := s.docs.Get(docKey(c, canonical)); ok {
			return &Result{Document: doc, Outcome: OutcomeCached}, nil
		}
	}
	return s.fetchDocument(ctx, c, filename, canonical)
}

// List returns summaries for every document in the category, in
// canonical order. Documents not yet cached are hydrated lazily; the
// first rate limit stops further fetching for the pass and the
// remaining files appear as filename placeholders.
func (s *Service) List(ctx context.Context, c models.Category) ([]models.Summary, error) {
	fl, err := s.lister.Files(ctx, c)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.Summary, 0, len(fl.Files))
	rateLimited := false
	for _, filename := range fl.Files {
		canonical := models.DeriveID(c, filename)
		key := docKey(c, canonical)

		if doc, ok := s.docs.Get(key); ok {
			summaries = append(summaries, summaryOf(doc))
			continue
		}
		// An expired entry still describes the document better than
		// its filename does.
		if doc, _, ok := s.docs.GetStale(key); ok {
			summaries = append(summaries, summaryOf(doc))
			continue
		}
		if rateLimited {
			summaries = append(summaries, placeholderSummary(c, canonical, filename))
			continue
		}

		res, err := s.fetchDocument(ctx, c, filename, canonical)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			s.logger.Warn("content: list hydration failed",
				slog.String("category", string(c)),
				slog.String("id", canonical),
				slog.String("error", err.Error()))
			summaries = append(summaries, placeholderSummary(c, canonical, filename))
			continue
		}
		if res.Outcome == OutcomeMetadataOnly {
			rateLimited = true
			summaries = append(summaries, placeholderSummary(c, canonical, filename))
			continue
		}
		summaries = append(summaries, summaryOf(res.Document))
	}
	return summaries, nil
}

// Search ranks the in-memory candidate set against query. It performs
// no fetches: candidates are cached documents (fresh or expired) plus
// filename placeholders from the best available listing. An empty
// category searches all categories in canonical order.
func (s *Service) Search(_ context.Context, c models.Category, query string) ([]search.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: %w", apperr.ErrEmptyQuery)
	}

	cats := models.Categories()
	if c != "" {
		cats = []models.Category{c}
	}
	var out []search.Match
	for _, cat := range cats {
		out = append(out, search.Rank(query, s.candidates(cat))...)
	}
	return out, nil
}

// SyncSeed refreshes every category listing live and replaces the seed
// registry's contents, persisting them when the registry is
// file-backed. Categories that fail to refresh keep their current seed
// entries; the call errors only when every category failed.
func (s *Service) SyncSeed(ctx context.Context) (map[models.Category]int, error) {
	counts := make(map[models.Category]int)
	var errs []error
	for _, c := range models.Categories() {
		fl, err := s.lister.Refresh(ctx, c)
		if err != nil {
			s.logger.Warn("content: seed sync refresh failed",
				slog.String("category", string(c)),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", c, err))
			continue
		}
		s.seeds.Replace(c, fl.Files)
		counts[c] = len(fl.Files)
	}
	if len(errs) == len(models.Categories()) {
		return counts, errors.Join(errs...)
	}
	if err := s.seeds.Save(); err != nil {
		return counts, err
	}

	s.logger.Info("content: seed synced", slog.Int("version", s.seeds.Version()))
	if s.broker != nil {
		s.broker.Publish(events.Event{Type: "seed.synced", Data: map[string]interface{}{
			"version": s.seeds.Version(),
			"counts":  counts,
		}})
	}
	return counts, nil
}

// WarmFromSnapshot loads persisted documents into the cache with their
// original fetch times, so TTL judges them as the restart found them.
func (s *Service) WarmFromSnapshot() (int, error) {
	if s.snap == nil {
		return 0, nil
	}
	docs, err := s.snap.All()
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		s.docs.PutAt(docKey(doc.Category, doc.ID), doc, doc.FetchedAt)
	}
	return len(docs), nil
}

// Stats reports cache counters, the seed revision, and snapshot size.
func (s *Service) Stats() StatsBundle {
	b := StatsBundle{
		Documents:   s.docs.Stats(),
		Listings:    s.lister.Stats(),
		SeedVersion: s.seeds.Version(),
	}
	if s.snap != nil {
		if n, err := s.snap.Count(); err == nil {
			b.SnapshotDocuments = n
		}
	}
	return b
}

// fetchDocument coalesces concurrent fetches of the same document into
// a single upstream request.
func (s *Service) fetchDocument(ctx context.Context, c models.Category, filename, canonical string) (*Result, error) {
	v, err, _ := s.group.Do(docKey(c, canonical), func() (interface{}, error) {
		return s.fetchAndStore(ctx, c, filename, canonical)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) fetchAndStore(ctx context.Context, c models.Category, filename, canonical string) (*Result, error) {
	key := docKey(c, canonical)
	path := s.lister.Dir(c) + "/" + filename

	raw, err := s.fetcher.Text(ctx, s.source.RawURL(path))
	if err != nil {
		return s.degrade(c, canonical, filename, err)
	}

	doc, parseDegraded := s.buildDocument(c, canonical, filename, path, []byte(raw))
	prev, _, hadPrev := s.docs.GetStale(key)
	changed := !hadPrev || prev.Checksum != doc.Checksum
	s.docs.Put(key, doc)
	if s.snap != nil {
		if err := s.snap.Upsert(doc); err != nil {
			s.logger.Warn("content: snapshot upsert failed",
				slog.String("id", doc.ID),
				slog.String("error", err.Error()))
		}
	}

	outcome := OutcomeFetched
	kind := events.DocFetched
	if parseDegraded {
		outcome = OutcomeParseDegraded
		kind = events.DocDegraded
		s.logger.Warn("content: frontmatter malformed, serving body only",
			slog.String("category", string(c)),
			slog.String("id", canonical))
	}
	s.logger.Info("content: document fetched",
		slog.String("category", string(c)),
		slog.String("id", canonical),
		slog.String("checksum", checksum.Short([]byte(raw))),
		slog.Bool("changed", changed))
	if s.broker != nil {
		s.broker.PublishDocumentEvent(kind, string(c), canonical)
	}
	return &Result{Document: doc, Outcome: outcome}, nil
}

// degrade decides what a failed fetch becomes: a stale copy, a
// metadata-only placeholder, or an error the caller has to see.
func (s *Service) degrade(c models.Category, canonical, filename string, cause error) (*Result, error) {
	key := docKey(c, canonical)

	var rl *fetch.RateLimitError
	var fe *fetch.Error
	isRateLimit := errors.As(cause, &rl)

	if isRateLimit || errors.As(cause, &fe) {
		if doc, fetchedAt, ok := s.docs.GetStale(key); ok {
			s.logger.Warn("content: serving stale copy",
				slog.String("category", string(c)),
				slog.String("id", canonical),
				slog.Time("fetched_at", fetchedAt),
				slog.String("cause", cause.Error()))
			if s.broker != nil {
				s.broker.PublishDocumentEvent(events.DocStale, string(c), canonical)
			}
			res := &Result{Document: doc, Outcome: OutcomeStale}
			if isRateLimit && !rl.ResetAt.IsZero() {
				t := rl.ResetAt
				res.RetryAt = &t
			}
			return res, nil
		}
	}

	if isRateLimit {
		s.logger.Warn("content: rate limited with no cached copy",
			slog.String("category", string(c)),
			slog.String("id", canonical),
			slog.Time("reset_at", rl.ResetAt))
		if s.broker != nil {
			s.broker.PublishDocumentEvent(events.DocDegraded, string(c), canonical)
		}
		res := &Result{Document: s.placeholderDoc(c, canonical, filename), Outcome: OutcomeMetadataOnly}
		if !rl.ResetAt.IsZero() {
			t := rl.ResetAt
			res.RetryAt = &t
		}
		return res, nil
	}

	if errors.Is(cause, apperr.ErrNotFound) {
		// The listing said this file exists; the host disagrees. Treat
		// the listing as drifted and drop whatever we were holding.
		s.logger.Warn("content: listed document missing upstream",
			slog.String("category", string(c)),
			slog.String("file", filename))
		s.docs.Delete(key)
		if s.snap != nil {
			if err := s.snap.Delete(c, canonical); err != nil {
				s.logger.Warn("content: snapshot delete failed", slog.String("error", err.Error()))
			}
		}
		return nil, fmt.Errorf("%s/%s: %w", c, canonical, apperr.ErrNotFound)
	}

	return nil, cause
}

func (s *Service) buildDocument(c models.Category, canonical, filename, path string, raw []byte) (*models.Document, bool) {
	res, err := parser.Parse(raw)
	parseDegraded := err != nil

	title := res.Title
	if title == "" {
		title = filename
	}
	seq := res.Sequence
	if seq == 0 {
		if n, ok := models.SequenceOf(canonical); ok {
			seq = n
		}
	}
	return &models.Document{
		ID:        canonical,
		Category:  c,
		Title:     title,
		Status:    res.Status,
		Sequence:  seq,
		Metadata:  res.Metadata,
		Body:      res.Body,
		Preview:   res.Preview,
		SourceURI: s.source.HTMLURL(path),
		Checksum:  checksum.Sum(raw),
		FetchedAt: time.Now(),
	}, parseDegraded
}

func (s *Service) placeholderDoc(c models.Category, canonical, filename string) *models.Document {
	seq, _ := models.SequenceOf(canonical)
	return &models.Document{
		ID:        canonical,
		Category:  c,
		Title:     filename,
		Sequence:  seq,
		SourceURI: s.source.HTMLURL(s.lister.Dir(c) + "/" + filename),
	}
}

// candidates builds the category's search space: every cached document
// keyed by ID, supplemented with filename placeholders for listed files
// that were never fetched, in canonical order.
func (s *Service) candidates(c models.Category) []search.Candidate {
	prefix := string(c) + "/"
	byID := make(map[string]search.Candidate)

	s.docs.Range(func(key string, doc *models.Document, _ time.Time) bool {
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		byID[doc.ID] = search.Candidate{
			ID:       doc.ID,
			Category: c,
			Title:    doc.Title,
			Preview:  doc.Preview,
			Sequence: doc.Sequence,
		}
		return true
	})

	fl := s.lister.OfflineFiles(c)
	for _, filename := range fl.Files {
		id := models.DeriveID(c, filename)
		if _, ok := byID[id]; ok {
			continue
		}
		seq, _ := models.SequenceOf(id)
		byID[id] = search.Candidate{
			ID:          id,
			Category:    c,
			Title:       filename,
			Sequence:    seq,
			Placeholder: true,
		}
	}

	cands := make([]search.Candidate, 0, len(byID))
	for _, cand := range byID {
		cands = append(cands, cand)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		si, sj := seqRank(cands[i].Sequence), seqRank(cands[j].Sequence)
		if si != sj {
			return si < sj
		}
		return cands[i].ID < cands[j].ID
	})
	return cands
}

func seqRank(seq int) int {
	if seq <= 0 {
		return math.MaxInt
	}
	return seq
}

func summaryOf(doc *models.Document) models.Summary {
	return models.Summary{
		ID:       doc.ID,
		Category: doc.Category,
		Title:    doc.Title,
		Status:   doc.Status,
		Sequence: doc.Sequence,
	}
}

func placeholderSummary(c models.Category, canonical, filename string) models.Summary {
	seq, _ := models.SequenceOf(canonical)
	return models.Summary{
		ID:          canonical,
		Category:    c,
		Title:       filename,
		Sequence:    seq,
		Placeholder: true,
	}
}
