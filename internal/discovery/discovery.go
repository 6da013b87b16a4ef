// Package discovery resolves each category's file listing: live from
// the host's directory API when possible, from the seed registry when
// not. Listings are cached under TTL either way; fallback is never an
// error unless the seed itself has no entries.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/halvard/muninn/internal/cache"
	"github.com/halvard/muninn/internal/fetch"
	"github.com/halvard/muninn/internal/models"
	"github.com/halvard/muninn/internal/seed"
)

// contentsEntry is the slice element of the host's directory API.
type contentsEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Lister answers "which files does this category have" with a cached,
// fallback-backed listing.
type Lister struct {
	fetcher  fetch.Fetcher
	source   fetch.Source
	dirs     map[models.Category]string
	listings *cache.Cache[models.FileList]
	seeds    *seed.Registry
	logger   *slog.Logger

	onFallback func(c models.Category, cause error)
}

// Option configures optional Lister behavior.
type Option func(*Lister)

// WithFallbackHook registers fn to run whenever a live listing fails
// and the seed registry stands in.
func WithFallbackHook(fn func(c models.Category, cause error)) Option {
	return func(l *Lister) { l.onFallback = fn }
}

// NewLister builds a Lister. dirs maps categories to repository
// directories; missing entries use the category default.
func NewLister(fetcher fetch.Fetcher, source fetch.Source, dirs map[models.Category]string, listings *cache.Cache[models.FileList], seeds *seed.Registry, logger *slog.Logger, opts ...Option) *Lister {
	l := &Lister{
		fetcher:  fetcher,
		source:   source,
		dirs:     make(map[models.Category]string, len(dirs)),
		listings: listings,
		seeds:    seeds,
		logger:   logger,
	}
	for c, d := range dirs {
		l.dirs[c] = d
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dir returns the repository directory for a category.
func (l *Lister) Dir(c models.Category) string {
	if d := l.dirs[c]; d != "" {
		return d
	}
	return c.DefaultDir()
}

// Files returns the category's listing: cached if fresh, otherwise
// fetched live, otherwise the seed fallback. The error is non-nil only
// when the live fetch failed and the seed has no entries either.
func (l *Lister) Files(ctx context.Context, c models.Category) (models.FileList, error) {
	if fl, ok := l.listings.Get(string(c)); ok {
		return fl, nil
	}

	fl, err := l.fetchLive(ctx, c)
	if err == nil {
		l.listings.Put(string(c), fl)
		return fl, nil
	}

	l.logger.Warn("discovery: live listing failed, using fallback",
		slog.String("category", string(c)),
		slog.String("error", err.Error()))
	if l.onFallback != nil {
		l.onFallback(c, err)
	}

	files := l.seeds.Files(c)
	if len(files) == 0 {
		return models.FileList{}, fmt.Errorf("list %s: seed has no entries: %w", c, err)
	}
	fl = models.FileList{Category: c, Files: files, Origin: models.OriginFallback, FetchedAt: time.Now()}
	l.listings.Put(string(c), fl)
	return fl, nil
}

// Refresh bypasses the cache and fetches a live listing. Unlike Files
// it does not fall back: callers syncing the seed want the truth or an
// error.
func (l *Lister) Refresh(ctx context.Context, c models.Category) (models.FileList, error) {
	fl, err := l.fetchLive(ctx, c)
	if err != nil {
		return models.FileList{}, err
	}
	l.listings.Put(string(c), fl)
	return fl, nil
}

// OfflineFiles returns a listing without any network use: the cached
// listing even if expired, otherwise the seed fallback. Search builds
// its candidate set from this.
func (l *Lister) OfflineFiles(c models.Category) models.FileList {
	if fl, _, ok := l.listings.GetStale(string(c)); ok {
		return fl
	}
	return models.FileList{Category: c, Files: l.seeds.Files(c), Origin: models.OriginFallback}
}

// Stats reports the listing cache counters.
func (l *Lister) Stats() cache.Stats {
	return l.listings.Stats()
}

func (l *Lister) fetchLive(ctx context.Context, c models.Category) (models.FileList, error) {
	url := l.source.ContentsURL(l.Dir(c))
	text, err := l.fetcher.Text(ctx, url)
	if err != nil {
		return models.FileList{}, err
	}

	var entries []contentsEntry
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return models.FileList{}, fmt.Errorf("decode listing for %s: %w", l.Dir(c), err)
	}

	var files []string
	for _, e := range entries {
		if e.Type != "file" || !strings.HasSuffix(e.Name, ".md") {
			continue
		}
		files = append(files, e.Name)
	}
	models.SortFiles(c, files)
	kept, dropped := models.DedupeByID(c, files)
	if len(dropped) > 0 {
		l.logger.Warn("discovery: dropped files with duplicate ids",
			slog.String("category", string(c)),
			slog.String("files", strings.Join(dropped, ",")))
	}

	return models.FileList{Category: c, Files: kept, Origin: models.OriginLive, FetchedAt: time.Now()}, nil
}
