// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/halvard/muninn/internal/api"
	"github.com/halvard/muninn/internal/cache"
	"github.com/halvard/muninn/internal/content"
	"github.com/halvard/muninn/internal/discovery"
	"github.com/halvard/muninn/internal/events"
	"github.com/halvard/muninn/internal/fetch"
	"github.com/halvard/muninn/internal/mcpserver"
	"github.com/halvard/muninn/internal/models"
	"github.com/halvard/muninn/internal/seed"
	"github.com/halvard/muninn/internal/snapshot"
)

// Listings are one cache entry per category, so the cache stays tiny.
const listingCacheEntries = 8

// Snapshot rows older than this are dropped at boot rather than warmed:
// content that old should be refetched, not served stale.
const snapshotRetention = 30 * 24 * time.Hour

// pipeline bundles the wired content stack shared by the HTTP, MCP,
// and sync-seed entry points.
type pipeline struct {
	svc    *content.Service
	seeds  *seed.Registry
	snap   *snapshot.Store
	logger *slog.Logger
}

func (p *pipeline) Close() {
	if p.snap != nil {
		if err := p.snap.Close(); err != nil {
			p.logger.Warn("snapshot close failed", slog.String("error", err.Error()))
		}
	}
}

// buildPipeline wires fetcher, seed registry, caches, lister, snapshot,
// and content service from the configuration. broker may be nil when no
// event stream is wanted (MCP and sync-seed modes).
func buildPipeline(cfg *Config, logger *slog.Logger, broker *events.Broker) (*pipeline, error) {
	fetcher, err := fetch.NewClient(cfg.Fetch.ClientConfig(cfg.Source.Token))
	if err != nil {
		return nil, fmt.Errorf("init fetch client: %w", err)
	}

	var seeds *seed.Registry
	if cfg.Seed.Path != "" {
		seeds, err = seed.Load(cfg.Seed.Path)
		if err != nil {
			return nil, fmt.Errorf("load seed file: %w", err)
		}
		logger.Info("seed list loaded",
			slog.String("path", cfg.Seed.Path),
			slog.Int("version", seeds.Version()))
	} else {
		seeds = seed.Default()
	}

	listings, err := cache.New[models.FileList](cfg.Cache.TTL(), listingCacheEntries)
	if err != nil {
		return nil, fmt.Errorf("init listing cache: %w", err)
	}
	docs, err := cache.New[*models.Document](cfg.Cache.TTL(), cfg.Cache.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("init document cache: %w", err)
	}

	src := cfg.Source.FetchSource()

	var listerOpts []discovery.Option
	if broker != nil {
		listerOpts = append(listerOpts, discovery.WithFallbackHook(func(c models.Category, cause error) {
			broker.Publish(events.Event{Type: "discovery.fallback", Data: map[string]string{
				"category": string(c),
				"error":    cause.Error(),
			}})
		}))
	}
	lister := discovery.NewLister(fetcher, src, cfg.Source.Dirs.Overrides(), listings, seeds, logger, listerOpts...)

	var svcOpts []content.Option
	var snap *snapshot.Store
	if cfg.Snapshot.Path != "" {
		snap, err = snapshot.Open(cfg.Snapshot.Path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot: %w", err)
		}
		svcOpts = append(svcOpts, content.WithSnapshot(snap))
	}
	if broker != nil {
		svcOpts = append(svcOpts, content.WithEvents(broker))
	}

	svc := content.NewService(fetcher, lister, docs, seeds, src, logger, svcOpts...)
	return &pipeline{svc: svc, seeds: seeds, snap: snap, logger: logger}, nil
}

func warmCache(pl *pipeline, logger *slog.Logger) {
	if pl.snap != nil {
		if n, err := pl.snap.Prune(time.Now().Add(-snapshotRetention)); err != nil {
			logger.Warn("snapshot prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			logger.Info("snapshot pruned", slog.Int("documents", n))
		}
	}

	n, err := pl.svc.WarmFromSnapshot()
	if err != nil {
		logger.Warn("snapshot warm failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		logger.Info("cache warmed from snapshot", slog.Int("documents", n))
	}
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("source", cfg.Source.Owner+"/"+cfg.Source.Repo+"@"+cfg.Source.Branch),
		slog.String("snapshot_path", cfg.Snapshot.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := events.NewBroker(2 * time.Second)
	defer broker.Close()

	pl, err := buildPipeline(cfg, logger, broker)
	if err != nil {
		return err
	}
	defer pl.Close()

	warmCache(pl, logger)

	// Build API router; the event stream shares the API auth policy.
	apiRouter := api.NewRouter(pl.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Watch the seed file so edits take effect without a restart.
	if cfg.Seed.Watch {
		g.Go(func() error {
			err := seed.Watch(gCtx, pl.seeds, logger, func() {
				broker.Publish(events.Event{Type: "seed.reloaded", Data: map[string]interface{}{
					"version": pl.seeds.Version(),
				}})
			})
			if err != nil {
				// A broken watcher degrades hot reload, not the server.
				logger.Warn("seed watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP starts the MCP server on stdio with the given options. Logs
// go to stderr because stdout carries the protocol stream.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	pl, err := buildPipeline(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer pl.Close()

	warmCache(pl, logger)

	if cfg.Seed.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := seed.Watch(watchCtx, pl.seeds, logger, nil); err != nil {
				logger.Warn("seed watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("Starting MCP server on stdio",
		slog.String("source", cfg.Source.Owner+"/"+cfg.Source.Repo+"@"+cfg.Source.Branch))

	return mcpserver.New(pl.svc).ServeStdio()
}

// RunSeedSync refreshes the fallback seed list from live listings once
// and exits.
func RunSeedSync(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts...)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	pl, err := buildPipeline(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer pl.Close()

	counts, err := pl.svc.SyncSeed(ctx)
	if err != nil {
		return fmt.Errorf("seed sync: %w", err)
	}

	for _, c := range models.Categories() {
		if n, ok := counts[c]; ok {
			logger.Info("seed category synced",
				slog.String("category", string(c)),
				slog.Int("files", n))
		}
	}

	if pl.seeds.Path() == "" {
		logger.Warn("seed registry has no backing file; refreshed list not persisted")
	}

	return nil
}
