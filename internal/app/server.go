package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/config"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/extract"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/notify"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/pipeline"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/scrape"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/search"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/storage"
)

// Server is the aggregator runtime: the Postgres-backed read API plus the
// authenticated refresh trigger.
type Server struct {
	cfg       *config.Config
	store     storage.Store
	cache     *storage.LatestCache
	refresher Runner

	pageCache *storage.PageCache
	http      *http.Server
}

// Runner triggers one batch refresh run.
type Runner interface {
	Run(ctx context.Context, batchSize int) (domain.RunSummary, error)
}

// New wires the full runtime from config: store, backend clients, refresher,
// caches, and optional webhook notifier.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}

	store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, storage.Options{})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.InfoObj("storage initialized", "storage_config", map[string]any{
		"backend": "postgres",
	})

	cache := storage.NewLatestCache(cfg.PricesCacheTTL)

	locator := search.NewClient(cfg.SearchAPIKey, nil)
	fetcher := scrape.NewClient(cfg.FirecrawlAPIKey, nil)
	extractor := extract.NewClient(cfg.AnthropicAPIKey, cfg.MaxContentChars, nil)

	srv := &Server{
		cfg:   cfg,
		store: store,
		cache: cache,
	}

	if strings.TrimSpace(cfg.PageCachePath) != "" {
		pageCache, err := storage.OpenPageCache(cfg.PageCachePath, cfg.PageCacheTTL, cfg.PageCacheTTL/2)
		if err != nil {
			srv.closeStore()
			return nil, fmt.Errorf("open page cache: %w", err)
		}
		fetcher = fetcher.WithCache(pageCache)
		srv.pageCache = pageCache
		logger.InfoObj("page cache enabled", "page_cache_config", map[string]any{
			"path":        cfg.PageCachePath,
			"ttl_seconds": int(cfg.PageCacheTTL.Seconds()),
		})
	}

	refresher := pipeline.NewRefresher(store, locator, fetcher, extractor).
		WithPairDelay(cfg.PairDelay).
		WithCache(cache)

	if strings.TrimSpace(cfg.WebhooksFile) != "" {
		hookCfgs, err := notify.LoadWebhooks(cfg.WebhooksFile)
		if err != nil {
			srv.closeAll()
			return nil, fmt.Errorf("load webhooks: %w", err)
		}
		notifier := notify.NewNotifier(hookCfgs)
		refresher = refresher.WithNotifier(notifier)
		logger.InfoObj("webhooks loaded", "webhooks_meta", map[string]any{
			"count": notifier.Size(),
		})
	}

	srv.refresher = refresher

	// No WriteTimeout: the refresh trigger holds its connection for the
	// whole run, bounded by the run budget instead.
	srv.http = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv, nil
}

// Run serves HTTP until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeAll()

	errCh := make(chan error, 1)
	go func() {
		logger.InfoObj("http server listening", "listen_address", s.cfg.ListenAddress)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
	}

	logger.InfoObj("http server shutting down", "reason", ctx.Err().Error())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// Refresh triggers one batch run bounded by the configured run budget. Used
// by the one-shot CLI; the HTTP trigger applies the same bound per request.
func (s *Server) Refresh(ctx context.Context) (domain.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunBudget)
	defer cancel()
	return s.refresher.Run(ctx, s.cfg.BatchSize)
}

// Close releases storage resources for callers that never invoke Run.
func (s *Server) Close() {
	s.closeAll()
}

func (s *Server) closeStore() {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		logger.ErrorObj("storage close failed", "error", err.Error())
	}
}

func (s *Server) closeAll() {
	if s == nil {
		return
	}
	if s.pageCache != nil {
		if err := s.pageCache.Close(); err != nil {
			logger.ErrorObj("page cache close failed", "error", err.Error())
		}
	}
	s.closeStore()
}
