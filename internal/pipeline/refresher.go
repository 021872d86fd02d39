package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
	"github.com/pepdex-hq/pepdex-price-harvester/internal/logger"
)

// Package pipeline drives the batch price refresh: select the stalest
// (peptide, reseller) pairs, walk each through locate → fetch → extract →
// persist, and aggregate the outcomes. Pairs run strictly sequentially with
// a fixed delay in between so shared backend rate limits hold; this is a
// deliberate throughput trade-off, not a missing feature.

// ErrRunInProgress is returned when a refresh run is triggered while another
// run from this process is still active.
var ErrRunInProgress = errors.New("refresh run already in progress")

// ErrNotConfigured is returned when a mandatory backend credential is absent.
// It is fatal to the whole run; no pair is processed.
var ErrNotConfigured = errors.New("refresh backends not configured")

const defaultPairDelay = 500 * time.Millisecond

// Refresher orchestrates one batch refresh run.
type Refresher struct {
	store     BatchStore
	locator   Locator
	fetcher   Fetcher
	extractor Extractor

	pairDelay time.Duration
	cache     CacheFlusher
	notifier  SummaryNotifier

	running atomic.Bool
}

// NewRefresher wires the orchestrator with its four collaborators.
func NewRefresher(store BatchStore, locator Locator, fetcher Fetcher, extractor Extractor) *Refresher {
	return &Refresher{
		store:     store,
		locator:   locator,
		fetcher:   fetcher,
		extractor: extractor,
		pairDelay: defaultPairDelay,
	}
}

// WithPairDelay sets the fixed pause between pairs. Zero disables pacing.
func (r *Refresher) WithPairDelay(d time.Duration) *Refresher {
	r.pairDelay = d
	return r
}

// WithCache attaches the latest-prices cache to flush after each run.
func (r *Refresher) WithCache(cache CacheFlusher) *Refresher {
	r.cache = cache
	return r
}

// WithNotifier attaches a run-summary notifier.
func (r *Refresher) WithNotifier(n SummaryNotifier) *Refresher {
	r.notifier = n
	return r
}

// Running reports whether a run is currently active in this process.
func (r *Refresher) Running() bool {
	return r.running.Load()
}

// Run selects up to batchSize pairs and processes them sequentially. Only
// configuration and batch-selection failures are returned as errors; every
// per-pair failure is contained in the summary. Context expiry (the host's
// run budget) stops processing before the next pair; pairs left unprocessed
// simply stay stale and lead the next batch.
func (r *Refresher) Run(ctx context.Context, batchSize int) (domain.RunSummary, error) {
	if err := r.validate(); err != nil {
		return domain.RunSummary{}, err
	}

	if !r.running.CompareAndSwap(false, true) {
		return domain.RunSummary{}, ErrRunInProgress
	}
	defer r.running.Store(false)

	start := time.Now()
	summary := domain.RunSummary{StartedAt: start.UTC(), Results: []domain.PairResult{}}

	candidates, err := r.store.SelectRefreshBatch(ctx, batchSize)
	if err != nil {
		return domain.RunSummary{}, fmt.Errorf("select refresh batch: %w", err)
	}

	logger.InfoObj("refresh run starting", "run_meta", map[string]any{
		"batch_size": batchSize,
		"candidates": len(candidates),
	})

	for i, cand := range candidates {
		if ctx.Err() != nil {
			logger.WarnObj("refresh run truncated by deadline", "run_meta", map[string]any{
				"processed": i,
				"selected":  len(candidates),
			})
			break
		}

		logger.InfoObj("processing pair", "pair_meta", map[string]any{
			"index":    fmt.Sprintf("%d/%d", i+1, len(candidates)),
			"peptide":  cand.PeptideName,
			"reseller": cand.ResellerName,
		})

		summary.Count(r.processPair(ctx, cand))

		if r.pairDelay > 0 && i < len(candidates)-1 {
			if !sleepCtx(ctx, r.pairDelay) {
				break
			}
		}
	}

	summary.Elapsed = time.Since(start)

	logger.InfoObj("refresh run completed", "run_summary", map[string]any{
		"total":      summary.Total,
		"success":    summary.Success,
		"errors":     summary.Errors,
		"skipped":    summary.Skipped,
		"elapsed_ms": summary.Elapsed.Milliseconds(),
	})

	if r.cache != nil {
		r.cache.Flush()
	}
	if r.notifier != nil {
		r.notifier.PublishSummary(ctx, summary)
	}

	return summary, nil
}

// validate checks the mandatory backend credentials before any batch work.
func (r *Refresher) validate() error {
	if r.store == nil || r.locator == nil || r.fetcher == nil || r.extractor == nil {
		return fmt.Errorf("%w: missing collaborator", ErrNotConfigured)
	}
	if !r.extractor.Configured() {
		return fmt.Errorf("%w: extraction credential missing", ErrNotConfigured)
	}
	if !r.locator.Configured() {
		return fmt.Errorf("%w: search credential missing", ErrNotConfigured)
	}
	return nil
}

// processPair walks one pair through the locate → fetch → extract → persist
// state machine. Any panic is recovered here so a single pair can never
// abort the batch.
func (r *Refresher) processPair(ctx context.Context, cand domain.RefreshCandidate) (res domain.PairResult) {
	res = domain.PairResult{
		Peptide:  cand.PeptideName,
		Reseller: cand.ResellerName,
	}

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = domain.StatusError
			res.Message = fmt.Sprintf("unexpected failure: %v", rec)
			logger.ErrorObj("pair processing panicked", "pair_error", map[string]any{
				"peptide":  cand.PeptideName,
				"reseller": cand.ResellerName,
				"panic":    fmt.Sprintf("%v", rec),
			})
		}
	}()

	hit, err := r.locator.Locate(ctx, cand.PeptideName, cand.ResellerBaseURL)
	if err != nil {
		res.Status = domain.StatusError
		res.Message = fmt.Sprintf("search failed: %v", err)
		return res
	}
	if hit == nil {
		res.Status = domain.StatusSkipped
		res.Message = "product not found in search"
		return res
	}
	res.URL = hit.URL

	content := r.fetcher.Fetch(ctx, hit.URL)
	if content == "" {
		res.Status = domain.StatusError
		res.Message = "failed to scrape url"
		return res
	}

	price, err := r.extractor.Extract(ctx, content, cand.PeptideName, cand.ResellerName)
	if err != nil {
		res.Status = domain.StatusError
		res.Message = fmt.Sprintf("extraction failed: %v", err)
		return res
	}
	if price == nil {
		res.Status = domain.StatusError
		res.Message = "failed to extract price"
		return res
	}

	obs := buildObservation(cand, hit.URL, price)
	if err := r.store.AppendPrice(ctx, obs); err != nil {
		res.Status = domain.StatusError
		res.Message = fmt.Sprintf("persist failed: %v", err)
		return res
	}

	res.Status = domain.StatusSuccess
	res.Price = domain.FormatCents(price.PriceCents)
	return res
}

// buildObservation maps the strict extraction payload onto an insert row.
func buildObservation(cand domain.RefreshCandidate, url string, price *domain.ExtractedPrice) domain.NewPriceObservation {
	obs := domain.NewPriceObservation{
		PeptideID:   cand.PeptideID,
		ResellerID:  cand.ResellerID,
		ProductName: price.ProductName,
		PriceCents:  price.PriceCents,
		ProductURL:  url,
	}
	if price.OriginalPriceCents > 0 {
		v := price.OriginalPriceCents
		obs.OriginalPriceCents = &v
	}
	obs.SaleInfo = optionalText(price.SaleInfo)
	obs.BulkPricing = optionalText(price.BulkPricing)
	obs.Shipping = optionalText(price.Shipping)
	obs.ReturnPolicy = optionalText(price.ReturnPolicy)
	return obs
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// sleepCtx pauses for d unless the context ends first. Returns false when
// the wait was interrupted.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
