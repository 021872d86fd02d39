package storage

import (
	"context"
	"errors"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
)

// Package storage owns all persistence for the price pipeline. The pipeline
// only ever appends observations; history is never updated or deleted.

// ErrNotFound is returned when a referenced catalog entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence contract used by the refresh pipeline and the
// HTTP read surface.
type Store interface {
	Close() error
	Ping(ctx context.Context) error

	ListPeptides(ctx context.Context) ([]domain.Peptide, error)
	ListResellers(ctx context.Context) ([]domain.Reseller, error)

	// GetPeptide fetches one catalog entry, wrapping ErrNotFound when absent.
	GetPeptide(ctx context.Context, id string) (domain.Peptide, error)

	// LatestPrices returns one observation per (peptide, reseller) pair that
	// has at least one row: the maximum-scraped_at row, ties broken by row id.
	LatestPrices(ctx context.Context) ([]domain.PriceObservation, error)

	// PriceHistory returns recent observations for one pair, newest first.
	PriceHistory(ctx context.Context, peptideID, resellerID string, limit int) ([]domain.PriceObservation, error)

	// AppendPrice inserts a new immutable observation row.
	AppendPrice(ctx context.Context, obs domain.NewPriceObservation) error

	// SelectRefreshBatch returns up to limit pairs ordered for refresh:
	// never-observed pairs first (by peptide name, then reseller name), then
	// ascending last-observed timestamp. This ordering is the whole
	// scheduling policy; there is no separate schedule state to maintain.
	SelectRefreshBatch(ctx context.Context, limit int) ([]domain.RefreshCandidate, error)
}
