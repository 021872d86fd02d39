package pipeline

import (
	"context"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
)

// Locator finds a candidate product page for a peptide on a reseller's
// domain. A nil hit with nil error means "not found", which is not a failure.
type Locator interface {
	Configured() bool
	Locate(ctx context.Context, peptideName, resellerDomain string) (*domain.SearchHit, error)
}

// Fetcher retrieves a page as normalized text. Absence of content is an
// empty string; causes are logged inside the fetcher, not classified here.
type Fetcher interface {
	Fetch(ctx context.Context, url string) string
}

// Extractor produces a structured price from page content, or nil when the
// backend finds no usable price.
type Extractor interface {
	Configured() bool
	Extract(ctx context.Context, content, peptideName, resellerName string) (*domain.ExtractedPrice, error)
}

// BatchStore is the slice of the store the refresher needs: batch selection
// and append-only persistence.
type BatchStore interface {
	SelectRefreshBatch(ctx context.Context, limit int) ([]domain.RefreshCandidate, error)
	AppendPrice(ctx context.Context, obs domain.NewPriceObservation) error
}

// CacheFlusher invalidates the consumer-facing latest-prices view after a run.
type CacheFlusher interface {
	Flush()
}

// SummaryNotifier delivers the run summary to downstream listeners. Delivery
// failures never affect the run result.
type SummaryNotifier interface {
	PublishSummary(ctx context.Context, summary domain.RunSummary)
}
