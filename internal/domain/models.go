package domain

import "time"

// Domain contains core models shared by the store, the refresh pipeline, and
// the HTTP surface.

// Peptide is a catalog entry. Seeded once, never mutated by the pipeline.
type Peptide struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	FullName string `db:"full_name" json:"full_name,omitempty" yaml:"full_name"`
}

// Reseller is a catalog entry for one vendor site.
type Reseller struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	BaseURL string `db:"base_url" json:"base_url,omitempty" yaml:"base_url"`
}

// PriceObservation is one persisted price fact. Rows are append-only; the
// "current" price for a pair is the row with the greatest ScrapedAt.
type PriceObservation struct {
	ID                 int64     `db:"id" json:"id"`
	PeptideID          string    `db:"peptide_id" json:"peptide_id"`
	ResellerID         string    `db:"reseller_id" json:"reseller_id"`
	ProductName        string    `db:"product_name" json:"product_name"`
	PriceCents         int64     `db:"price_cents" json:"price_cents"`
	OriginalPriceCents *int64    `db:"original_price_cents" json:"original_price_cents,omitempty"`
	SaleInfo           *string   `db:"sale_info" json:"sale_info,omitempty"`
	BulkPricing        *string   `db:"bulk_pricing" json:"bulk_pricing,omitempty"`
	Shipping           *string   `db:"shipping" json:"shipping,omitempty"`
	ReturnPolicy       *string   `db:"return_policy" json:"return_policy,omitempty"`
	ProductURL         string    `db:"product_url" json:"product_url"`
	ScrapedAt          time.Time `db:"scraped_at" json:"scraped_at"`

	// Denormalized catalog names, populated by the latest-prices view.
	PeptideName  string `db:"peptide_name" json:"peptide_name,omitempty"`
	ResellerName string `db:"reseller_name" json:"reseller_name,omitempty"`
}

// NewPriceObservation is the insert payload for one observation. The store
// assigns the row id and timestamp.
type NewPriceObservation struct {
	PeptideID          string
	ResellerID         string
	ProductName        string
	PriceCents         int64
	OriginalPriceCents *int64
	SaleInfo           *string
	BulkPricing        *string
	Shipping           *string
	ReturnPolicy       *string
	ProductURL         string
}

// RefreshCandidate is one (peptide, reseller) pair annotated with its most
// recent observation time. LastScraped is nil for never-observed pairs.
// Candidates are derived by the store on demand, never persisted.
type RefreshCandidate struct {
	PeptideID       string     `db:"peptide_id"`
	PeptideName     string     `db:"peptide_name"`
	ResellerID      string     `db:"reseller_id"`
	ResellerName    string     `db:"reseller_name"`
	ResellerBaseURL string     `db:"reseller_base_url"`
	LastScraped     *time.Time `db:"last_scraped"`
}

// ExtractedPrice is the strict payload the extraction backend must produce.
// ProductName and PriceCents are always present together; optional fields may
// be empty. A result with no price is represented by absence (nil), never by
// a partially filled value.
type ExtractedPrice struct {
	ProductName        string `json:"product_name"`
	PriceCents         int64  `json:"price_cents"`
	OriginalPriceCents int64  `json:"original_price_cents,omitempty"`
	SaleInfo           string `json:"sale_info,omitempty"`
	BulkPricing        string `json:"bulk_pricing,omitempty"`
	Shipping           string `json:"shipping,omitempty"`
	ReturnPolicy       string `json:"return_policy,omitempty"`
}

// SearchHit is the top-ranked result returned by the product locator.
type SearchHit struct {
	Title       string
	URL         string
	Description string
}

// Pair processing outcomes.
const (
	StatusSuccess = "success"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// PairResult records the terminal state of one (peptide, reseller) pair
// within a refresh run.
type PairResult struct {
	Peptide  string `json:"peptide"`
	Reseller string `json:"reseller"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	URL      string `json:"url,omitempty"`
	Price    string `json:"price,omitempty"`
}

// RunSummary aggregates one refresh run.
type RunSummary struct {
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	Errors    int           `json:"errors"`
	Skipped   int           `json:"skipped"`
	Results   []PairResult  `json:"results"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Count records one pair outcome in the summary counters.
func (s *RunSummary) Count(r PairResult) {
	s.Results = append(s.Results, r)
	s.Total++
	switch r.Status {
	case StatusSuccess:
		s.Success++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Errors++
	}
}
