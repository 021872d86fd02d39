package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
)

// PostgresStore implements Store on top of Postgres via sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func normalizeOptions(opts Options) Options {
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 5
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	return opts
}

// NewPostgresStore connects to the database and verifies connectivity.
func NewPostgresStore(ctx context.Context, dsn string, opts Options) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres store requires a DSN")
	}
	opts = normalizeOptions(opts)

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListPeptides returns the peptide catalog ordered by display name.
func (s *PostgresStore) ListPeptides(ctx context.Context) ([]domain.Peptide, error) {
	const query = `
		SELECT id, name, COALESCE(full_name, '') AS full_name
		FROM peptides
		ORDER BY name`

	var peptides []domain.Peptide
	if err := s.db.SelectContext(ctx, &peptides, query); err != nil {
		return nil, fmt.Errorf("list peptides: %w", err)
	}
	return peptides, nil
}

// ListResellers returns the reseller catalog ordered by display name.
func (s *PostgresStore) ListResellers(ctx context.Context) ([]domain.Reseller, error) {
	const query = `
		SELECT id, name, COALESCE(base_url, '') AS base_url
		FROM resellers
		ORDER BY name`

	var resellers []domain.Reseller
	if err := s.db.SelectContext(ctx, &resellers, query); err != nil {
		return nil, fmt.Errorf("list resellers: %w", err)
	}
	return resellers, nil
}

// LatestPrices returns the maximum-timestamp observation per pair, joined
// with catalog names for the comparison view. Ties on scraped_at resolve to
// the higher row id so the result is deterministic.
func (s *PostgresStore) LatestPrices(ctx context.Context) ([]domain.PriceObservation, error) {
	const query = `
		SELECT DISTINCT ON (p.peptide_id, p.reseller_id)
			p.id, p.peptide_id, p.reseller_id,
			COALESCE(p.product_name, '') AS product_name,
			COALESCE(p.price_cents, 0) AS price_cents,
			p.original_price_cents, p.sale_info, p.bulk_pricing,
			p.shipping, p.return_policy,
			COALESCE(p.product_url, '') AS product_url,
			p.scraped_at,
			pep.name AS peptide_name,
			r.name AS reseller_name
		FROM prices p
		JOIN peptides pep ON pep.id = p.peptide_id
		JOIN resellers r ON r.id = p.reseller_id
		ORDER BY p.peptide_id, p.reseller_id, p.scraped_at DESC, p.id DESC`

	var prices []domain.PriceObservation
	if err := s.db.SelectContext(ctx, &prices, query); err != nil {
		return nil, fmt.Errorf("latest prices: %w", err)
	}
	return prices, nil
}

// PriceHistory returns up to limit observations for a pair, newest first.
func (s *PostgresStore) PriceHistory(ctx context.Context, peptideID, resellerID string, limit int) ([]domain.PriceObservation, error) {
	if limit <= 0 {
		limit = 30
	}

	const query = `
		SELECT id, peptide_id, reseller_id,
			COALESCE(product_name, '') AS product_name,
			COALESCE(price_cents, 0) AS price_cents,
			original_price_cents, sale_info, bulk_pricing,
			shipping, return_policy,
			COALESCE(product_url, '') AS product_url,
			scraped_at
		FROM prices
		WHERE peptide_id = $1 AND reseller_id = $2
		ORDER BY scraped_at DESC, id DESC
		LIMIT $3`

	var prices []domain.PriceObservation
	if err := s.db.SelectContext(ctx, &prices, query, peptideID, resellerID, limit); err != nil {
		return nil, fmt.Errorf("price history: %w", err)
	}
	return prices, nil
}

// AppendPrice inserts one observation row. The database stamps scraped_at at
// write time so timestamps increase per insert. Existing rows are never
// touched.
func (s *PostgresStore) AppendPrice(ctx context.Context, obs domain.NewPriceObservation) error {
	const query = `
		INSERT INTO prices (
			peptide_id, reseller_id, product_name, price_cents,
			original_price_cents, sale_info, bulk_pricing, shipping,
			return_policy, product_url
		) VALUES (
			:peptide_id, :reseller_id, :product_name, :price_cents,
			:original_price_cents, :sale_info, :bulk_pricing, :shipping,
			:return_policy, :product_url
		)`

	params := map[string]any{
		"peptide_id":           obs.PeptideID,
		"reseller_id":          obs.ResellerID,
		"product_name":         obs.ProductName,
		"price_cents":          obs.PriceCents,
		"original_price_cents": obs.OriginalPriceCents,
		"sale_info":            obs.SaleInfo,
		"bulk_pricing":         obs.BulkPricing,
		"shipping":             obs.Shipping,
		"return_policy":        obs.ReturnPolicy,
		"product_url":          obs.ProductURL,
	}

	if _, err := s.db.NamedExecContext(ctx, query, params); err != nil {
		return fmt.Errorf("append price: %w", err)
	}
	return nil
}

// SelectRefreshBatch derives refresh priority from recorded timestamps alone:
// the cross product of the catalog is left-joined with each pair's latest
// observation, never-observed pairs sort first (NULLS FIRST), and name
// ordering makes the result deterministic. Stale pairs therefore re-queue
// themselves on every run without any cursor state.
func (s *PostgresStore) SelectRefreshBatch(ctx context.Context, limit int) ([]domain.RefreshCandidate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("select refresh batch: limit must be positive")
	}

	const query = `
		WITH all_pairs AS (
			SELECT
				pep.id AS peptide_id,
				pep.name AS peptide_name,
				r.id AS reseller_id,
				r.name AS reseller_name,
				COALESCE(r.base_url, '') AS reseller_base_url
			FROM peptides pep
			CROSS JOIN resellers r
		),
		latest AS (
			SELECT DISTINCT ON (peptide_id, reseller_id)
				peptide_id, reseller_id, scraped_at AS last_scraped
			FROM prices
			ORDER BY peptide_id, reseller_id, scraped_at DESC
		)
		SELECT
			ap.peptide_id, ap.peptide_name,
			ap.reseller_id, ap.reseller_name, ap.reseller_base_url,
			l.last_scraped
		FROM all_pairs ap
		LEFT JOIN latest l
			ON l.peptide_id = ap.peptide_id AND l.reseller_id = ap.reseller_id
		ORDER BY l.last_scraped ASC NULLS FIRST, ap.peptide_name, ap.reseller_name
		LIMIT $1`

	var candidates []domain.RefreshCandidate
	if err := s.db.SelectContext(ctx, &candidates, query, limit); err != nil {
		return nil, fmt.Errorf("select refresh batch: %w", err)
	}
	return candidates, nil
}

// Migrate creates the schema when missing. Safe to run on every start.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS peptides (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			full_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS resellers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			base_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS prices (
			id BIGSERIAL PRIMARY KEY,
			peptide_id TEXT REFERENCES peptides(id),
			reseller_id TEXT REFERENCES resellers(id),
			product_name TEXT,
			price_cents INTEGER,
			original_price_cents INTEGER,
			sale_info TEXT,
			bulk_pricing TEXT,
			shipping TEXT,
			return_policy TEXT,
			product_url TEXT,
			scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_latest
			ON prices (peptide_id, reseller_id, scraped_at DESC)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// SeedPeptides upserts catalog peptides. Seed data wins over existing names
// so catalog corrections propagate.
func (s *PostgresStore) SeedPeptides(ctx context.Context, peptides []domain.Peptide) error {
	const query = `
		INSERT INTO peptides (id, name, full_name)
		VALUES (:id, :name, :full_name)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, full_name = EXCLUDED.full_name`

	for _, p := range peptides {
		if _, err := s.db.NamedExecContext(ctx, query, p); err != nil {
			return fmt.Errorf("seed peptide %q: %w", p.ID, err)
		}
	}
	return nil
}

// SeedResellers upserts catalog resellers.
func (s *PostgresStore) SeedResellers(ctx context.Context, resellers []domain.Reseller) error {
	const query = `
		INSERT INTO resellers (id, name, base_url)
		VALUES (:id, :name, :base_url)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, base_url = EXCLUDED.base_url`

	for _, r := range resellers {
		if _, err := s.db.NamedExecContext(ctx, query, r); err != nil {
			return fmt.Errorf("seed reseller %q: %w", r.ID, err)
		}
	}
	return nil
}

// HasPrices reports whether any observation exists. Used by setupdb to avoid
// re-seeding starter prices into a live history.
func (s *PostgresStore) HasPrices(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM prices`); err != nil {
		return false, fmt.Errorf("count prices: %w", err)
	}
	return count > 0, nil
}

// GetPeptide fetches one catalog entry by id.
func (s *PostgresStore) GetPeptide(ctx context.Context, id string) (domain.Peptide, error) {
	const query = `SELECT id, name, COALESCE(full_name, '') AS full_name FROM peptides WHERE id = $1`

	var p domain.Peptide
	if err := s.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Peptide{}, fmt.Errorf("peptide %q: %w", id, ErrNotFound)
		}
		return domain.Peptide{}, fmt.Errorf("get peptide: %w", err)
	}
	return p, nil
}
