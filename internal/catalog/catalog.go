package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pepdex-hq/pepdex-price-harvester/internal/domain"
)

// Package catalog loads the peptide/reseller seed catalog from a YAML or
// JSON file. The catalog defines the fixed pair universe; the pipeline never
// mutates it.

// Catalog is the parsed seed file. Prices are optional starter observations
// applied only to an empty history.
type Catalog struct {
	Peptides  []domain.Peptide  `json:"peptides" yaml:"peptides"`
	Resellers []domain.Reseller `json:"resellers" yaml:"resellers"`
	Prices    []SeedPrice       `json:"prices" yaml:"prices"`
}

// SeedPrice is one starter observation in the catalog file.
type SeedPrice struct {
	PeptideID   string `json:"peptide_id" yaml:"peptide_id"`
	ResellerID  string `json:"reseller_id" yaml:"reseller_id"`
	ProductName string `json:"product_name" yaml:"product_name"`
	PriceCents  int64  `json:"price_cents" yaml:"price_cents"`
	ProductURL  string `json:"product_url" yaml:"product_url"`
}

// Load reads and validates a catalog file. The extension picks the decoder;
// files without a recognized extension are tried as YAML then JSON.
func Load(path string) (Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Catalog{}, errors.New("catalog file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog file: %w", err)
	}

	cat, err := parse(raw, filepath.Ext(path))
	if err != nil {
		return Catalog{}, err
	}

	if len(cat.Peptides) == 0 {
		return Catalog{}, errors.New("catalog contains no peptides")
	}
	if len(cat.Resellers) == 0 {
		return Catalog{}, errors.New("catalog contains no resellers")
	}

	seenPeptides := make(map[string]struct{}, len(cat.Peptides))
	for i := range cat.Peptides {
		p := sanitizePeptide(cat.Peptides[i])
		if err := validatePeptide(p); err != nil {
			return Catalog{}, fmt.Errorf("peptide[%d]: %w", i, err)
		}
		if _, exists := seenPeptides[p.ID]; exists {
			return Catalog{}, fmt.Errorf("duplicate peptide id %q", p.ID)
		}
		seenPeptides[p.ID] = struct{}{}
		cat.Peptides[i] = p
	}

	seenResellers := make(map[string]struct{}, len(cat.Resellers))
	for i := range cat.Resellers {
		r := sanitizeReseller(cat.Resellers[i])
		if err := validateReseller(r); err != nil {
			return Catalog{}, fmt.Errorf("reseller[%d]: %w", i, err)
		}
		if _, exists := seenResellers[r.ID]; exists {
			return Catalog{}, fmt.Errorf("duplicate reseller id %q", r.ID)
		}
		seenResellers[r.ID] = struct{}{}
		cat.Resellers[i] = r
	}

	for i := range cat.Prices {
		sp := sanitizeSeedPrice(cat.Prices[i])
		if err := validateSeedPrice(sp, seenPeptides, seenResellers); err != nil {
			return Catalog{}, fmt.Errorf("price[%d]: %w", i, err)
		}
		cat.Prices[i] = sp
	}

	return cat, nil
}

func parse(data []byte, ext string) (Catalog, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var cat Catalog
		if err := d.fn(data, &cat); err == nil {
			return cat, nil
		}
	}

	return Catalog{}, errors.New("catalog file format not recognized (expected YAML or JSON)")
}

func sanitizePeptide(p domain.Peptide) domain.Peptide {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	p.FullName = strings.TrimSpace(p.FullName)
	return p
}

func validatePeptide(p domain.Peptide) error {
	if p.ID == "" {
		return errors.New("id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required for peptide %q", p.ID)
	}
	return nil
}

func sanitizeReseller(r domain.Reseller) domain.Reseller {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.BaseURL = strings.TrimSpace(strings.TrimSuffix(r.BaseURL, "/"))
	return r
}

func sanitizeSeedPrice(sp SeedPrice) SeedPrice {
	sp.PeptideID = strings.TrimSpace(sp.PeptideID)
	sp.ResellerID = strings.TrimSpace(sp.ResellerID)
	sp.ProductName = strings.TrimSpace(sp.ProductName)
	sp.ProductURL = strings.TrimSpace(sp.ProductURL)
	return sp
}

func validateSeedPrice(sp SeedPrice, peptides, resellers map[string]struct{}) error {
	if _, ok := peptides[sp.PeptideID]; !ok {
		return fmt.Errorf("unknown peptide id %q", sp.PeptideID)
	}
	if _, ok := resellers[sp.ResellerID]; !ok {
		return fmt.Errorf("unknown reseller id %q", sp.ResellerID)
	}
	if sp.ProductName == "" {
		return fmt.Errorf("product_name is required for %s/%s", sp.PeptideID, sp.ResellerID)
	}
	if sp.PriceCents <= 0 {
		return fmt.Errorf("price_cents must be positive for %s/%s", sp.PeptideID, sp.ResellerID)
	}
	return nil
}

func validateReseller(r domain.Reseller) error {
	if r.ID == "" {
		return errors.New("id is required")
	}
	if r.Name == "" {
		return fmt.Errorf("name is required for reseller %q", r.ID)
	}
	if r.BaseURL == "" {
		return fmt.Errorf("base_url is required for reseller %q", r.ID)
	}
	if !strings.HasPrefix(r.BaseURL, "http://") && !strings.HasPrefix(r.BaseURL, "https://") {
		return fmt.Errorf("base_url must be absolute for reseller %q", r.ID)
	}
	return nil
}
