package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func writeCatalogFile(t *testing.T, name, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog file: %v", err)
	}
	return file
}

func TestLoadCatalogYAML(t *testing.T) {
	file := writeCatalogFile(t, "catalog.yaml", `
peptides:
  - id: bpc-157
    name: BPC-157
    full_name: Body Protection Compound-157
  - id: tb-500
    name: TB-500
resellers:
  - id: alpha-labs
    name: Alpha Labs
    base_url: https://alphalabs.example/
`)

	cat, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cat.Peptides) != 2 || len(cat.Resellers) != 1 {
		t.Fatalf("unexpected catalog sizes: %d peptides, %d resellers", len(cat.Peptides), len(cat.Resellers))
	}
	if cat.Peptides[0].FullName != "Body Protection Compound-157" {
		t.Fatalf("unexpected full name: %s", cat.Peptides[0].FullName)
	}
	if cat.Resellers[0].BaseURL != "https://alphalabs.example" {
		t.Fatalf("base url must lose its trailing slash: %s", cat.Resellers[0].BaseURL)
	}
}

func TestLoadCatalogJSON(t *testing.T) {
	file := writeCatalogFile(t, "catalog.json", `{
  "peptides": [{"id": "selank", "name": "Selank"}],
  "resellers": [{"id": "beta", "name": "Beta Chems", "base_url": "https://betachems.example"}]
}`)

	cat, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cat.Peptides[0].Name != "Selank" {
		t.Fatalf("unexpected peptide: %+v", cat.Peptides[0])
	}
}

func TestLoadCatalogDuplicateID(t *testing.T) {
	file := writeCatalogFile(t, "catalog.yaml", `
peptides:
  - id: duplicate
    name: One
  - id: duplicate
    name: Two
resellers:
  - id: alpha
    name: Alpha Labs
    base_url: https://alphalabs.example
`)

	if _, err := Load(file); err == nil {
		t.Fatalf("expected duplicate peptide error, got nil")
	}
}

func TestLoadCatalogRejectsRelativeBaseURL(t *testing.T) {
	file := writeCatalogFile(t, "catalog.yaml", `
peptides:
  - id: bpc-157
    name: BPC-157
resellers:
  - id: alpha
    name: Alpha Labs
    base_url: alphalabs.example
`)

	if _, err := Load(file); err == nil {
		t.Fatalf("expected base_url validation error, got nil")
	}
}

func TestLoadCatalogSeedPrices(t *testing.T) {
	file := writeCatalogFile(t, "catalog.yaml", `
peptides:
  - id: bpc-157
    name: BPC-157
resellers:
  - id: alpha
    name: Alpha Labs
    base_url: https://alphalabs.example
prices:
  - peptide_id: bpc-157
    reseller_id: alpha
    product_name: BPC-157 5mg
    price_cents: 3999
    product_url: https://alphalabs.example/bpc-157
`)

	cat, err := Load(file)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cat.Prices) != 1 || cat.Prices[0].PriceCents != 3999 {
		t.Fatalf("unexpected seed prices: %+v", cat.Prices)
	}
}

func TestLoadCatalogRejectsDanglingSeedPrice(t *testing.T) {
	file := writeCatalogFile(t, "catalog.yaml", `
peptides:
  - id: bpc-157
    name: BPC-157
resellers:
  - id: alpha
    name: Alpha Labs
    base_url: https://alphalabs.example
prices:
  - peptide_id: no-such-peptide
    reseller_id: alpha
    product_name: Mystery 5mg
    price_cents: 1999
`)

	if _, err := Load(file); err == nil {
		t.Fatalf("expected unknown peptide reference error, got nil")
	}
}

func TestLoadCatalogEmptySections(t *testing.T) {
	file := writeCatalogFile(t, "catalog.yaml", `
peptides: []
resellers: []
`)

	if _, err := Load(file); err == nil {
		t.Fatalf("expected empty catalog error, got nil")
	}
}
