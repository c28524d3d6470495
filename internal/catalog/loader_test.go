package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/finitefield/quote-configurator/internal/domain"
)

func TestDefaultCatalogLoads(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cat.Currency != "USD" {
		t.Fatalf("expected USD, got %q", cat.Currency)
	}

	want := []domain.ServiceType{
		"website", "ecommerce", "mobile_app", "web_app", "branding", "graphic_design",
		"content_writing", "seo", "social_media", "digital_marketing", "video_production",
		"animation", "ai_automation",
	}
	got := cat.ServiceTypes()
	if len(got) != len(want) {
		t.Fatalf("expected %d services, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("service %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	for _, svc := range cat.Services {
		if svc.Steps != len(svc.Dimensions)+2 {
			t.Fatalf("%s: expected %d steps, got %d", svc.Type, len(svc.Dimensions)+2, svc.Steps)
		}
		if _, ok := cat.Plan(string(svc.Type)); !ok {
			t.Fatalf("%s: missing plan offering", svc.Type)
		}
	}

	if pct := cat.BundleTiers.Percentage(5); pct != 15 {
		t.Fatalf("expected 15%% at five services, got %d", pct)
	}
}

func TestDefaultCatalogDurationServices(t *testing.T) {
	cat, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	durations := map[domain.ServiceType]bool{
		"content_writing":   true,
		"seo":               true,
		"social_media":      true,
		"digital_marketing": true,
	}
	for _, svc := range cat.Services {
		if svc.HasDuration() != durations[svc.Type] {
			t.Fatalf("%s: HasDuration=%v", svc.Type, svc.HasDuration())
		}
	}
}

func TestParseNullPriceIsCustomQuote(t *testing.T) {
	cat, err := Parse([]byte(`
services:
  - type: website
    dimensions:
      - name: cms
        options:
          - {id: none, included: true}
          - {id: custom, price: null}
          - {id: headless}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	svc, _ := cat.Service("website")
	dim, _ := svc.Dimension("cms")

	none, _ := dim.Options.Find("none")
	if none.IsCustomQuote() || none.Price == nil || *none.Price != 0 {
		t.Fatalf("included option should price at zero, got %+v", none)
	}
	for _, id := range []string{"custom", "headless"} {
		opt, _ := dim.Options.Find(id)
		if !opt.IsCustomQuote() {
			t.Fatalf("%s: expected custom quote", id)
		}
	}
	if svc.Steps != 3 {
		t.Fatalf("expected 3 steps, got %d", svc.Steps)
	}
	if len(cat.BundleTiers) != 3 {
		t.Fatalf("expected default bundle tiers, got %+v", cat.BundleTiers)
	}
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "premium below one",
			doc: `
services:
  - type: website
    dimensions:
      - name: timeline
        modifier: true
        options:
          - {id: slow, multiplier: 0.9, kind: premium}
`,
			want: "must exceed 1",
		},
		{
			name: "discount above one",
			doc: `
services:
  - type: website
    dimensions:
      - name: timeline
        modifier: true
        options:
          - {id: fast, multiplier: 1.2, kind: discount}
`,
			want: "must be below 1",
		},
		{
			name: "multiplier without kind",
			doc: `
services:
  - type: website
    dimensions:
      - name: timeline
        modifier: true
        options:
          - {id: fast, multiplier: 1.2}
`,
			want: "requires kind",
		},
		{
			name: "multiplier on flat dimension",
			doc: `
services:
  - type: website
    dimensions:
      - name: site_type
        options:
          - {id: landing, price: 100, multiplier: 1.2, kind: premium}
`,
			want: "only valid on modifier",
		},
		{
			name: "duplicate option",
			doc: `
services:
  - type: website
    dimensions:
      - name: site_type
        options:
          - {id: landing, price: 100}
          - {id: landing, price: 200}
`,
			want: "duplicate option",
		},
		{
			name: "duplicate service",
			doc: `
services:
  - type: seo
    dimensions:
      - name: a
        options: [{id: x, price: 1}]
  - type: seo
    dimensions:
      - name: a
        options: [{id: x, price: 1}]
`,
			want: "duplicate service",
		},
		{
			name: "negative price",
			doc: `
services:
  - type: website
    dimensions:
      - name: site_type
        options:
          - {id: landing, price: -1}
`,
			want: "negative price",
		},
		{
			name: "bundle tiers not increasing",
			doc: `
bundle_tiers:
  - {min_count: 3, percentage: 10}
  - {min_count: 3, percentage: 15}
services:
  - type: website
    dimensions:
      - name: a
        options: [{id: x, price: 1}]
`,
			want: "min count",
		},
		{
			name: "unknown currency",
			doc: `
currency: ZZZ1
services:
  - type: website
    dimensions:
      - name: a
        options: [{id: x, price: 1}]
`,
			want: "currency",
		},
		{
			name: "unpriced plan tier",
			doc: `
services:
  - type: website
    dimensions:
      - name: a
        options: [{id: x, price: 1}]
plans:
  - service_id: website
    tiers:
      - {id: basic}
`,
			want: "must be priced",
		},
		{
			name: "unknown option key",
			doc: `
services:
  - type: website
    dimensions:
      - name: a
        options:
          - {id: x, price: 900, recuring: true}
`,
			want: "field recuring not found",
		},
		{
			name: "unknown top-level key",
			doc: `
bundle_tier:
  - {min_count: 3, percentage: 10}
services:
  - type: website
    dimensions:
      - name: a
        options: [{id: x, price: 1}]
`,
			want: "field bundle_tier not found",
		},
		{
			name: "priced modifier option",
			doc: `
services:
  - type: website
    dimensions:
      - name: timeline
        modifier: true
        options:
          - {id: fast, price: 500, multiplier: 1.2, kind: premium}
`,
			want: "price is not valid on modifier options",
		},
		{
			name: "null price on modifier option",
			doc: `
services:
  - type: website
    dimensions:
      - name: timeline
        modifier: true
        options:
          - {id: fast, price: null, multiplier: 1.2, kind: premium}
`,
			want: "price is not valid on modifier options",
		},
		{
			name: "usage price on modifier option",
			doc: `
services:
  - type: website
    dimensions:
      - name: timeline
        modifier: true
        options:
          - {id: fast, usage_price: 10, multiplier: 1.2, kind: premium}
`,
			want: "price is not valid on modifier options",
		},
		{
			name: "non-numeric price",
			doc: `
services:
  - type: website
    dimensions:
      - name: a
        options: [{id: x, price: lots}]
`,
			want: "price",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseNullPriceMeansUnpriced(t *testing.T) {
	cat, err := Parse([]byte(`
services:
  - type: website
    dimensions:
      - name: a
        options:
          - {id: quoted, price: null}
          - {id: listed, price: 250}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	options := cat.Services[0].Dimensions[0].Options
	if options[0].Price != nil {
		t.Fatalf("expected null price to stay unpriced, got %d", *options[0].Price)
	}
	if options[1].Price == nil || *options[1].Price != 250 {
		t.Fatalf("expected listed price 250, got %v", options[1].Price)
	}
}

func TestLoadFromFileOverridesEmbedded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	doc := `
currency: eur
services:
  - type: branding
    dimensions:
      - name: brand_scope
        required: true
        options: [{id: logo_only, price: 500}]
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cat.Currency != "EUR" {
		t.Fatalf("expected EUR, got %q", cat.Currency)
	}
	if len(cat.Services) != 1 || cat.Services[0].Type != "branding" {
		t.Fatalf("unexpected services %+v", cat.Services)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadEmptyPathUsesEmbedded(t *testing.T) {
	cat, err := Load("  ")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cat.Services) != 13 {
		t.Fatalf("expected embedded catalog, got %d services", len(cat.Services))
	}
}
