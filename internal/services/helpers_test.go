package services

import (
	"testing"
	"time"

	"github.com/finitefield/quote-configurator/internal/catalog"
	"github.com/finitefield/quote-configurator/internal/domain"
)

var testNow = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func loadTestCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	return cat
}

func testEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(loadTestCatalog(t))
	if err != nil {
		t.Fatalf("pricing engine: %v", err)
	}
	return engine
}

func testSchema(t *testing.T, engine *PricingEngine, serviceType domain.ServiceType) domain.ServiceSchema {
	t.Helper()
	schema, err := engine.Schema(serviceType)
	if err != nil {
		t.Fatalf("schema %s: %v", serviceType, err)
	}
	return schema
}

// widgetSchema is a compact schema covering every select mode.
func widgetSchema() domain.ServiceSchema {
	return domain.ServiceSchema{
		Type:  "widget",
		Label: "Widget",
		Steps: 6,
		Dimensions: []domain.Dimension{
			{
				Name:     "size",
				Step:     1,
				Select:   domain.SelectSingle,
				Bucket:   domain.BucketOneTime,
				Required: true,
				Options: domain.OptionList{
					{ID: "small", Price: domain.Int64Ptr(1000)},
					{ID: "large", Price: domain.Int64Ptr(2000)},
					{ID: "bespoke"},
				},
			},
			{
				Name:   "extras",
				Step:   2,
				Select: domain.SelectMulti,
				Bucket: domain.BucketOneTime,
				Options: domain.OptionList{
					{ID: "gift_wrap", Price: domain.Int64Ptr(50)},
					{ID: "support", Price: domain.Int64Ptr(30), Recurring: true},
				},
			},
			{
				Name:   "addons",
				Step:   3,
				Select: domain.SelectFeature,
				Features: []domain.Feature{
					{
						ID: "chatbot",
						Options: domain.OptionList{
							{ID: "starter", Price: domain.Int64Ptr(1000), UsagePrice: domain.Int64Ptr(150)},
							{ID: "custom"},
						},
					},
				},
			},
			{
				Name:     "timeline",
				Step:     4,
				Select:   domain.SelectSingle,
				Modifier: true,
				Scope:    domain.BucketOneTime,
				Options: domain.OptionList{
					{ID: "flexible", Multiplier: 0.9, Kind: domain.ModifierDiscount},
					{ID: "standard", Multiplier: 1},
					{ID: "fast", Multiplier: 1.25, Kind: domain.ModifierPremium},
				},
			},
		},
	}
}
