package services

import (
	"errors"
	"fmt"
	"math"

	"github.com/finitefield/quote-configurator/internal/domain"
)

var (
	// ErrPricingUnknownService is returned when a builder type is absent from the catalog.
	ErrPricingUnknownService = errors.New("pricing: unknown service type")
)

// PricingEngine derives builder totals from the read-only catalog.
type PricingEngine struct {
	catalog *domain.Catalog
}

// NewPricingEngine binds an engine to a loaded catalog.
func NewPricingEngine(catalog *domain.Catalog) (*PricingEngine, error) {
	if catalog == nil {
		return nil, errors.New("pricing engine: catalog is required")
	}
	return &PricingEngine{catalog: catalog}, nil
}

// Catalog exposes the catalog the engine prices against.
func (e *PricingEngine) Catalog() *domain.Catalog {
	return e.catalog
}

// Schema resolves the builder schema for serviceType.
func (e *PricingEngine) Schema(serviceType domain.ServiceType) (domain.ServiceSchema, error) {
	schema, ok := e.catalog.Service(serviceType)
	if !ok {
		return domain.ServiceSchema{}, fmt.Errorf("%w: %q", ErrPricingUnknownService, serviceType)
	}
	return schema, nil
}

// Totals prices selection against the schema registered for serviceType.
func (e *PricingEngine) Totals(serviceType domain.ServiceType, selection domain.Selection) (domain.Totals, error) {
	schema, err := e.Schema(serviceType)
	if err != nil {
		return domain.Totals{}, err
	}
	return ComputeTotals(schema, selection), nil
}

// ComputeTotals is a pure function of schema and selection.
//
// Flat prices accrue first, then every selected modifier scales the subtotal of its scope.
// Ids that no longer resolve contribute nothing. A null price marks the result as a custom
// quote but the arithmetic still runs over the priced parts.
func ComputeTotals(schema domain.ServiceSchema, selection domain.Selection) domain.Totals {
	acc := &totalsAccumulator{}

	for _, dim := range schema.Dimensions {
		if dim.Modifier {
			continue
		}
		switch dim.Select {
		case domain.SelectMulti:
			for _, entry := range selection.Multi[dim.Name] {
				opt, ok := dim.Options.Find(entry.OptionID)
				if !ok {
					continue
				}
				qty := entry.Quantity
				if qty < 1 {
					qty = 1
				}
				acc.addOption(dim, opt, qty)
			}
		case domain.SelectFeature:
			for _, entry := range selection.Features[dim.Name] {
				acc.addFeature(dim, entry)
			}
		default:
			opt, ok := dim.Options.Find(selection.Single[dim.Name])
			if !ok {
				continue
			}
			acc.addOption(dim, opt, 1)
		}
	}

	for _, dim := range schema.Dimensions {
		if !dim.Modifier {
			continue
		}
		opt, ok := dim.Options.Find(selection.Single[dim.Name])
		if !ok {
			continue
		}
		acc.applyModifier(dim, opt)
	}

	totals := acc.totals
	totals.OneTimeTotal = totals.OneTimeSubtotal + totals.RushFee - totals.TimelineDiscount
	totals.MonthlyTotal = totals.MonthlySubtotal + totals.MonthlyPremium - totals.DurationDiscount
	if schema.HasDuration() {
		months := totals.DurationMonths
		if months < 1 {
			months = 1
		}
		totals.TotalInvestment = totals.MonthlyTotal*int64(months) + totals.OneTimeTotal
	} else {
		totals.TotalInvestment = totals.OneTimeTotal
	}
	return totals
}

type totalsAccumulator struct {
	totals domain.Totals
}

func (a *totalsAccumulator) addOption(dim domain.Dimension, opt domain.Option, qty int) {
	line := domain.PriceLine{
		Dimension: dim.Name,
		OptionID:  opt.ID,
		Label:     opt.Label,
		Bucket:    opt.BucketFor(dim.Bucket),
		Quantity:  qty,
		StartsAt:  opt.StartsAt,
		Included:  opt.Included,
	}
	if opt.IsCustomQuote() {
		line.CustomQuote = true
		a.totals.HasCustomQuote = true
	} else if opt.Price != nil {
		line.Amount = saturatingMul(*opt.Price, int64(qty))
	}
	a.addLine(line)
}

// addFeature prices a feature entry from its frozen amounts; the catalog is not consulted.
func (a *totalsAccumulator) addFeature(dim domain.Dimension, entry domain.FeatureSelection) {
	setup := domain.PriceLine{
		Dimension: dim.Name,
		OptionID:  entry.OptionID,
		FeatureID: entry.FeatureID,
		Bucket:    domain.BucketOneTime,
		Quantity:  1,
		StartsAt:  entry.StartsAt,
	}
	if entry.SetupPrice == nil {
		setup.CustomQuote = true
		a.totals.HasCustomQuote = true
	} else {
		setup.Amount = *entry.SetupPrice
	}
	a.addLine(setup)

	if entry.UsagePrice != nil && *entry.UsagePrice > 0 {
		a.addLine(domain.PriceLine{
			Dimension: dim.Name,
			OptionID:  entry.OptionID,
			FeatureID: entry.FeatureID,
			Bucket:    domain.BucketMonthly,
			Quantity:  1,
			Amount:    *entry.UsagePrice,
			StartsAt:  entry.StartsAt,
		})
	}
}

func (a *totalsAccumulator) addLine(line domain.PriceLine) {
	if line.StartsAt {
		a.totals.StartsAt = true
	}
	switch line.Bucket {
	case domain.BucketMonthly:
		a.totals.MonthlySubtotal = saturatingAdd(a.totals.MonthlySubtotal, line.Amount)
	default:
		a.totals.OneTimeSubtotal = saturatingAdd(a.totals.OneTimeSubtotal, line.Amount)
	}
	a.totals.Lines = append(a.totals.Lines, line)
}

// applyModifier scales the subtotal of the dimension's scope. Several modifiers on one scope
// each apply to the unscaled subtotal.
func (a *totalsAccumulator) applyModifier(dim domain.Dimension, opt domain.Option) {
	if opt.Months > 0 {
		a.totals.DurationMonths = opt.Months
	}
	m := opt.EffectiveMultiplier()
	base := a.totals.OneTimeSubtotal
	if dim.Scope == domain.BucketMonthly {
		base = a.totals.MonthlySubtotal
	}

	adj := domain.Adjustment{
		Dimension:  dim.Name,
		OptionID:   opt.ID,
		Kind:       opt.Kind,
		Scope:      dim.Scope,
		Multiplier: m,
		Base:       base,
	}
	switch {
	case opt.Kind == domain.ModifierPremium && m > 1:
		adj.Amount = roundAmount(float64(base) * (m - 1))
		if dim.Scope == domain.BucketMonthly {
			a.totals.MonthlyPremium += adj.Amount
		} else {
			a.totals.RushFee += adj.Amount
		}
	case opt.Kind == domain.ModifierDiscount && m < 1:
		adj.Amount = roundAmount(float64(base) * (1 - m))
		if dim.Scope == domain.BucketMonthly {
			a.totals.DurationDiscount += adj.Amount
		} else {
			a.totals.TimelineDiscount += adj.Amount
		}
	default:
		return
	}
	a.totals.Adjustments = append(a.totals.Adjustments, adj)
}

func roundAmount(v float64) int64 {
	if v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(v))
}

func saturatingAdd(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func saturatingMul(price, qty int64) int64 {
	if price > 0 && qty > 0 && price > math.MaxInt64/qty {
		return math.MaxInt64
	}
	return price * qty
}
