package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/finitefield/quote-configurator/internal/domain"
)

const (
	customQuoteLabel = "Custom Quote"
	startsAtSuffix   = "+"
	monthlySuffix    = "/mo"
)

// EstimateFormatter renders whole currency amounts for display.
type EstimateFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewEstimateFormatter builds a formatter for an ISO 4217 code in the given locale.
func NewEstimateFormatter(code string, tag language.Tag) (*EstimateFormatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("estimate formatter: %w", err)
	}
	printer := message.NewPrinter(tag)
	return &EstimateFormatter{
		printer: printer,
		symbol:  printer.Sprint(currency.Symbol(unit)),
	}, nil
}

// Amount formats a one-time figure, appending "+" for starting-at prices.
func (f *EstimateFormatter) Amount(amount int64, startsAt bool) string {
	out := f.symbol + f.printer.Sprint(number.Decimal(amount))
	if startsAt {
		out += startsAtSuffix
	}
	return out
}

// Monthly formats a recurring figure with the "/mo" suffix.
func (f *EstimateFormatter) Monthly(amount int64, startsAt bool) string {
	return f.Amount(amount, startsAt) + monthlySuffix
}

// TotalsDisplay renders a builder's headline figures. Every figure reads "Custom Quote" once
// any contributing option lacks a fixed price.
func (f *EstimateFormatter) TotalsDisplay(t domain.Totals) map[string]string {
	if t.HasCustomQuote {
		return map[string]string{
			"oneTime":         customQuoteLabel,
			"monthly":         customQuoteLabel,
			"totalInvestment": customQuoteLabel,
		}
	}
	return map[string]string{
		"oneTime":         f.Amount(t.OneTimeTotal, t.StartsAt),
		"monthly":         f.Monthly(t.MonthlyTotal, t.StartsAt),
		"totalInvestment": f.Amount(t.TotalInvestment, t.StartsAt),
	}
}

// CombinedDisplay renders the unified quote's headline figures.
func (f *EstimateFormatter) CombinedDisplay(c domain.CombinedTotals) map[string]string {
	if c.HasCustomQuote {
		return map[string]string{
			"oneTime":         customQuoteLabel,
			"monthly":         customQuoteLabel,
			"bundleDiscount":  f.Amount(c.BundleDiscount, false),
			"totalInvestment": customQuoteLabel,
		}
	}
	return map[string]string{
		"oneTime":         f.Amount(c.OneTimeAfterDiscount, c.StartsAt),
		"monthly":         f.Monthly(c.MonthlyTotal, c.StartsAt),
		"bundleDiscount":  f.Amount(c.BundleDiscount, false),
		"totalInvestment": f.Amount(c.TotalInvestment, c.StartsAt),
	}
}

// PlanDisplay renders the plan total.
func (f *EstimateFormatter) PlanDisplay(p domain.PlanSummary) map[string]string {
	startsAt := false
	for _, item := range p.Items {
		startsAt = startsAt || item.StartsAt
	}
	return map[string]string{
		"subtotal": f.Amount(p.Subtotal, startsAt),
		"discount": f.Amount(p.Discount, false),
		"total":    f.Amount(p.Total, startsAt),
	}
}
