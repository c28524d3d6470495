package services

import (
	"testing"

	"golang.org/x/text/language"

	"github.com/finitefield/quote-configurator/internal/domain"
)

func TestEstimateFormatter(t *testing.T) {
	f, err := NewEstimateFormatter("USD", language.English)
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	if f.symbol == "" {
		t.Fatalf("expected a currency symbol")
	}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "grouped amount", got: f.Amount(12500, false), want: f.symbol + "12,500"},
		{name: "starts at", got: f.Amount(800, true), want: f.symbol + "800+"},
		{name: "monthly", got: f.Monthly(149, false), want: f.symbol + "149/mo"},
		{name: "monthly starts at", got: f.Monthly(2500, true), want: f.symbol + "2,500+/mo"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, tc.got)
			}
		})
	}
}

func TestEstimateFormatterCustomQuote(t *testing.T) {
	f, err := NewEstimateFormatter("USD", language.English)
	if err != nil {
		t.Fatalf("formatter: %v", err)
	}
	display := f.TotalsDisplay(domain.Totals{OneTimeTotal: 2000, HasCustomQuote: true})
	for key, value := range display {
		if value != "Custom Quote" {
			t.Fatalf("%s: expected Custom Quote, got %q", key, value)
		}
	}

	combined := f.CombinedDisplay(domain.CombinedTotals{OneTimeTotal: 3000, BundleDiscount: 300, OneTimeAfterDiscount: 2700, TotalInvestment: 2700})
	if combined["oneTime"] != f.symbol+"2,700" || combined["bundleDiscount"] != f.symbol+"300" {
		t.Fatalf("unexpected combined display %v", combined)
	}

	plan := f.PlanDisplay(domain.PlanSummary{
		Items:    []domain.PlanLineItem{{ServiceID: "website", StartsAt: true}},
		Subtotal: 7000,
		Total:    7000,
	})
	if plan["total"] != f.symbol+"7,000+" || plan["discount"] != f.symbol+"0" {
		t.Fatalf("unexpected plan display %v", plan)
	}
}

func TestEstimateFormatterRejectsUnknownCurrency(t *testing.T) {
	if _, err := NewEstimateFormatter("ZZZ1", language.English); err == nil {
		t.Fatalf("expected error for malformed currency code")
	}
}
