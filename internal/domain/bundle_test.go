package domain

import (
	"errors"
	"math"
	"testing"
)

func TestBundleTiersDiscount(t *testing.T) {
	tiers := DefaultBundleTiers()

	tests := []struct {
		name   string
		amount int64
		count  int
		want   int64
	}{
		{name: "below first tier", amount: 100000, count: 2, want: 0},
		{name: "first tier", amount: 100000, count: 3, want: 10000},
		{name: "middle tier", amount: 100000, count: 6, want: 15000},
		{name: "top tier", amount: 100000, count: 9, want: 20000},
		{name: "rounds half up", amount: 5, count: 3, want: 1},
		{name: "rounds down below half", amount: 4, count: 3, want: 0},
		{name: "odd remainder", amount: 12345, count: 5, want: 1852},
		{name: "zero amount", amount: 0, count: 7, want: 0},
		{name: "negative amount", amount: -500, count: 7, want: 0},
		{name: "max int64 does not overflow", amount: math.MaxInt64, count: 7, want: 1844674407370955161},
		{name: "max int64 first tier", amount: math.MaxInt64, count: 3, want: 922337203685477581},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tiers.Discount(tc.amount, tc.count); got != tc.want {
				t.Fatalf("Discount(%d, %d) = %d, want %d", tc.amount, tc.count, got, tc.want)
			}
		})
	}
}

func TestBundleTiersValidate(t *testing.T) {
	if err := DefaultBundleTiers().Validate(); err != nil {
		t.Fatalf("default tiers invalid: %v", err)
	}

	invalid := map[string]BundleTiers{
		"zero count":       {{MinCount: 0, Percentage: 5}},
		"percentage > 100": {{MinCount: 1, Percentage: 101}},
		"count not rising": {{MinCount: 3, Percentage: 5}, {MinCount: 3, Percentage: 10}},
		"percentage falls": {{MinCount: 3, Percentage: 10}, {MinCount: 5, Percentage: 5}},
	}
	for name, tiers := range invalid {
		if err := tiers.Validate(); !errors.Is(err, ErrBundleTiersInvalid) {
			t.Fatalf("%s: expected ErrBundleTiersInvalid, got %v", name, err)
		}
	}
}
