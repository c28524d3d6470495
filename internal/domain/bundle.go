package domain

import (
	"errors"
	"fmt"
)

// ErrBundleTiersInvalid reports a bundle table that is not monotonic.
var ErrBundleTiersInvalid = errors.New("bundle tiers: invalid table")

// BundleTier grants Percentage off when at least MinCount distinct services are present.
type BundleTier struct {
	MinCount   int
	Percentage int
}

// BundleTiers is ordered by MinCount ascending.
type BundleTiers []BundleTier

// DefaultBundleTiers is the shipped ladder: 3+ services 10%, 5+ 15%, 7+ 20%.
func DefaultBundleTiers() BundleTiers {
	return BundleTiers{
		{MinCount: 3, Percentage: 10},
		{MinCount: 5, Percentage: 15},
		{MinCount: 7, Percentage: 20},
	}
}

// Percentage returns the discount percentage for count distinct services.
func (t BundleTiers) Percentage(count int) int {
	pct := 0
	for _, tier := range t {
		if count < tier.MinCount {
			break
		}
		pct = tier.Percentage
	}
	return pct
}

// Discount applies the tier percentage for count to amount, rounding half up.
func (t BundleTiers) Discount(amount int64, count int) int64 {
	pct := t.Percentage(count)
	if pct <= 0 || amount <= 0 {
		return 0
	}
	// Split on the hundreds so amount*pct never overflows int64.
	p := int64(pct)
	return amount/100*p + (amount%100*p+50)/100
}

// Validate checks that thresholds strictly increase and percentages never decrease.
func (t BundleTiers) Validate() error {
	prevCount := 0
	prevPct := 0
	for idx, tier := range t {
		if tier.MinCount <= 0 {
			return fmt.Errorf("%w: tier %d min count must be positive", ErrBundleTiersInvalid, idx)
		}
		if tier.Percentage < 0 || tier.Percentage > 100 {
			return fmt.Errorf("%w: tier %d percentage %d out of range", ErrBundleTiersInvalid, idx, tier.Percentage)
		}
		if idx > 0 && tier.MinCount <= prevCount {
			return fmt.Errorf("%w: tier %d min count %d not above %d", ErrBundleTiersInvalid, idx, tier.MinCount, prevCount)
		}
		if tier.Percentage < prevPct {
			return fmt.Errorf("%w: tier %d percentage %d below %d", ErrBundleTiersInvalid, idx, tier.Percentage, prevPct)
		}
		prevCount = tier.MinCount
		prevPct = tier.Percentage
	}
	return nil
}
