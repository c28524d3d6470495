package domain

import "time"

// Totals captures the derived pricing breakdown of one builder's selections.
//
// Totals are always recomputed from a Selection and the catalog; they are never persisted.
// When HasCustomQuote is set the amounts remain arithmetically valid but are not authoritative.
type Totals struct {
	OneTimeSubtotal  int64
	MonthlySubtotal  int64
	RushFee          int64
	TimelineDiscount int64
	MonthlyPremium   int64
	DurationDiscount int64
	OneTimeTotal     int64
	MonthlyTotal     int64
	DurationMonths   int
	TotalInvestment  int64
	HasCustomQuote   bool
	StartsAt         bool
	Lines            []PriceLine
	Adjustments      []Adjustment
}

// PriceLine records one contributing selection.
type PriceLine struct {
	Dimension   string
	OptionID    string
	FeatureID   string
	Label       string
	Bucket      Bucket
	Quantity    int
	Amount      int64
	CustomQuote bool
	StartsAt    bool
	Included    bool
}

// Adjustment records a multiplier applied to a subtotal.
type Adjustment struct {
	Dimension  string
	OptionID   string
	Kind       ModifierKind
	Scope      Bucket
	Multiplier float64
	Base       int64
	Amount     int64
}

// Snapshot is a saved copy of one builder's selections and totals held by the unified quote.
type Snapshot struct {
	ServiceType ServiceType
	Selection   Selection
	Totals      Totals
	SavedAt     time.Time
}

// CombinedTotals aggregates every configured service.
type CombinedTotals struct {
	ServiceCount             int
	OneTimeTotal             int64
	MonthlyTotal             int64
	TotalInvestment          int64
	BundleDiscountPercentage int
	BundleDiscount           int64
	OneTimeAfterDiscount     int64
	HasCustomQuote           bool
	StartsAt                 bool
	CustomQuoteServices      []ServiceType
}

// PlanLineItem is one landing-page service with its chosen tier and add-ons.
type PlanLineItem struct {
	ServiceID string
	TierID    string
	AddOnIDs  []string
	Subtotal  int64
	StartsAt  bool
}

// PlanSummary is the derived view of the plan store.
type PlanSummary struct {
	Items              []PlanLineItem
	ItemCount          int
	Subtotal           int64
	DiscountPercentage int
	Discount           int64
	Total              int64
}
