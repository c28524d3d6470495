package domain

// ServiceType identifies one builder flow (website, seo, animation, ...).
type ServiceType string

// Bucket names the subtotal a price accrues to.
type Bucket string

const (
	// BucketOneTime accumulates one-off project fees.
	BucketOneTime Bucket = "one_time"
	// BucketMonthly accumulates recurring monthly fees.
	BucketMonthly Bucket = "monthly"
)

// SelectMode describes how a dimension holds its selections.
type SelectMode string

const (
	// SelectSingle holds at most one option id.
	SelectSingle SelectMode = "single"
	// SelectMulti holds an ordered list of add-on entries with quantities.
	SelectMulti SelectMode = "multi"
	// SelectFeature holds feature/tier pairs whose prices are frozen at selection time.
	SelectFeature SelectMode = "feature"
)

// ModifierKind makes the sign of a multiplier explicit.
type ModifierKind string

const (
	// ModifierNone marks an option without a multiplier effect.
	ModifierNone ModifierKind = ""
	// ModifierPremium scales a subtotal up and reports the delta as a fee.
	ModifierPremium ModifierKind = "premium"
	// ModifierDiscount scales a subtotal down and reports the delta as a discount.
	ModifierDiscount ModifierKind = "discount"
)

// Option is one selectable value within a dimension.
//
// A nil Price means the option requires a custom quote. UsagePrice is only meaningful for
// feature dimensions where a selection carries both a setup and a recurring usage fee.
type Option struct {
	ID         string
	Label      string
	Price      *int64
	UsagePrice *int64
	Multiplier float64
	Kind       ModifierKind
	Months     int
	StartsAt   bool
	Included   bool
	OneTime    bool
	Recurring  bool
}

// EffectiveMultiplier returns the multiplier, treating an unset value as 1.0.
func (o Option) EffectiveMultiplier() float64 {
	if o.Multiplier <= 0 {
		return 1
	}
	return o.Multiplier
}

// IsCustomQuote reports whether the option has no deterministic price.
func (o Option) IsCustomQuote() bool {
	return o.Price == nil && !o.Included
}

// BucketFor resolves which subtotal the option's price accrues to.
func (o Option) BucketFor(fallback Bucket) Bucket {
	switch {
	case o.Recurring:
		return BucketMonthly
	case o.OneTime:
		return BucketOneTime
	case fallback == "":
		return BucketOneTime
	default:
		return fallback
	}
}

// OptionList is an ordered catalog list for one dimension.
type OptionList []Option

// Find looks up an option by id. Absent ids report false and never panic.
func (l OptionList) Find(id string) (Option, bool) {
	if id == "" {
		return Option{}, false
	}
	for i := range l {
		if l[i].ID == id {
			return l[i], true
		}
	}
	return Option{}, false
}

// Feature is one toggleable capability within a feature dimension, with its own tier list.
type Feature struct {
	ID      string
	Label   string
	Options OptionList
}

// Dimension is one configurable aspect of a builder backed by an option list.
//
// Modifier dimensions carry multipliers that scale the subtotal of Scope instead of adding a
// flat amount.
type Dimension struct {
	Name     string
	Label    string
	Step     int
	Select   SelectMode
	Bucket   Bucket
	Required bool
	Modifier bool
	Scope    Bucket
	Options  OptionList
	Features []Feature
}

// FindFeature looks up a feature definition by id.
func (d Dimension) FindFeature(id string) (Feature, bool) {
	for i := range d.Features {
		if d.Features[i].ID == id {
			return d.Features[i], true
		}
	}
	return Feature{}, false
}

// ServiceSchema declares the dimensions and step count of one builder.
type ServiceSchema struct {
	Type       ServiceType
	Label      string
	Steps      int
	Dimensions []Dimension
}

// Dimension looks up a dimension by name.
func (s ServiceSchema) Dimension(name string) (Dimension, bool) {
	for i := range s.Dimensions {
		if s.Dimensions[i].Name == name {
			return s.Dimensions[i], true
		}
	}
	return Dimension{}, false
}

// SummaryStep is the final wizard step where the builder is saved into the unified quote.
func (s ServiceSchema) SummaryStep() int {
	if s.Steps < 1 {
		return 1
	}
	return s.Steps
}

// HasDuration reports whether any modifier dimension carries a contract length.
func (s ServiceSchema) HasDuration() bool {
	for _, dim := range s.Dimensions {
		if !dim.Modifier {
			continue
		}
		for _, opt := range dim.Options {
			if opt.Months > 0 {
				return true
			}
		}
	}
	return false
}

// PlanOffering lists the landing-page tiers and add-ons for one service.
type PlanOffering struct {
	ServiceID string
	Label     string
	Tiers     OptionList
	AddOns    OptionList
}

// Catalog is the read-only pricing configuration loaded once at start.
type Catalog struct {
	Currency    string
	Services    []ServiceSchema
	Plans       []PlanOffering
	BundleTiers BundleTiers
}

// Service looks up a builder schema by type.
func (c *Catalog) Service(serviceType ServiceType) (ServiceSchema, bool) {
	if c == nil {
		return ServiceSchema{}, false
	}
	for i := range c.Services {
		if c.Services[i].Type == serviceType {
			return c.Services[i], true
		}
	}
	return ServiceSchema{}, false
}

// ServiceTypes returns every builder type in catalog order.
func (c *Catalog) ServiceTypes() []ServiceType {
	if c == nil {
		return nil
	}
	out := make([]ServiceType, 0, len(c.Services))
	for _, svc := range c.Services {
		out = append(out, svc.Type)
	}
	return out
}

// Plan looks up a landing-page offering by service id.
func (c *Catalog) Plan(serviceID string) (PlanOffering, bool) {
	if c == nil {
		return PlanOffering{}, false
	}
	for i := range c.Plans {
		if c.Plans[i].ServiceID == serviceID {
			return c.Plans[i], true
		}
	}
	return PlanOffering{}, false
}

// Int64Ptr returns a pointer to the supplied amount.
func Int64Ptr(v int64) *int64 {
	return &v
}
