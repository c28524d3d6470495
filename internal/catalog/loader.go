package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/currency"
	"gopkg.in/yaml.v3"

	"github.com/finitefield/quote-configurator/internal/domain"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// ErrInvalidCatalog is returned when catalog data fails validation.
var ErrInvalidCatalog = errors.New("catalog: invalid definition")

// stepsAfterDimensions counts the contact step and the summary step that follow the dimensions.
const stepsAfterDimensions = 2

type catalogDocument struct {
	Currency    string            `yaml:"currency"`
	BundleTiers []bundleTierDoc   `yaml:"bundle_tiers"`
	Services    []serviceDocument `yaml:"services"`
	Plans       []planDocument    `yaml:"plans"`
}

type bundleTierDoc struct {
	MinCount   int `yaml:"min_count"`
	Percentage int `yaml:"percentage"`
}

type serviceDocument struct {
	Type       string              `yaml:"type"`
	Label      string              `yaml:"label"`
	Dimensions []dimensionDocument `yaml:"dimensions"`
}

type dimensionDocument struct {
	Name     string            `yaml:"name"`
	Label    string            `yaml:"label"`
	Select   string            `yaml:"select"`
	Bucket   string            `yaml:"bucket"`
	Required bool              `yaml:"required"`
	Modifier bool              `yaml:"modifier"`
	Scope    string            `yaml:"scope"`
	Options  []optionDocument  `yaml:"options"`
	Features []featureDocument `yaml:"features"`
}

type featureDocument struct {
	ID      string           `yaml:"id"`
	Label   string           `yaml:"label"`
	Options []optionDocument `yaml:"options"`
}

type optionDocument struct {
	ID         string  `yaml:"id"`
	Label      string  `yaml:"label"`
	// Price stays a raw node so an explicit `price: null` is distinguishable from an absent key.
	Price      yaml.Node `yaml:"price"`
	UsagePrice *int64    `yaml:"usage_price"`
	Multiplier float64   `yaml:"multiplier"`
	Kind       string    `yaml:"kind"`
	Months     int       `yaml:"months"`
	StartsAt   bool      `yaml:"starts_at"`
	Included   bool      `yaml:"included"`
	OneTime    bool      `yaml:"one_time"`
	Recurring  bool      `yaml:"recurring"`
}

func (doc optionDocument) hasPrice() bool {
	return doc.Price.Kind != 0
}

func (doc optionDocument) price() (*int64, error) {
	if !doc.hasPrice() || doc.Price.ShortTag() == "!!null" {
		return nil, nil
	}
	var amount int64
	if err := doc.Price.Decode(&amount); err != nil {
		return nil, err
	}
	return &amount, nil
}

type planDocument struct {
	ServiceID string           `yaml:"service_id"`
	Label     string           `yaml:"label"`
	Tiers     []optionDocument `yaml:"tiers"`
	AddOns    []optionDocument `yaml:"add_ons"`
}

// Default returns the catalog compiled into the binary.
func Default() (*domain.Catalog, error) {
	return Parse(embeddedCatalog)
}

// Load reads the catalog from path, falling back to the embedded catalog when path is empty.
func Load(path string) (*domain.Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document. Unknown keys are rejected.
func Parse(data []byte) (*domain.Catalog, error) {
	var doc catalogDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidCatalog, err)
	}
	return doc.toDomain()
}

func (doc catalogDocument) toDomain() (*domain.Catalog, error) {
	code := strings.ToUpper(strings.TrimSpace(doc.Currency))
	if code == "" {
		code = "USD"
	}
	if _, err := currency.ParseISO(code); err != nil {
		return nil, fmt.Errorf("%w: currency %q: %v", ErrInvalidCatalog, doc.Currency, err)
	}

	cat := &domain.Catalog{Currency: code}

	if len(doc.BundleTiers) == 0 {
		cat.BundleTiers = domain.DefaultBundleTiers()
	} else {
		for _, tier := range doc.BundleTiers {
			cat.BundleTiers = append(cat.BundleTiers, domain.BundleTier{MinCount: tier.MinCount, Percentage: tier.Percentage})
		}
	}
	if err := cat.BundleTiers.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	if len(doc.Services) == 0 {
		return nil, fmt.Errorf("%w: no services defined", ErrInvalidCatalog)
	}
	seenServices := make(map[string]struct{}, len(doc.Services))
	for _, svcDoc := range doc.Services {
		svc, err := svcDoc.toDomain()
		if err != nil {
			return nil, err
		}
		if _, dup := seenServices[string(svc.Type)]; dup {
			return nil, fmt.Errorf("%w: duplicate service %q", ErrInvalidCatalog, svc.Type)
		}
		seenServices[string(svc.Type)] = struct{}{}
		cat.Services = append(cat.Services, svc)
	}

	seenPlans := make(map[string]struct{}, len(doc.Plans))
	for _, planDoc := range doc.Plans {
		plan, err := planDoc.toDomain()
		if err != nil {
			return nil, err
		}
		if _, dup := seenPlans[plan.ServiceID]; dup {
			return nil, fmt.Errorf("%w: duplicate plan %q", ErrInvalidCatalog, plan.ServiceID)
		}
		seenPlans[plan.ServiceID] = struct{}{}
		cat.Plans = append(cat.Plans, plan)
	}
	return cat, nil
}

func (doc serviceDocument) toDomain() (domain.ServiceSchema, error) {
	serviceType := strings.TrimSpace(doc.Type)
	if serviceType == "" {
		return domain.ServiceSchema{}, fmt.Errorf("%w: service type is required", ErrInvalidCatalog)
	}
	if len(doc.Dimensions) == 0 {
		return domain.ServiceSchema{}, fmt.Errorf("%w: service %q has no dimensions", ErrInvalidCatalog, serviceType)
	}
	schema := domain.ServiceSchema{
		Type:  domain.ServiceType(serviceType),
		Label: strings.TrimSpace(doc.Label),
		Steps: len(doc.Dimensions) + stepsAfterDimensions,
	}
	seen := make(map[string]struct{}, len(doc.Dimensions))
	for idx, dimDoc := range doc.Dimensions {
		dim, err := dimDoc.toDomain(serviceType)
		if err != nil {
			return domain.ServiceSchema{}, err
		}
		if _, dup := seen[dim.Name]; dup {
			return domain.ServiceSchema{}, fmt.Errorf("%w: %s: duplicate dimension %q", ErrInvalidCatalog, serviceType, dim.Name)
		}
		seen[dim.Name] = struct{}{}
		dim.Step = idx + 1
		schema.Dimensions = append(schema.Dimensions, dim)
	}
	return schema, nil
}

func (doc dimensionDocument) toDomain(serviceType string) (domain.Dimension, error) {
	name := strings.TrimSpace(doc.Name)
	where := serviceType + "." + name
	if name == "" {
		return domain.Dimension{}, fmt.Errorf("%w: %s: dimension name is required", ErrInvalidCatalog, serviceType)
	}

	dim := domain.Dimension{
		Name:     name,
		Label:    strings.TrimSpace(doc.Label),
		Required: doc.Required,
		Modifier: doc.Modifier,
	}

	switch domain.SelectMode(strings.ToLower(strings.TrimSpace(doc.Select))) {
	case "", domain.SelectSingle:
		dim.Select = domain.SelectSingle
	case domain.SelectMulti:
		dim.Select = domain.SelectMulti
	case domain.SelectFeature:
		dim.Select = domain.SelectFeature
	default:
		return domain.Dimension{}, fmt.Errorf("%w: %s: unknown select mode %q", ErrInvalidCatalog, where, doc.Select)
	}

	bucket, err := parseBucket(doc.Bucket)
	if err != nil {
		return domain.Dimension{}, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, where, err)
	}
	dim.Bucket = bucket

	if dim.Modifier {
		if dim.Select != domain.SelectSingle {
			return domain.Dimension{}, fmt.Errorf("%w: %s: modifier dimensions must be single select", ErrInvalidCatalog, where)
		}
		scope, err := parseBucket(doc.Scope)
		if err != nil {
			return domain.Dimension{}, fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, where, err)
		}
		dim.Scope = scope
	}

	if dim.Select == domain.SelectFeature {
		if len(doc.Features) == 0 {
			return domain.Dimension{}, fmt.Errorf("%w: %s: feature dimension has no features", ErrInvalidCatalog, where)
		}
		seen := make(map[string]struct{}, len(doc.Features))
		for _, featDoc := range doc.Features {
			id := strings.TrimSpace(featDoc.ID)
			if id == "" {
				return domain.Dimension{}, fmt.Errorf("%w: %s: feature id is required", ErrInvalidCatalog, where)
			}
			if _, dup := seen[id]; dup {
				return domain.Dimension{}, fmt.Errorf("%w: %s: duplicate feature %q", ErrInvalidCatalog, where, id)
			}
			seen[id] = struct{}{}
			opts, err := convertOptions(where+"."+id, featDoc.Options, false)
			if err != nil {
				return domain.Dimension{}, err
			}
			if len(opts) == 0 {
				return domain.Dimension{}, fmt.Errorf("%w: %s.%s: feature has no tiers", ErrInvalidCatalog, where, id)
			}
			dim.Features = append(dim.Features, domain.Feature{ID: id, Label: strings.TrimSpace(featDoc.Label), Options: opts})
		}
		return dim, nil
	}

	if len(doc.Features) > 0 {
		return domain.Dimension{}, fmt.Errorf("%w: %s: features are only allowed on feature dimensions", ErrInvalidCatalog, where)
	}
	opts, err := convertOptions(where, doc.Options, dim.Modifier)
	if err != nil {
		return domain.Dimension{}, err
	}
	if len(opts) == 0 {
		return domain.Dimension{}, fmt.Errorf("%w: %s: dimension has no options", ErrInvalidCatalog, where)
	}
	dim.Options = opts
	return dim, nil
}

func (doc planDocument) toDomain() (domain.PlanOffering, error) {
	id := strings.TrimSpace(doc.ServiceID)
	if id == "" {
		return domain.PlanOffering{}, fmt.Errorf("%w: plan service_id is required", ErrInvalidCatalog)
	}
	tiers, err := convertOptions("plan."+id+".tiers", doc.Tiers, false)
	if err != nil {
		return domain.PlanOffering{}, err
	}
	if len(tiers) == 0 {
		return domain.PlanOffering{}, fmt.Errorf("%w: plan %q has no tiers", ErrInvalidCatalog, id)
	}
	for _, tier := range tiers {
		if tier.Price == nil {
			return domain.PlanOffering{}, fmt.Errorf("%w: plan %q tier %q must be priced", ErrInvalidCatalog, id, tier.ID)
		}
	}
	addOns, err := convertOptions("plan."+id+".add_ons", doc.AddOns, false)
	if err != nil {
		return domain.PlanOffering{}, err
	}
	for _, addOn := range addOns {
		if addOn.Price == nil {
			return domain.PlanOffering{}, fmt.Errorf("%w: plan %q add-on %q must be priced", ErrInvalidCatalog, id, addOn.ID)
		}
	}
	return domain.PlanOffering{
		ServiceID: id,
		Label:     strings.TrimSpace(doc.Label),
		Tiers:     tiers,
		AddOns:    addOns,
	}, nil
}

func convertOptions(where string, docs []optionDocument, modifier bool) (domain.OptionList, error) {
	out := make(domain.OptionList, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		id := strings.TrimSpace(doc.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: %s: option id is required", ErrInvalidCatalog, where)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate option %q", ErrInvalidCatalog, where, id)
		}
		seen[id] = struct{}{}

		if modifier && (doc.hasPrice() || doc.UsagePrice != nil) {
			return nil, fmt.Errorf("%w: %s.%s: price is not valid on modifier options", ErrInvalidCatalog, where, id)
		}
		price, err := doc.price()
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: price: %v", ErrInvalidCatalog, where, id, err)
		}

		opt := domain.Option{
			ID:         id,
			Label:      strings.TrimSpace(doc.Label),
			Price:      price,
			UsagePrice: doc.UsagePrice,
			Multiplier: doc.Multiplier,
			Kind:       domain.ModifierKind(strings.ToLower(strings.TrimSpace(doc.Kind))),
			Months:     doc.Months,
			StartsAt:   doc.StartsAt,
			Included:   doc.Included,
			OneTime:    doc.OneTime,
			Recurring:  doc.Recurring,
		}
		if opt.Price != nil && *opt.Price < 0 {
			return nil, fmt.Errorf("%w: %s.%s: negative price", ErrInvalidCatalog, where, id)
		}
		if opt.UsagePrice != nil && *opt.UsagePrice < 0 {
			return nil, fmt.Errorf("%w: %s.%s: negative usage price", ErrInvalidCatalog, where, id)
		}
		if opt.OneTime && opt.Recurring {
			return nil, fmt.Errorf("%w: %s.%s: option cannot be both one_time and recurring", ErrInvalidCatalog, where, id)
		}
		if opt.Included && opt.Price == nil {
			opt.Price = domain.Int64Ptr(0)
		}
		if modifier {
			if err := validateModifier(opt); err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", ErrInvalidCatalog, where, id, err)
			}
		} else if opt.Multiplier != 0 || opt.Kind != domain.ModifierNone || opt.Months != 0 {
			return nil, fmt.Errorf("%w: %s.%s: multiplier, kind and months are only valid on modifier dimensions", ErrInvalidCatalog, where, id)
		}
		out = append(out, opt)
	}
	return out, nil
}

// validateModifier enforces that the declared kind agrees with the multiplier's direction.
func validateModifier(opt domain.Option) error {
	if opt.Multiplier <= 0 {
		return errors.New("multiplier must be positive")
	}
	if opt.Months < 0 {
		return errors.New("months must not be negative")
	}
	switch opt.Kind {
	case domain.ModifierNone:
		if opt.Multiplier != 1 {
			return fmt.Errorf("multiplier %.2f requires kind premium or discount", opt.Multiplier)
		}
	case domain.ModifierPremium:
		if opt.Multiplier <= 1 {
			return fmt.Errorf("premium multiplier %.2f must exceed 1", opt.Multiplier)
		}
	case domain.ModifierDiscount:
		if opt.Multiplier >= 1 {
			return fmt.Errorf("discount multiplier %.2f must be below 1", opt.Multiplier)
		}
	default:
		return fmt.Errorf("unknown kind %q", opt.Kind)
	}
	return nil
}

func parseBucket(raw string) (domain.Bucket, error) {
	switch domain.Bucket(strings.ToLower(strings.TrimSpace(raw))) {
	case "", domain.BucketOneTime:
		return domain.BucketOneTime, nil
	case domain.BucketMonthly:
		return domain.BucketMonthly, nil
	default:
		return "", fmt.Errorf("unknown bucket %q", raw)
	}
}
