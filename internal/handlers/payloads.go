package handlers

import (
	"sort"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/services"
)

type optionPayload struct {
	ID         string  `json:"id"`
	Label      string  `json:"label"`
	Price      *int64  `json:"price"`
	UsagePrice *int64  `json:"usagePrice,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
	Kind       string  `json:"kind,omitempty"`
	Months     int     `json:"months,omitempty"`
	StartsAt   bool    `json:"startsAt,omitempty"`
	Included   bool    `json:"included,omitempty"`
	Recurring  bool    `json:"recurring,omitempty"`
}

type featurePayload struct {
	ID      string          `json:"id"`
	Label   string          `json:"label"`
	Options []optionPayload `json:"options"`
}

type dimensionPayload struct {
	Name     string           `json:"name"`
	Label    string           `json:"label"`
	Step     int              `json:"step"`
	Select   string           `json:"select"`
	Bucket   string           `json:"bucket,omitempty"`
	Required bool             `json:"required"`
	Modifier bool             `json:"modifier,omitempty"`
	Scope    string           `json:"scope,omitempty"`
	Options  []optionPayload  `json:"options,omitempty"`
	Features []featurePayload `json:"features,omitempty"`
}

type servicePayload struct {
	Type       string             `json:"type"`
	Label      string             `json:"label"`
	Steps      int                `json:"steps"`
	Dimensions []dimensionPayload `json:"dimensions,omitempty"`
}

type planOfferingPayload struct {
	ServiceID string          `json:"serviceId"`
	Label     string          `json:"label"`
	Tiers     []optionPayload `json:"tiers"`
	AddOns    []optionPayload `json:"addOns"`
}

type bundleTierPayload struct {
	MinCount   int `json:"minCount"`
	Percentage int `json:"percentage"`
}

type addOnPayload struct {
	OptionID string `json:"optionId"`
	Quantity int    `json:"quantity"`
}

type featureSelectionPayload struct {
	FeatureID  string `json:"featureId"`
	OptionID   string `json:"optionId"`
	SetupPrice *int64 `json:"setupPrice"`
	UsagePrice *int64 `json:"usagePrice"`
	StartsAt   bool   `json:"startsAt,omitempty"`
}

type selectionPayload struct {
	Single   map[string]string                    `json:"single"`
	Multi    map[string][]addOnPayload            `json:"multi"`
	Features map[string][]featureSelectionPayload `json:"features"`
}

type priceLinePayload struct {
	Dimension   string `json:"dimension"`
	OptionID    string `json:"optionId"`
	FeatureID   string `json:"featureId,omitempty"`
	Label       string `json:"label"`
	Bucket      string `json:"bucket"`
	Quantity    int    `json:"quantity"`
	Amount      int64  `json:"amount"`
	CustomQuote bool   `json:"customQuote,omitempty"`
	StartsAt    bool   `json:"startsAt,omitempty"`
	Included    bool   `json:"included,omitempty"`
}

type adjustmentPayload struct {
	Dimension  string  `json:"dimension"`
	OptionID   string  `json:"optionId"`
	Kind       string  `json:"kind"`
	Scope      string  `json:"scope"`
	Multiplier float64 `json:"multiplier"`
	Base       int64   `json:"base"`
	Amount     int64   `json:"amount"`
}

type totalsPayload struct {
	OneTimeSubtotal  int64               `json:"oneTimeSubtotal"`
	MonthlySubtotal  int64               `json:"monthlySubtotal"`
	RushFee          int64               `json:"rushFee"`
	TimelineDiscount int64               `json:"timelineDiscount"`
	MonthlyPremium   int64               `json:"monthlyPremium"`
	DurationDiscount int64               `json:"durationDiscount"`
	OneTimeTotal     int64               `json:"oneTimeTotal"`
	MonthlyTotal     int64               `json:"monthlyTotal"`
	DurationMonths   int                 `json:"durationMonths,omitempty"`
	TotalInvestment  int64               `json:"totalInvestment"`
	HasCustomQuote   bool                `json:"hasCustomQuote"`
	StartsAt         bool                `json:"startsAt"`
	Lines            []priceLinePayload  `json:"lines"`
	Adjustments      []adjustmentPayload `json:"adjustments,omitempty"`
	Display          map[string]string   `json:"display,omitempty"`
}

type builderPayload struct {
	ServiceType     string           `json:"serviceType"`
	Step            int              `json:"step"`
	TotalSteps      int              `json:"totalSteps"`
	AtSummary       bool             `json:"atSummary"`
	Selection       selectionPayload `json:"selection"`
	Totals          totalsPayload    `json:"totals"`
	MissingRequired []string         `json:"missingRequired"`
	Saved           bool             `json:"saved"`
	UpdatedAt       string           `json:"updatedAt,omitempty"`
}

type snapshotPayload struct {
	ServiceType string           `json:"serviceType"`
	Selection   selectionPayload `json:"selection"`
	Totals      totalsPayload    `json:"totals"`
	SavedAt     string           `json:"savedAt,omitempty"`
}

type combinedPayload struct {
	ServiceCount             int               `json:"serviceCount"`
	OneTimeTotal             int64             `json:"oneTimeTotal"`
	MonthlyTotal             int64             `json:"monthlyTotal"`
	TotalInvestment          int64             `json:"totalInvestment"`
	BundleDiscountPercentage int               `json:"bundleDiscountPercentage"`
	BundleDiscount           int64             `json:"bundleDiscount"`
	OneTimeAfterDiscount     int64             `json:"oneTimeAfterDiscount"`
	HasCustomQuote           bool              `json:"hasCustomQuote"`
	StartsAt                 bool              `json:"startsAt"`
	CustomQuoteServices      []string          `json:"customQuoteServices"`
	Display                  map[string]string `json:"display,omitempty"`
}

type quotePayload struct {
	Services  []snapshotPayload `json:"services"`
	Available []string          `json:"available"`
	Combined  combinedPayload   `json:"combined"`
}

type planItemPayload struct {
	ServiceID string   `json:"serviceId"`
	TierID    string   `json:"tierId"`
	AddOnIDs  []string `json:"addOnIds"`
	Subtotal  int64    `json:"subtotal"`
	StartsAt  bool     `json:"startsAt,omitempty"`
}

type planPayload struct {
	Items              []planItemPayload `json:"items"`
	ItemCount          int               `json:"itemCount"`
	Subtotal           int64             `json:"subtotal"`
	DiscountPercentage int               `json:"discountPercentage"`
	Discount           int64             `json:"discount"`
	Total              int64             `json:"total"`
	Display            map[string]string `json:"display,omitempty"`
}

type contactPayload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Message string `json:"message,omitempty"`
}

type sessionPayload struct {
	ID        string           `json:"id"`
	Builders  []builderPayload `json:"builders"`
	Quote     quotePayload     `json:"quote"`
	Plan      planPayload      `json:"plan"`
	Contact   contactPayload   `json:"contact"`
	CreatedAt string           `json:"createdAt,omitempty"`
	UpdatedAt string           `json:"updatedAt,omitempty"`
}

type clearServicePayload struct {
	Quote   quotePayload `json:"quote"`
	Next    string       `json:"next,omitempty"`
	Removed bool         `json:"removed"`
}

func buildOptionPayloads(options domain.OptionList) []optionPayload {
	out := make([]optionPayload, 0, len(options))
	for _, opt := range options {
		out = append(out, optionPayload{
			ID:         opt.ID,
			Label:      opt.Label,
			Price:      opt.Price,
			UsagePrice: opt.UsagePrice,
			Multiplier: opt.Multiplier,
			Kind:       string(opt.Kind),
			Months:     opt.Months,
			StartsAt:   opt.StartsAt,
			Included:   opt.Included,
			Recurring:  opt.Recurring,
		})
	}
	return out
}

func buildServicePayload(schema domain.ServiceSchema, withDimensions bool) servicePayload {
	payload := servicePayload{
		Type:  string(schema.Type),
		Label: schema.Label,
		Steps: schema.SummaryStep(),
	}
	if !withDimensions {
		return payload
	}
	payload.Dimensions = make([]dimensionPayload, 0, len(schema.Dimensions))
	for _, dim := range schema.Dimensions {
		dp := dimensionPayload{
			Name:     dim.Name,
			Label:    dim.Label,
			Step:     dim.Step,
			Select:   string(dim.Select),
			Bucket:   string(dim.Bucket),
			Required: dim.Required,
			Modifier: dim.Modifier,
			Scope:    string(dim.Scope),
			Options:  buildOptionPayloads(dim.Options),
		}
		for _, feature := range dim.Features {
			dp.Features = append(dp.Features, featurePayload{
				ID:      feature.ID,
				Label:   feature.Label,
				Options: buildOptionPayloads(feature.Options),
			})
		}
		payload.Dimensions = append(payload.Dimensions, dp)
	}
	return payload
}

func buildSelectionPayload(sel domain.Selection) selectionPayload {
	payload := selectionPayload{
		Single:   make(map[string]string, len(sel.Single)),
		Multi:    make(map[string][]addOnPayload, len(sel.Multi)),
		Features: make(map[string][]featureSelectionPayload, len(sel.Features)),
	}
	for dim, id := range sel.Single {
		if id != "" {
			payload.Single[dim] = id
		}
	}
	for dim, entries := range sel.Multi {
		if len(entries) == 0 {
			continue
		}
		items := make([]addOnPayload, 0, len(entries))
		for _, entry := range entries {
			items = append(items, addOnPayload{OptionID: entry.OptionID, Quantity: entry.Quantity})
		}
		payload.Multi[dim] = items
	}
	for dim, entries := range sel.Features {
		if len(entries) == 0 {
			continue
		}
		items := make([]featureSelectionPayload, 0, len(entries))
		for _, entry := range entries {
			items = append(items, featureSelectionPayload{
				FeatureID:  entry.FeatureID,
				OptionID:   entry.OptionID,
				SetupPrice: entry.SetupPrice,
				UsagePrice: entry.UsagePrice,
				StartsAt:   entry.StartsAt,
			})
		}
		payload.Features[dim] = items
	}
	return payload
}

func buildTotalsPayload(t domain.Totals, formatter *services.EstimateFormatter) totalsPayload {
	payload := totalsPayload{
		OneTimeSubtotal:  t.OneTimeSubtotal,
		MonthlySubtotal:  t.MonthlySubtotal,
		RushFee:          t.RushFee,
		TimelineDiscount: t.TimelineDiscount,
		MonthlyPremium:   t.MonthlyPremium,
		DurationDiscount: t.DurationDiscount,
		OneTimeTotal:     t.OneTimeTotal,
		MonthlyTotal:     t.MonthlyTotal,
		DurationMonths:   t.DurationMonths,
		TotalInvestment:  t.TotalInvestment,
		HasCustomQuote:   t.HasCustomQuote,
		StartsAt:         t.StartsAt,
		Lines:            make([]priceLinePayload, 0, len(t.Lines)),
	}
	for _, line := range t.Lines {
		payload.Lines = append(payload.Lines, priceLinePayload{
			Dimension:   line.Dimension,
			OptionID:    line.OptionID,
			FeatureID:   line.FeatureID,
			Label:       line.Label,
			Bucket:      string(line.Bucket),
			Quantity:    line.Quantity,
			Amount:      line.Amount,
			CustomQuote: line.CustomQuote,
			StartsAt:    line.StartsAt,
			Included:    line.Included,
		})
	}
	for _, adj := range t.Adjustments {
		payload.Adjustments = append(payload.Adjustments, adjustmentPayload{
			Dimension:  adj.Dimension,
			OptionID:   adj.OptionID,
			Kind:       string(adj.Kind),
			Scope:      string(adj.Scope),
			Multiplier: adj.Multiplier,
			Base:       adj.Base,
			Amount:     adj.Amount,
		})
	}
	if formatter != nil {
		payload.Display = formatter.TotalsDisplay(t)
	}
	return payload
}

func buildBuilderPayload(view services.BuilderView, formatter *services.EstimateFormatter) builderPayload {
	missing := view.MissingRequired
	if missing == nil {
		missing = []string{}
	}
	return builderPayload{
		ServiceType:     string(view.ServiceType),
		Step:            view.Step,
		TotalSteps:      view.TotalSteps,
		AtSummary:       view.AtSummary,
		Selection:       buildSelectionPayload(view.Selection),
		Totals:          buildTotalsPayload(view.Totals, formatter),
		MissingRequired: missing,
		Saved:           view.Saved,
		UpdatedAt:       formatTime(view.UpdatedAt),
	}
}

func buildQuotePayload(view services.QuoteView, formatter *services.EstimateFormatter) quotePayload {
	payload := quotePayload{
		Services:  make([]snapshotPayload, 0, len(view.Services)),
		Available: serviceTypeStrings(view.Available),
		Combined: combinedPayload{
			ServiceCount:             view.Combined.ServiceCount,
			OneTimeTotal:             view.Combined.OneTimeTotal,
			MonthlyTotal:             view.Combined.MonthlyTotal,
			TotalInvestment:          view.Combined.TotalInvestment,
			BundleDiscountPercentage: view.Combined.BundleDiscountPercentage,
			BundleDiscount:           view.Combined.BundleDiscount,
			OneTimeAfterDiscount:     view.Combined.OneTimeAfterDiscount,
			HasCustomQuote:           view.Combined.HasCustomQuote,
			StartsAt:                 view.Combined.StartsAt,
			CustomQuoteServices:      serviceTypeStrings(view.Combined.CustomQuoteServices),
		},
	}
	for _, snap := range view.Services {
		payload.Services = append(payload.Services, snapshotPayload{
			ServiceType: string(snap.ServiceType),
			Selection:   buildSelectionPayload(snap.Selection),
			Totals:      buildTotalsPayload(snap.Totals, formatter),
			SavedAt:     formatTime(snap.SavedAt),
		})
	}
	if formatter != nil {
		payload.Combined.Display = formatter.CombinedDisplay(view.Combined)
	}
	return payload
}

func buildPlanPayload(summary domain.PlanSummary, formatter *services.EstimateFormatter) planPayload {
	payload := planPayload{
		Items:              make([]planItemPayload, 0, len(summary.Items)),
		ItemCount:          summary.ItemCount,
		Subtotal:           summary.Subtotal,
		DiscountPercentage: summary.DiscountPercentage,
		Discount:           summary.Discount,
		Total:              summary.Total,
	}
	for _, item := range summary.Items {
		addOns := item.AddOnIDs
		if addOns == nil {
			addOns = []string{}
		}
		payload.Items = append(payload.Items, planItemPayload{
			ServiceID: item.ServiceID,
			TierID:    item.TierID,
			AddOnIDs:  addOns,
			Subtotal:  item.Subtotal,
			StartsAt:  item.StartsAt,
		})
	}
	if formatter != nil {
		payload.Display = formatter.PlanDisplay(summary)
	}
	return payload
}

func buildContactPayload(contact domain.Contact) contactPayload {
	return contactPayload{
		Name:    contact.Name,
		Email:   contact.Email,
		Phone:   contact.Phone,
		Company: contact.Company,
		Message: contact.Message,
	}
}

func buildSessionPayload(view services.SessionView, formatter *services.EstimateFormatter) sessionPayload {
	payload := sessionPayload{
		ID:        view.ID,
		Builders:  make([]builderPayload, 0, len(view.Builders)),
		Quote:     buildQuotePayload(view.Quote, formatter),
		Plan:      buildPlanPayload(view.Plan, formatter),
		Contact:   buildContactPayload(view.Contact),
		CreatedAt: formatTime(view.CreatedAt),
		UpdatedAt: formatTime(view.UpdatedAt),
	}
	for _, b := range view.Builders {
		payload.Builders = append(payload.Builders, buildBuilderPayload(b, formatter))
	}
	return payload
}

func serviceTypeStrings(types []domain.ServiceType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func sortedBundleTiers(tiers domain.BundleTiers) []bundleTierPayload {
	out := make([]bundleTierPayload, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, bundleTierPayload{MinCount: tier.MinCount, Percentage: tier.Percentage})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinCount < out[j].MinCount })
	return out
}
