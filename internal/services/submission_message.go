package services

import (
	"sort"
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// SubmissionMessage is the JSON payload published for a submission.
type SubmissionMessage struct {
	SubmissionID   string             `json:"submissionId"`
	SessionID      string             `json:"sessionId"`
	Currency       string             `json:"currency"`
	Contact        SubmissionContact  `json:"contact"`
	Services       []SubmittedService `json:"services"`
	Combined       SubmittedTotals    `json:"combined"`
	Plan           *SubmittedPlan     `json:"plan,omitempty"`
	SubmittedAt    time.Time          `json:"submittedAt"`
	IdempotencyKey string             `json:"idempotencyKey,omitempty"`
}

// SubmissionContact carries the sanitised contact fields.
type SubmissionContact struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Message string `json:"message,omitempty"`
}

// SubmittedService is one configured service with its answers and final totals.
type SubmittedService struct {
	ServiceType     string              `json:"serviceType"`
	Selections      []SubmittedAnswer   `json:"selections"`
	OneTimeTotal    int64               `json:"oneTimeTotal"`
	MonthlyTotal    int64               `json:"monthlyTotal"`
	DurationMonths  int                 `json:"durationMonths,omitempty"`
	TotalInvestment int64               `json:"totalInvestment"`
	HasCustomQuote  bool                `json:"hasCustomQuote"`
	StartsAt        bool                `json:"startsAt"`
	Display         map[string]string   `json:"display"`
	Adjustments     []SubmittedModifier `json:"adjustments,omitempty"`
}

// SubmittedAnswer is one answered dimension. FeatureID is set for feature dimensions.
type SubmittedAnswer struct {
	Dimension string `json:"dimension"`
	OptionID  string `json:"optionId"`
	FeatureID string `json:"featureId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
}

// SubmittedModifier records a premium or discount applied to a subtotal.
type SubmittedModifier struct {
	Dimension string `json:"dimension"`
	OptionID  string `json:"optionId"`
	Kind      string `json:"kind"`
	Amount    int64  `json:"amount"`
}

// SubmittedTotals mirrors the combined totals of the unified quote.
type SubmittedTotals struct {
	ServiceCount             int      `json:"serviceCount"`
	OneTimeTotal             int64    `json:"oneTimeTotal"`
	MonthlyTotal             int64    `json:"monthlyTotal"`
	BundleDiscountPercentage int      `json:"bundleDiscountPercentage"`
	BundleDiscount           int64    `json:"bundleDiscount"`
	TotalInvestment          int64    `json:"totalInvestment"`
	HasCustomQuote           bool     `json:"hasCustomQuote"`
	CustomQuoteServices      []string `json:"customQuoteServices,omitempty"`
}

// SubmittedPlan mirrors the plan summary.
type SubmittedPlan struct {
	Items              []SubmittedPlanItem `json:"items"`
	Subtotal           int64               `json:"subtotal"`
	DiscountPercentage int                 `json:"discountPercentage"`
	Discount           int64               `json:"discount"`
	Total              int64               `json:"total"`
}

// SubmittedPlanItem is one plan line.
type SubmittedPlanItem struct {
	ServiceID string   `json:"serviceId"`
	TierID    string   `json:"tierId"`
	AddOnIDs  []string `json:"addOnIds,omitempty"`
	Subtotal  int64    `json:"subtotal"`
}

func newSubmissionMessage(sub domain.QuoteSubmission, formatter *EstimateFormatter, idempotencyKey string) SubmissionMessage {
	msg := SubmissionMessage{
		SubmissionID: sub.ID,
		SessionID:    sub.SessionID,
		Currency:     sub.Currency,
		Contact: SubmissionContact{
			Name:    sub.Contact.Name,
			Email:   sub.Contact.Email,
			Phone:   sub.Contact.Phone,
			Company: sub.Contact.Company,
			Message: sub.Contact.Message,
		},
		Services: make([]SubmittedService, 0, len(sub.Services)),
		Combined: SubmittedTotals{
			ServiceCount:             sub.Combined.ServiceCount,
			OneTimeTotal:             sub.Combined.OneTimeTotal,
			MonthlyTotal:             sub.Combined.MonthlyTotal,
			BundleDiscountPercentage: sub.Combined.BundleDiscountPercentage,
			BundleDiscount:           sub.Combined.BundleDiscount,
			TotalInvestment:          sub.Combined.TotalInvestment,
			HasCustomQuote:           sub.Combined.HasCustomQuote,
		},
		SubmittedAt:    sub.SubmittedAt,
		IdempotencyKey: idempotencyKey,
	}
	for _, serviceType := range sub.Combined.CustomQuoteServices {
		msg.Combined.CustomQuoteServices = append(msg.Combined.CustomQuoteServices, string(serviceType))
	}

	for _, snapshot := range sub.Services {
		service := SubmittedService{
			ServiceType:     string(snapshot.ServiceType),
			Selections:      submittedAnswers(snapshot.Selection),
			OneTimeTotal:    snapshot.Totals.OneTimeTotal,
			MonthlyTotal:    snapshot.Totals.MonthlyTotal,
			DurationMonths:  snapshot.Totals.DurationMonths,
			TotalInvestment: snapshot.Totals.TotalInvestment,
			HasCustomQuote:  snapshot.Totals.HasCustomQuote,
			StartsAt:        snapshot.Totals.StartsAt,
		}
		if formatter != nil {
			service.Display = formatter.TotalsDisplay(snapshot.Totals)
		}
		for _, adj := range snapshot.Totals.Adjustments {
			service.Adjustments = append(service.Adjustments, SubmittedModifier{
				Dimension: adj.Dimension,
				OptionID:  adj.OptionID,
				Kind:      string(adj.Kind),
				Amount:    adj.Amount,
			})
		}
		msg.Services = append(msg.Services, service)
	}

	if sub.Plan != nil {
		plan := &SubmittedPlan{
			Items:              make([]SubmittedPlanItem, 0, len(sub.Plan.Items)),
			Subtotal:           sub.Plan.Subtotal,
			DiscountPercentage: sub.Plan.DiscountPercentage,
			Discount:           sub.Plan.Discount,
			Total:              sub.Plan.Total,
		}
		for _, item := range sub.Plan.Items {
			plan.Items = append(plan.Items, SubmittedPlanItem{
				ServiceID: item.ServiceID,
				TierID:    item.TierID,
				AddOnIDs:  append([]string(nil), item.AddOnIDs...),
				Subtotal:  item.Subtotal,
			})
		}
		msg.Plan = plan
	}
	return msg
}

// submittedAnswers flattens a selection in a stable order: dimension name, then entry order.
func submittedAnswers(sel domain.Selection) []SubmittedAnswer {
	var out []SubmittedAnswer
	for _, dim := range sortedKeys(sel.Single) {
		if id := sel.Single[dim]; id != "" {
			out = append(out, SubmittedAnswer{Dimension: dim, OptionID: id})
		}
	}
	for _, dim := range sortedKeys(sel.Multi) {
		for _, entry := range sel.Multi[dim] {
			out = append(out, SubmittedAnswer{Dimension: dim, OptionID: entry.OptionID, Quantity: entry.Quantity})
		}
	}
	for _, dim := range sortedKeys(sel.Features) {
		for _, entry := range sel.Features[dim] {
			out = append(out, SubmittedAnswer{Dimension: dim, FeatureID: entry.FeatureID, OptionID: entry.OptionID})
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
