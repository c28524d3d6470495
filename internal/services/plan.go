package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// ErrPlanInvalidInput is returned for unknown services or tiers.
var ErrPlanInvalidInput = errors.New("plan: invalid input")

// Plan is the landing-page cart: at most one line item per service, in first-add order.
type Plan struct {
	catalog *domain.Catalog
	items   []domain.PlanLineItem
}

// NewPlan returns an empty plan priced against catalog.
func NewPlan(catalog *domain.Catalog) *Plan {
	return &Plan{catalog: catalog}
}

// RestorePlan rebuilds a plan from stored items, repricing each one. Items whose service or
// tier left the catalog are dropped.
func RestorePlan(catalog *domain.Catalog, items []domain.PlanLineItem) *Plan {
	p := NewPlan(catalog)
	for _, item := range items {
		priced, err := p.price(item.ServiceID, item.TierID, item.AddOnIDs)
		if err != nil {
			continue
		}
		if indexOfPlanItem(p.items, priced.ServiceID) >= 0 {
			continue
		}
		p.items = append(p.items, priced)
	}
	return p
}

// AddItem adds or replaces the line item for serviceID. A replaced item keeps its position.
// Unknown add-on ids are ignored.
func (p *Plan) AddItem(serviceID, tierID string, addOnIDs []string) (domain.PlanLineItem, error) {
	item, err := p.price(serviceID, tierID, addOnIDs)
	if err != nil {
		return domain.PlanLineItem{}, err
	}
	if idx := indexOfPlanItem(p.items, item.ServiceID); idx >= 0 {
		p.items[idx] = item
	} else {
		p.items = append(p.items, item)
	}
	return clonePlanItem(item), nil
}

// RemoveItem drops the line item for serviceID and reports whether one existed.
func (p *Plan) RemoveItem(serviceID string) bool {
	idx := indexOfPlanItem(p.items, strings.TrimSpace(serviceID))
	if idx < 0 {
		return false
	}
	p.items = append(p.items[:idx:idx], p.items[idx+1:]...)
	return true
}

// Clear empties the plan.
func (p *Plan) Clear() {
	p.items = nil
}

// Items returns copies of the line items in order.
func (p *Plan) Items() []domain.PlanLineItem {
	out := make([]domain.PlanLineItem, 0, len(p.items))
	for _, item := range p.items {
		out = append(out, clonePlanItem(item))
	}
	return out
}

// Summary derives subtotal, bundle discount and total.
func (p *Plan) Summary() domain.PlanSummary {
	summary := domain.PlanSummary{
		Items:     p.Items(),
		ItemCount: len(p.items),
	}
	for _, item := range p.items {
		summary.Subtotal = saturatingAdd(summary.Subtotal, item.Subtotal)
	}
	var tiers domain.BundleTiers
	if p.catalog != nil {
		tiers = p.catalog.BundleTiers
	}
	summary.DiscountPercentage = tiers.Percentage(summary.ItemCount)
	summary.Discount = tiers.Discount(summary.Subtotal, summary.ItemCount)
	summary.Total = summary.Subtotal - summary.Discount
	return summary
}

func (p *Plan) price(serviceID, tierID string, addOnIDs []string) (domain.PlanLineItem, error) {
	serviceID = strings.TrimSpace(serviceID)
	tierID = strings.TrimSpace(tierID)
	offering, ok := p.catalog.Plan(serviceID)
	if !ok {
		return domain.PlanLineItem{}, fmt.Errorf("%w: unknown service %q", ErrPlanInvalidInput, serviceID)
	}
	tier, ok := offering.Tiers.Find(tierID)
	if !ok {
		return domain.PlanLineItem{}, fmt.Errorf("%w: unknown tier %q for %s", ErrPlanInvalidInput, tierID, serviceID)
	}

	item := domain.PlanLineItem{
		ServiceID: serviceID,
		TierID:    tier.ID,
		StartsAt:  tier.StartsAt,
	}
	if tier.Price != nil {
		item.Subtotal = *tier.Price
	}
	seen := make(map[string]struct{}, len(addOnIDs))
	for _, id := range addOnIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup {
			continue
		}
		addOn, ok := offering.AddOns.Find(id)
		if !ok {
			continue
		}
		seen[id] = struct{}{}
		item.AddOnIDs = append(item.AddOnIDs, addOn.ID)
		if addOn.Price != nil {
			item.Subtotal = saturatingAdd(item.Subtotal, *addOn.Price)
		}
		if addOn.StartsAt {
			item.StartsAt = true
		}
	}
	return item, nil
}

func indexOfPlanItem(items []domain.PlanLineItem, serviceID string) int {
	for i := range items {
		if items[i].ServiceID == serviceID {
			return i
		}
	}
	return -1
}

func clonePlanItem(item domain.PlanLineItem) domain.PlanLineItem {
	if item.AddOnIDs != nil {
		item.AddOnIDs = append([]string(nil), item.AddOnIDs...)
	}
	return item
}
