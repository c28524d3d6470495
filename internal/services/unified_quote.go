package services

import (
	"reflect"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// UnifiedQuote holds at most one saved snapshot per service type in first-save order.
// It trusts snapshots as saved and never reprices them.
type UnifiedQuote struct {
	catalog *domain.Catalog
	entries []domain.Snapshot
}

// NewUnifiedQuote returns an empty aggregator for catalog.
func NewUnifiedQuote(catalog *domain.Catalog) *UnifiedQuote {
	return &UnifiedQuote{catalog: catalog}
}

// Save stores snapshot under its service type. A re-save replaces the earlier snapshot in place
// so the service keeps its position. Saving an unchanged selection keeps the original timestamp.
func (q *UnifiedQuote) Save(snapshot domain.Snapshot) domain.Snapshot {
	snapshot.Selection = snapshot.Selection.Clone()
	for i := range q.entries {
		if q.entries[i].ServiceType != snapshot.ServiceType {
			continue
		}
		prev := q.entries[i]
		if reflect.DeepEqual(prev.Selection, snapshot.Selection) && reflect.DeepEqual(prev.Totals, snapshot.Totals) {
			return cloneSnapshot(prev)
		}
		q.entries[i] = snapshot
		return cloneSnapshot(snapshot)
	}
	q.entries = append(q.entries, snapshot)
	return cloneSnapshot(snapshot)
}

// Snapshot returns the saved snapshot for serviceType.
func (q *UnifiedQuote) Snapshot(serviceType domain.ServiceType) (domain.Snapshot, bool) {
	for _, entry := range q.entries {
		if entry.ServiceType == serviceType {
			return cloneSnapshot(entry), true
		}
	}
	return domain.Snapshot{}, false
}

// ConfiguredServices lists snapshots in first-save order.
func (q *UnifiedQuote) ConfiguredServices() []domain.Snapshot {
	out := make([]domain.Snapshot, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, cloneSnapshot(entry))
	}
	return out
}

// AvailableServices lists catalog service types that have not been saved yet, in catalog order.
func (q *UnifiedQuote) AvailableServices() []domain.ServiceType {
	configured := make(map[domain.ServiceType]struct{}, len(q.entries))
	for _, entry := range q.entries {
		configured[entry.ServiceType] = struct{}{}
	}
	var out []domain.ServiceType
	for _, serviceType := range q.catalog.ServiceTypes() {
		if _, ok := configured[serviceType]; ok {
			continue
		}
		out = append(out, serviceType)
	}
	return out
}

// Len is the number of distinct configured services.
func (q *UnifiedQuote) Len() int {
	return len(q.entries)
}

// CombinedTotals sums every snapshot and applies the bundle discount to the one-time sum.
// TotalInvestment is reported net of that discount.
func (q *UnifiedQuote) CombinedTotals() domain.CombinedTotals {
	var combined domain.CombinedTotals
	combined.ServiceCount = len(q.entries)
	for _, entry := range q.entries {
		combined.OneTimeTotal = saturatingAdd(combined.OneTimeTotal, entry.Totals.OneTimeTotal)
		combined.MonthlyTotal = saturatingAdd(combined.MonthlyTotal, entry.Totals.MonthlyTotal)
		combined.TotalInvestment = saturatingAdd(combined.TotalInvestment, entry.Totals.TotalInvestment)
		if entry.Totals.HasCustomQuote {
			combined.HasCustomQuote = true
			combined.CustomQuoteServices = append(combined.CustomQuoteServices, entry.ServiceType)
		}
		if entry.Totals.StartsAt {
			combined.StartsAt = true
		}
	}

	var tiers domain.BundleTiers
	if q.catalog != nil {
		tiers = q.catalog.BundleTiers
	}
	combined.BundleDiscountPercentage = tiers.Percentage(combined.ServiceCount)
	combined.BundleDiscount = tiers.Discount(combined.OneTimeTotal, combined.ServiceCount)
	combined.OneTimeAfterDiscount = combined.OneTimeTotal - combined.BundleDiscount
	combined.TotalInvestment -= combined.BundleDiscount
	return combined
}

// ClearServiceConfig removes the snapshot for serviceType and reports where navigation should
// go next: the service that moved into the removed position, otherwise the last remaining one.
// next is empty when nothing remains. removed is false when serviceType was not configured.
func (q *UnifiedQuote) ClearServiceConfig(serviceType domain.ServiceType) (next domain.ServiceType, removed bool) {
	idx := -1
	for i := range q.entries {
		if q.entries[i].ServiceType == serviceType {
			idx = i
			break
		}
	}
	if idx >= 0 {
		q.entries = append(q.entries[:idx:idx], q.entries[idx+1:]...)
		removed = true
	} else {
		idx = 0
	}
	switch {
	case len(q.entries) == 0:
		return "", removed
	case idx < len(q.entries):
		return q.entries[idx].ServiceType, removed
	default:
		return q.entries[len(q.entries)-1].ServiceType, removed
	}
}

// Clear drops every snapshot.
func (q *UnifiedQuote) Clear() {
	q.entries = nil
}

// Saved returns the persistable form: selections only, in order.
func (q *UnifiedQuote) Saved() []domain.SavedService {
	out := make([]domain.SavedService, 0, len(q.entries))
	for _, entry := range q.entries {
		out = append(out, domain.SavedService{
			ServiceType: entry.ServiceType,
			Selection:   entry.Selection.Clone(),
			SavedAt:     entry.SavedAt,
		})
	}
	return out
}

func cloneSnapshot(s domain.Snapshot) domain.Snapshot {
	s.Selection = s.Selection.Clone()
	if s.Totals.Lines != nil {
		s.Totals.Lines = append([]domain.PriceLine(nil), s.Totals.Lines...)
	}
	if s.Totals.Adjustments != nil {
		s.Totals.Adjustments = append([]domain.Adjustment(nil), s.Totals.Adjustments...)
	}
	return s
}
