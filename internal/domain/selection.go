package domain

import "time"

// AddOnSelection is a live reference to a multi-select option; its price is re-resolved
// against the catalog on every totals computation.
type AddOnSelection struct {
	OptionID string
	Quantity int
}

// FeatureSelection stores a feature/tier pair by value. Prices are captured when the tier is
// chosen and are not re-read from the catalog afterwards.
type FeatureSelection struct {
	FeatureID  string
	OptionID   string
	SetupPrice *int64
	UsagePrice *int64
	StartsAt   bool
}

// Selection is the full answer set of one builder.
type Selection struct {
	Single   map[string]string
	Multi    map[string][]AddOnSelection
	Features map[string][]FeatureSelection
}

// NewSelection returns an empty, ready-to-mutate selection.
func NewSelection() Selection {
	return Selection{
		Single:   make(map[string]string),
		Multi:    make(map[string][]AddOnSelection),
		Features: make(map[string][]FeatureSelection),
	}
}

// IsEmpty reports whether nothing has been answered.
func (s Selection) IsEmpty() bool {
	for _, id := range s.Single {
		if id != "" {
			return false
		}
	}
	for _, entries := range s.Multi {
		if len(entries) > 0 {
			return false
		}
	}
	for _, entries := range s.Features {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// Clone deep-copies the selection so snapshots never alias builder state.
func (s Selection) Clone() Selection {
	out := NewSelection()
	for k, v := range s.Single {
		out.Single[k] = v
	}
	for k, entries := range s.Multi {
		dup := make([]AddOnSelection, len(entries))
		copy(dup, entries)
		out.Multi[k] = dup
	}
	for k, entries := range s.Features {
		dup := make([]FeatureSelection, len(entries))
		for i, entry := range entries {
			dup[i] = entry
			dup[i].SetupPrice = cloneAmount(entry.SetupPrice)
			dup[i].UsagePrice = cloneAmount(entry.UsagePrice)
		}
		out.Features[k] = dup
	}
	return out
}

func cloneAmount(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Contact holds the visitor's details attached to a submission.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Message string
}

// BuilderState is the persisted part of a builder: selections and step, never totals.
type BuilderState struct {
	ServiceType ServiceType
	Step        int
	Selection   Selection
	UpdatedAt   time.Time
}
