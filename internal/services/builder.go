package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
)

var (
	// ErrBuilderInvalidInput signals an unknown dimension, option or feature on a new selection.
	ErrBuilderInvalidInput = errors.New("builder: invalid input")
)

// InputError names the part of a builder request that was rejected.
// It matches ErrBuilderInvalidInput under errors.Is.
type InputError struct {
	ServiceType domain.ServiceType
	Dimension   string
	FeatureID   string
	OptionID    string
	Reason      string
}

func (e *InputError) Error() string {
	return ErrBuilderInvalidInput.Error() + ": " + e.Reason
}

func (e *InputError) Unwrap() error {
	return ErrBuilderInvalidInput
}

// maxAddOnQuantity bounds a single add-on entry.
const maxAddOnQuantity = 999

// Builder holds the wizard state of one service flow. It is not safe for concurrent use;
// SessionService serialises access per session.
type Builder struct {
	schema    domain.ServiceSchema
	step      int
	selection domain.Selection
	updatedAt time.Time
}

// NewBuilder starts an empty builder on step 1.
func NewBuilder(schema domain.ServiceSchema) *Builder {
	return &Builder{schema: schema, step: 1, selection: domain.NewSelection()}
}

// RestoreBuilder rebuilds a builder from persisted state. Stored ids are kept even when the
// catalog no longer lists them; they simply price at zero.
func RestoreBuilder(schema domain.ServiceSchema, state domain.BuilderState) *Builder {
	b := NewBuilder(schema)
	b.selection = state.Selection.Clone()
	b.updatedAt = state.UpdatedAt
	b.step = b.clampStep(state.Step)
	return b
}

// ServiceType reports which flow this builder configures.
func (b *Builder) ServiceType() domain.ServiceType {
	return b.schema.Type
}

// Schema exposes the builder's catalog schema.
func (b *Builder) Schema() domain.ServiceSchema {
	return b.schema
}

// Step is the current wizard step, always within [1, TotalSteps].
func (b *Builder) Step() int {
	return b.step
}

// TotalSteps is the summary step number.
func (b *Builder) TotalSteps() int {
	return b.schema.SummaryStep()
}

// AtSummary reports whether the builder sits on its summary step.
func (b *Builder) AtSummary() bool {
	return b.step == b.TotalSteps()
}

// State returns a persistable copy of the builder.
func (b *Builder) State() domain.BuilderState {
	return domain.BuilderState{
		ServiceType: b.schema.Type,
		Step:        b.step,
		Selection:   b.selection.Clone(),
		UpdatedAt:   b.updatedAt,
	}
}

// Selection returns a copy of the current answers.
func (b *Builder) Selection() domain.Selection {
	return b.selection.Clone()
}

// Totals recomputes the estimate from the current selection.
func (b *Builder) Totals() domain.Totals {
	return ComputeTotals(b.schema, b.selection)
}

// SetOption replaces a single-select answer. An empty option id clears the dimension.
func (b *Builder) SetOption(dimension, optionID string, now time.Time) error {
	dim, err := b.dimension(dimension, domain.SelectSingle)
	if err != nil {
		return err
	}
	optionID = strings.TrimSpace(optionID)
	if optionID == "" {
		delete(b.selection.Single, dim.Name)
		b.touch(now)
		return nil
	}
	if _, ok := dim.Options.Find(optionID); !ok {
		return b.invalid(dim.Name, "", optionID, fmt.Sprintf("unknown option %q for %s", optionID, dim.Name))
	}
	b.selection.Single[dim.Name] = optionID
	b.touch(now)
	return nil
}

// ToggleAddOn adds the option with quantity 1 or removes it when already present.
// It reports whether the option is selected afterwards.
func (b *Builder) ToggleAddOn(dimension, optionID string, now time.Time) (bool, error) {
	dim, err := b.dimension(dimension, domain.SelectMulti)
	if err != nil {
		return false, err
	}
	optionID = strings.TrimSpace(optionID)
	entries := b.selection.Multi[dim.Name]
	if idx := indexAddOn(entries, optionID); idx >= 0 {
		b.selection.Multi[dim.Name] = removeAddOn(entries, idx)
		b.touch(now)
		return false, nil
	}
	if _, ok := dim.Options.Find(optionID); !ok {
		return false, b.invalid(dim.Name, "", optionID, fmt.Sprintf("unknown option %q for %s", optionID, dim.Name))
	}
	b.selection.Multi[dim.Name] = append(entries, domain.AddOnSelection{OptionID: optionID, Quantity: 1})
	b.touch(now)
	return true, nil
}

// SetAddOnQuantity sets the quantity of an add-on, adding it when missing.
// A quantity of zero or less removes the entry.
func (b *Builder) SetAddOnQuantity(dimension, optionID string, quantity int, now time.Time) error {
	dim, err := b.dimension(dimension, domain.SelectMulti)
	if err != nil {
		return err
	}
	if quantity > maxAddOnQuantity {
		return b.invalid(dim.Name, "", optionID, fmt.Sprintf("quantity %d exceeds %d", quantity, maxAddOnQuantity))
	}
	optionID = strings.TrimSpace(optionID)
	entries := b.selection.Multi[dim.Name]
	idx := indexAddOn(entries, optionID)
	if quantity <= 0 {
		if idx >= 0 {
			b.selection.Multi[dim.Name] = removeAddOn(entries, idx)
			b.touch(now)
		}
		return nil
	}
	if idx >= 0 {
		entries[idx].Quantity = quantity
		b.touch(now)
		return nil
	}
	if _, ok := dim.Options.Find(optionID); !ok {
		return b.invalid(dim.Name, "", optionID, fmt.Sprintf("unknown option %q for %s", optionID, dim.Name))
	}
	b.selection.Multi[dim.Name] = append(entries, domain.AddOnSelection{OptionID: optionID, Quantity: quantity})
	b.touch(now)
	return nil
}

// SetFeatureOption chooses a tier for a feature and freezes its setup and usage prices.
// An empty option id removes the feature.
func (b *Builder) SetFeatureOption(dimension, featureID, optionID string, now time.Time) error {
	dim, err := b.dimension(dimension, domain.SelectFeature)
	if err != nil {
		return err
	}
	featureID = strings.TrimSpace(featureID)
	optionID = strings.TrimSpace(optionID)
	entries := b.selection.Features[dim.Name]
	idx := -1
	for i := range entries {
		if entries[i].FeatureID == featureID {
			idx = i
			break
		}
	}

	if optionID == "" {
		if idx >= 0 {
			b.selection.Features[dim.Name] = append(entries[:idx:idx], entries[idx+1:]...)
			b.touch(now)
		}
		return nil
	}

	feature, ok := dim.FindFeature(featureID)
	if !ok {
		return b.invalid(dim.Name, featureID, "", fmt.Sprintf("unknown feature %q for %s", featureID, dim.Name))
	}
	opt, ok := feature.Options.Find(optionID)
	if !ok {
		return b.invalid(dim.Name, featureID, optionID, fmt.Sprintf("unknown tier %q for feature %s", optionID, featureID))
	}
	entry := domain.FeatureSelection{
		FeatureID:  featureID,
		OptionID:   opt.ID,
		SetupPrice: copyAmount(opt.Price),
		UsagePrice: copyAmount(opt.UsagePrice),
		StartsAt:   opt.StartsAt,
	}
	if idx >= 0 {
		entries[idx] = entry
	} else {
		b.selection.Features[dim.Name] = append(entries, entry)
	}
	b.touch(now)
	return nil
}

// Advance moves forward one step, stopping at the summary step.
func (b *Builder) Advance() int {
	b.step = b.clampStep(b.step + 1)
	return b.step
}

// Retreat moves back one step, stopping at step 1.
func (b *Builder) Retreat() int {
	b.step = b.clampStep(b.step - 1)
	return b.step
}

// SetStep jumps to n, clamped to the valid range.
func (b *Builder) SetStep(n int) int {
	b.step = b.clampStep(n)
	return b.step
}

// Reset clears every answer and returns to step 1. The unified quote is not touched.
func (b *Builder) Reset(now time.Time) {
	b.selection = domain.NewSelection()
	b.step = 1
	b.touch(now)
}

// MissingRequired lists required dimensions that are still unanswered, in schema order.
func (b *Builder) MissingRequired() []string {
	var missing []string
	for _, dim := range b.schema.Dimensions {
		if !dim.Required {
			continue
		}
		answered := false
		switch dim.Select {
		case domain.SelectMulti:
			answered = len(b.selection.Multi[dim.Name]) > 0
		case domain.SelectFeature:
			answered = len(b.selection.Features[dim.Name]) > 0
		default:
			answered = b.selection.Single[dim.Name] != ""
		}
		if !answered {
			missing = append(missing, dim.Name)
		}
	}
	return missing
}

// Snapshot captures the selection and its totals for the unified quote.
func (b *Builder) Snapshot(savedAt time.Time) domain.Snapshot {
	return domain.Snapshot{
		ServiceType: b.schema.Type,
		Selection:   b.selection.Clone(),
		Totals:      b.Totals(),
		SavedAt:     savedAt,
	}
}

// SaveTo pushes the builder's snapshot into quote, replacing any earlier one for this type.
func (b *Builder) SaveTo(quote *UnifiedQuote, now time.Time) domain.Snapshot {
	return quote.Save(b.Snapshot(now))
}

func (b *Builder) invalid(dimension, featureID, optionID, reason string) error {
	return &InputError{
		ServiceType: b.schema.Type,
		Dimension:   strings.TrimSpace(dimension),
		FeatureID:   featureID,
		OptionID:    optionID,
		Reason:      reason,
	}
}

func (b *Builder) dimension(name string, mode domain.SelectMode) (domain.Dimension, error) {
	dim, ok := b.schema.Dimension(strings.TrimSpace(name))
	if !ok {
		return domain.Dimension{}, b.invalid(name, "", "", fmt.Sprintf("unknown dimension %q for %s", name, b.schema.Type))
	}
	if dim.Select != mode {
		return domain.Dimension{}, b.invalid(dim.Name, "", "", fmt.Sprintf("dimension %s is %s select", dim.Name, dim.Select))
	}
	return dim, nil
}

func (b *Builder) clampStep(n int) int {
	if n < 1 {
		return 1
	}
	if total := b.TotalSteps(); n > total {
		return total
	}
	return n
}

func (b *Builder) touch(now time.Time) {
	if !now.IsZero() {
		b.updatedAt = now.UTC()
	}
}

func indexAddOn(entries []domain.AddOnSelection, optionID string) int {
	for i := range entries {
		if entries[i].OptionID == optionID {
			return i
		}
	}
	return -1
}

func removeAddOn(entries []domain.AddOnSelection, idx int) []domain.AddOnSelection {
	out := make([]domain.AddOnSelection, 0, len(entries)-1)
	out = append(out, entries[:idx]...)
	return append(out, entries[idx+1:]...)
}

func copyAmount(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
