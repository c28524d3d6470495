package services

import (
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// workspace is a session hydrated against the catalog: live builders, the unified quote with
// recomputed totals, and the repriced plan.
type workspace struct {
	engine   *PricingEngine
	session  domain.Session
	builders map[domain.ServiceType]*Builder
	quote    *UnifiedQuote
	plan     *Plan
}

func newWorkspace(engine *PricingEngine, session domain.Session) *workspace {
	cat := engine.Catalog()
	ws := &workspace{
		engine:   engine,
		session:  session,
		builders: make(map[domain.ServiceType]*Builder, len(session.Builders)),
		quote:    NewUnifiedQuote(cat),
		plan:     RestorePlan(cat, session.Plan),
	}
	for serviceType, state := range session.Builders {
		schema, ok := cat.Service(serviceType)
		if !ok {
			continue
		}
		ws.builders[serviceType] = RestoreBuilder(schema, state)
	}
	for _, saved := range session.Quote {
		schema, ok := cat.Service(saved.ServiceType)
		if !ok {
			continue
		}
		ws.quote.Save(domain.Snapshot{
			ServiceType: saved.ServiceType,
			Selection:   saved.Selection,
			Totals:      ComputeTotals(schema, saved.Selection),
			SavedAt:     saved.SavedAt,
		})
	}
	return ws
}

// builder returns the builder for serviceType, creating it lazily.
func (ws *workspace) builder(serviceType domain.ServiceType) (*Builder, error) {
	if b, ok := ws.builders[serviceType]; ok {
		return b, nil
	}
	schema, err := ws.engine.Schema(serviceType)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(schema)
	ws.builders[serviceType] = b
	return b, nil
}

// syncSummary saves b into the unified quote when it sits on its summary step.
func (ws *workspace) syncSummary(b *Builder, now time.Time) bool {
	if !b.AtSummary() {
		return false
	}
	b.SaveTo(ws.quote, now)
	return true
}

func (ws *workspace) toSession(now time.Time) domain.Session {
	out := ws.session
	out.Builders = make(map[domain.ServiceType]domain.BuilderState, len(ws.builders))
	for serviceType, b := range ws.builders {
		out.Builders[serviceType] = b.State()
	}
	out.Quote = ws.quote.Saved()
	out.Plan = ws.plan.Items()
	out.UpdatedAt = now
	return out
}

func (ws *workspace) builderView(b *Builder) BuilderView {
	_, saved := ws.quote.Snapshot(b.ServiceType())
	state := b.State()
	return BuilderView{
		ServiceType:     b.ServiceType(),
		Step:            b.Step(),
		TotalSteps:      b.TotalSteps(),
		AtSummary:       b.AtSummary(),
		Selection:       state.Selection,
		Totals:          b.Totals(),
		MissingRequired: b.MissingRequired(),
		Saved:           saved,
		UpdatedAt:       state.UpdatedAt,
	}
}

func (ws *workspace) quoteView() QuoteView {
	return QuoteView{
		Services:  ws.quote.ConfiguredServices(),
		Available: ws.quote.AvailableServices(),
		Combined:  ws.quote.CombinedTotals(),
	}
}

// view lists builders in catalog order.
func (ws *workspace) view() SessionView {
	out := SessionView{
		ID:        ws.session.ID,
		Quote:     ws.quoteView(),
		Plan:      ws.plan.Summary(),
		Contact:   ws.session.Contact,
		CreatedAt: ws.session.CreatedAt,
		UpdatedAt: ws.session.UpdatedAt,
	}
	for _, serviceType := range ws.engine.Catalog().ServiceTypes() {
		if b, ok := ws.builders[serviceType]; ok {
			out.Builders = append(out.Builders, ws.builderView(b))
		}
	}
	return out
}
