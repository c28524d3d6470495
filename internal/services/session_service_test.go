package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/repositories/memory"
)

type sessionFixture struct {
	repo    *memory.SessionRepository
	store   *SessionStore
	service SessionService
	events  []string
	fields  map[string]map[string]any
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	return newSessionFixtureWithRepo(t, memory.NewSessionRepository())
}

func newSessionFixtureWithRepo(t *testing.T, repo *memory.SessionRepository) *sessionFixture {
	t.Helper()
	store, err := NewSessionStore(testEngine(t), repo, func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("session store: %v", err)
	}
	f := &sessionFixture{repo: repo, store: store, fields: make(map[string]map[string]any)}
	var mu sync.Mutex
	seq := 0
	svc, err := NewSessionService(SessionServiceDeps{
		Store: store,
		Logger: func(_ context.Context, event string, fields map[string]any) {
			mu.Lock()
			defer mu.Unlock()
			f.events = append(f.events, event)
			f.fields[event] = fields
		},
		IDGenerator: func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("sess-%d", seq)
		},
	})
	if err != nil {
		t.Fatalf("session service: %v", err)
	}
	f.service = svc
	return f
}

func (f *sessionFixture) create(t *testing.T) string {
	t.Helper()
	view, err := f.service.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return view.ID
}

func (f *sessionFixture) setOption(t *testing.T, sessionID string, serviceType domain.ServiceType, dim, opt string) BuilderView {
	t.Helper()
	view, err := f.service.SetOption(context.Background(), SetOptionCommand{
		SessionID:   sessionID,
		ServiceType: serviceType,
		Dimension:   dim,
		OptionID:    opt,
	})
	if err != nil {
		t.Fatalf("set %s.%s: %v", dim, opt, err)
	}
	return view
}

func (f *sessionFixture) gotoSummary(t *testing.T, sessionID string, serviceType domain.ServiceType) BuilderView {
	t.Helper()
	view, err := f.service.Navigate(context.Background(), NavigateCommand{
		SessionID:   sessionID,
		ServiceType: serviceType,
		Action:      NavigateGoto,
		Step:        99,
	})
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	return view
}

func TestSessionServiceCreateAndGet(t *testing.T) {
	f := newSessionFixture(t)
	id := f.create(t)
	if id != "sess-1" {
		t.Fatalf("expected generated id, got %q", id)
	}
	view, err := f.service.GetSession(context.Background(), id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(view.Builders) != 0 || len(view.Quote.Services) != 0 || len(view.Quote.Available) != 13 {
		t.Fatalf("unexpected fresh session view %+v", view)
	}
	if !view.CreatedAt.Equal(testNow) {
		t.Fatalf("expected created at %s, got %s", testNow, view.CreatedAt)
	}
}

func TestSessionServiceUnknownSession(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	if _, err := f.service.GetSession(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, err := f.service.ClearPlan(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on mutate, got %v", err)
	}
	if _, err := f.service.GetSession(ctx, "  "); !errors.Is(err, ErrSessionInvalidInput) {
		t.Fatalf("expected ErrSessionInvalidInput for blank id, got %v", err)
	}
}

func TestSessionServiceSummarySyncsQuote(t *testing.T) {
	f := newSessionFixture(t)
	id := f.create(t)

	f.setOption(t, id, "website", "site_type", "business")
	view := f.setOption(t, id, "website", "timeline", "fast")
	if view.Saved || view.Totals.OneTimeTotal != 2500 {
		t.Fatalf("expected unsaved builder at 2500, got saved=%v total=%d", view.Saved, view.Totals.OneTimeTotal)
	}

	view = f.gotoSummary(t, id, "website")
	if !view.AtSummary || !view.Saved {
		t.Fatalf("expected builder saved on reaching summary, got %+v", view)
	}

	f.setOption(t, id, "website", "site_type", "landing")
	quote, err := f.service.GetQuote(context.Background(), id)
	if err != nil {
		t.Fatalf("get quote: %v", err)
	}
	if len(quote.Services) != 1 || quote.Services[0].Totals.OneTimeTotal != 1000 {
		t.Fatalf("expected summary edit to refresh the quote, got %+v", quote.Services)
	}
	if len(quote.Available) != 12 {
		t.Fatalf("expected 12 available services, got %d", len(quote.Available))
	}
}

func TestSessionServiceSaveBuilderBeforeSummary(t *testing.T) {
	f := newSessionFixture(t)
	id := f.create(t)
	f.setOption(t, id, "seo", "seo_package", "starter")

	quote, err := f.service.SaveBuilder(context.Background(), id, "seo")
	if err != nil {
		t.Fatalf("save builder: %v", err)
	}
	if len(quote.Services) != 1 || quote.Combined.MonthlyTotal != 500 {
		t.Fatalf("unexpected quote %+v", quote.Combined)
	}
	saved := f.fields["quote.service_saved"]
	if saved["serviceType"] != "seo" || saved["hasCustomQuote"] != false {
		t.Fatalf("unexpected saved event fields %v", saved)
	}

	f.setOption(t, id, "website", "site_type", "business")
	f.setOption(t, id, "website", "cms", "custom")
	if _, err := f.service.SaveBuilder(context.Background(), id, "website"); err != nil {
		t.Fatalf("save builder: %v", err)
	}
	if saved := f.fields["quote.service_saved"]; saved["serviceType"] != "website" || saved["hasCustomQuote"] != true {
		t.Fatalf("expected custom quote flagged on saved event, got %v", saved)
	}
	if _, err := f.service.SaveBuilder(context.Background(), id, "knitting"); !errors.Is(err, ErrPricingUnknownService) {
		t.Fatalf("expected ErrPricingUnknownService, got %v", err)
	}
}

func TestSessionServiceClearQuoteService(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	id := f.create(t)
	for _, serviceType := range []domain.ServiceType{"website", "seo", "animation"} {
		f.gotoSummary(t, id, serviceType)
	}

	result, err := f.service.ClearQuoteService(ctx, id, "seo")
	if err != nil {
		t.Fatalf("clear service: %v", err)
	}
	if !result.Removed || result.Next != "animation" || len(result.Quote.Services) != 2 {
		t.Fatalf("unexpected clear result %+v", result)
	}

	builder, err := f.service.GetBuilder(ctx, id, "seo")
	if err != nil {
		t.Fatalf("get builder: %v", err)
	}
	if builder.Step != 1 || builder.Saved {
		t.Fatalf("expected seo builder discarded, got step %d saved=%v", builder.Step, builder.Saved)
	}

	result, err = f.service.ClearQuoteService(ctx, id, "seo")
	if err != nil || result.Removed {
		t.Fatalf("expected idempotent clear, got %+v err=%v", result, err)
	}
	if _, err := f.service.ClearQuoteService(ctx, id, "knitting"); !errors.Is(err, ErrPricingUnknownService) {
		t.Fatalf("expected ErrPricingUnknownService, got %v", err)
	}

	quote, err := f.service.ClearQuote(ctx, id)
	if err != nil || len(quote.Services) != 0 {
		t.Fatalf("expected empty quote, got %+v err=%v", quote, err)
	}
	session, err := f.service.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(session.Builders) != 0 {
		t.Fatalf("expected builders cleared with the quote, got %d", len(session.Builders))
	}
}

func TestSessionServiceNavigateRejectsUnknownAction(t *testing.T) {
	f := newSessionFixture(t)
	id := f.create(t)
	_, err := f.service.Navigate(context.Background(), NavigateCommand{SessionID: id, ServiceType: "website", Action: "sideways"})
	if !errors.Is(err, ErrSessionInvalidInput) {
		t.Fatalf("expected ErrSessionInvalidInput, got %v", err)
	}
	_, err = f.service.SetOption(context.Background(), SetOptionCommand{SessionID: id, ServiceType: "website", Dimension: "site_type", OptionID: "castle"})
	if !errors.Is(err, ErrBuilderInvalidInput) {
		t.Fatalf("expected ErrBuilderInvalidInput, got %v", err)
	}
	session, _ := f.service.GetSession(context.Background(), id)
	if len(session.Builders) != 0 {
		t.Fatalf("expected failed mutations to persist nothing")
	}
}

func TestSessionServicePersistsAcrossInstances(t *testing.T) {
	repo := memory.NewSessionRepository()
	first := newSessionFixtureWithRepo(t, repo)
	ctx := context.Background()
	id := first.create(t)
	first.setOption(t, id, "website", "site_type", "business")
	if _, err := first.service.SetFeatureOption(ctx, SetFeatureOptionCommand{
		SessionID: id, ServiceType: "ai_automation", Dimension: "ai_features", FeatureID: "chatbot", OptionID: "starter",
	}); err != nil {
		t.Fatalf("set feature: %v", err)
	}
	first.gotoSummary(t, id, "website")
	if _, err := first.service.PutPlanItem(ctx, PlanItemCommand{SessionID: id, ServiceID: "website", TierID: "basic"}); err != nil {
		t.Fatalf("put plan item: %v", err)
	}

	second := newSessionFixtureWithRepo(t, repo)
	view, err := second.service.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(view.Builders) != 2 {
		t.Fatalf("expected two builders restored, got %d", len(view.Builders))
	}
	if view.Builders[0].ServiceType != "website" || view.Builders[0].Step != view.Builders[0].TotalSteps {
		t.Fatalf("expected website builder restored on its summary step, got %+v", view.Builders[0])
	}
	if got := view.Builders[1].Totals; got.OneTimeTotal != 1000 || got.MonthlyTotal != 150 {
		t.Fatalf("expected frozen feature prices restored, got %+v", got)
	}
	if len(view.Quote.Services) != 1 || view.Quote.Services[0].Totals.OneTimeTotal != 2000 {
		t.Fatalf("expected quote totals recomputed on load, got %+v", view.Quote.Services)
	}
	if view.Plan.ItemCount != 1 || view.Plan.Total != 1500 {
		t.Fatalf("expected plan restored, got %+v", view.Plan)
	}
}

func TestSessionServicePlanOperations(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	id := f.create(t)
	for _, svc := range []string{"website", "ecommerce", "seo"} {
		if _, err := f.service.PutPlanItem(ctx, PlanItemCommand{SessionID: id, ServiceID: svc, TierID: "basic"}); err != nil {
			t.Fatalf("put %s: %v", svc, err)
		}
	}
	summary, err := f.service.GetPlan(ctx, id)
	if err != nil || summary.DiscountPercentage != 10 {
		t.Fatalf("expected 10%% plan discount, got %+v err=%v", summary, err)
	}
	if _, err := f.service.PutPlanItem(ctx, PlanItemCommand{SessionID: id, ServiceID: "website", TierID: "gold"}); !errors.Is(err, ErrPlanInvalidInput) {
		t.Fatalf("expected ErrPlanInvalidInput, got %v", err)
	}
	summary, err = f.service.RemovePlanItem(ctx, id, "seo")
	if err != nil || summary.ItemCount != 2 || summary.Discount != 0 {
		t.Fatalf("unexpected summary after remove %+v err=%v", summary, err)
	}
	summary, err = f.service.ClearPlan(ctx, id)
	if err != nil || summary.ItemCount != 0 {
		t.Fatalf("expected empty plan, got %+v err=%v", summary, err)
	}
}

func TestSessionServiceUpdateContact(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	id := f.create(t)

	contact, err := f.service.UpdateContact(ctx, id, domain.Contact{Name: " <b>Ada</b> ", Email: "Ada@Example.com"})
	if err != nil {
		t.Fatalf("update contact: %v", err)
	}
	if contact.Name != "Ada" || contact.Email != "ada@example.com" {
		t.Fatalf("unexpected cleaned contact %+v", contact)
	}
	if _, err := f.service.UpdateContact(ctx, id, domain.Contact{Email: "not-an-email"}); !errors.Is(err, ErrContactInvalid) {
		t.Fatalf("expected ErrContactInvalid, got %v", err)
	}
	view, _ := f.service.GetSession(ctx, id)
	if view.Contact.Name != "Ada" {
		t.Fatalf("expected earlier contact kept, got %+v", view.Contact)
	}
}

func TestSessionServiceSerialisesConcurrentMutations(t *testing.T) {
	f := newSessionFixture(t)
	id := f.create(t)
	addOns := []string{"contact_form", "booking", "newsletter", "live_chat", "multilingual", "members_area"}

	var wg sync.WaitGroup
	errs := make(chan error, len(addOns))
	for _, opt := range addOns {
		wg.Add(1)
		go func(opt string) {
			defer wg.Done()
			_, err := f.service.ToggleAddOn(context.Background(), ToggleAddOnCommand{
				SessionID: id, ServiceType: "website", Dimension: "features", OptionID: opt,
			})
			errs <- err
		}(opt)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("toggle: %v", err)
		}
	}

	builder, err := f.service.GetBuilder(context.Background(), id, "website")
	if err != nil {
		t.Fatalf("get builder: %v", err)
	}
	if got := len(builder.Selection.Multi["features"]); got != len(addOns) {
		t.Fatalf("expected %d add-ons after concurrent toggles, got %d", len(addOns), got)
	}
	if builder.Totals.OneTimeTotal != 150+600+200+300+800+1500 || !builder.Totals.StartsAt {
		t.Fatalf("unexpected totals %+v", builder.Totals)
	}
	if f.store.locks.size() != 0 {
		t.Fatalf("expected idle locks released")
	}
}
