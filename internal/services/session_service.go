package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/finitefield/quote-configurator/internal/domain"
)

var errSessionStoreRequired = errors.New("session service: store is required")

// SessionServiceDeps wires the session service.
type SessionServiceDeps struct {
	Store       *SessionStore
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
}

type sessionService struct {
	store  *SessionStore
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewSessionService constructs a SessionService.
func NewSessionService(deps SessionServiceDeps) (SessionService, error) {
	if deps.Store == nil {
		return nil, errSessionStoreRequired
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &sessionService{store: deps.Store, newID: idGen, logger: logger}, nil
}

func (s *sessionService) CreateSession(ctx context.Context) (SessionView, error) {
	ws, err := s.store.create(ctx, s.newID())
	if err != nil {
		return SessionView{}, err
	}
	s.logger(ctx, "session.created", map[string]any{"sessionId": ws.session.ID})
	return ws.view(), nil
}

func (s *sessionService) GetSession(ctx context.Context, sessionID string) (SessionView, error) {
	ws, err := s.store.read(ctx, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return ws.view(), nil
}

func (s *sessionService) GetBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType) (BuilderView, error) {
	ws, err := s.store.read(ctx, sessionID)
	if err != nil {
		return BuilderView{}, err
	}
	b, err := ws.builder(serviceType)
	if err != nil {
		return BuilderView{}, err
	}
	return ws.builderView(b), nil
}

func (s *sessionService) ResetBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType) (BuilderView, error) {
	return s.mutateBuilder(ctx, sessionID, serviceType, "builder.reset", nil, func(b *Builder, now time.Time) error {
		b.Reset(now)
		return nil
	})
}

func (s *sessionService) SetOption(ctx context.Context, cmd SetOptionCommand) (BuilderView, error) {
	fields := map[string]any{"dimension": cmd.Dimension, "optionId": cmd.OptionID}
	return s.mutateBuilder(ctx, cmd.SessionID, cmd.ServiceType, "builder.option_set", fields, func(b *Builder, now time.Time) error {
		return b.SetOption(cmd.Dimension, strings.TrimSpace(cmd.OptionID), now)
	})
}

func (s *sessionService) ToggleAddOn(ctx context.Context, cmd ToggleAddOnCommand) (BuilderView, error) {
	fields := map[string]any{"dimension": cmd.Dimension, "optionId": cmd.OptionID}
	return s.mutateBuilder(ctx, cmd.SessionID, cmd.ServiceType, "builder.addon_toggled", fields, func(b *Builder, now time.Time) error {
		selected, err := b.ToggleAddOn(cmd.Dimension, strings.TrimSpace(cmd.OptionID), now)
		fields["selected"] = selected
		return err
	})
}

func (s *sessionService) SetAddOnQuantity(ctx context.Context, cmd SetAddOnQuantityCommand) (BuilderView, error) {
	fields := map[string]any{"dimension": cmd.Dimension, "optionId": cmd.OptionID, "quantity": cmd.Quantity}
	return s.mutateBuilder(ctx, cmd.SessionID, cmd.ServiceType, "builder.addon_quantity_set", fields, func(b *Builder, now time.Time) error {
		return b.SetAddOnQuantity(cmd.Dimension, strings.TrimSpace(cmd.OptionID), cmd.Quantity, now)
	})
}

func (s *sessionService) SetFeatureOption(ctx context.Context, cmd SetFeatureOptionCommand) (BuilderView, error) {
	fields := map[string]any{"dimension": cmd.Dimension, "featureId": cmd.FeatureID, "optionId": cmd.OptionID}
	return s.mutateBuilder(ctx, cmd.SessionID, cmd.ServiceType, "builder.feature_set", fields, func(b *Builder, now time.Time) error {
		return b.SetFeatureOption(cmd.Dimension, strings.TrimSpace(cmd.FeatureID), strings.TrimSpace(cmd.OptionID), now)
	})
}

func (s *sessionService) Navigate(ctx context.Context, cmd NavigateCommand) (BuilderView, error) {
	fields := map[string]any{"action": string(cmd.Action)}
	return s.mutateBuilder(ctx, cmd.SessionID, cmd.ServiceType, "builder.navigated", fields, func(b *Builder, _ time.Time) error {
		switch cmd.Action {
		case NavigateNext:
			fields["step"] = b.Advance()
		case NavigateBack:
			fields["step"] = b.Retreat()
		case NavigateGoto:
			fields["step"] = b.SetStep(cmd.Step)
		default:
			return fmt.Errorf("%w: unknown navigation action %q", ErrSessionInvalidInput, cmd.Action)
		}
		return nil
	})
}

func (s *sessionService) SaveBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType) (QuoteView, error) {
	var saved domain.Snapshot
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, now time.Time) error {
		b, err := ws.builder(serviceType)
		if err != nil {
			return err
		}
		saved = b.SaveTo(ws.quote, now)
		return nil
	})
	if err != nil {
		return QuoteView{}, err
	}
	s.logger(ctx, "quote.service_saved", map[string]any{
		"sessionId":      ws.session.ID,
		"serviceType":    string(saved.ServiceType),
		"hasCustomQuote": saved.Totals.HasCustomQuote,
	})
	return ws.quoteView(), nil
}

func (s *sessionService) GetQuote(ctx context.Context, sessionID string) (QuoteView, error) {
	ws, err := s.store.read(ctx, sessionID)
	if err != nil {
		return QuoteView{}, err
	}
	return ws.quoteView(), nil
}

// ClearQuote empties the unified quote and discards every builder.
func (s *sessionService) ClearQuote(ctx context.Context, sessionID string) (QuoteView, error) {
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, _ time.Time) error {
		ws.quote.Clear()
		clear(ws.builders)
		return nil
	})
	if err != nil {
		return QuoteView{}, err
	}
	s.logger(ctx, "quote.cleared", map[string]any{"sessionId": ws.session.ID})
	return ws.quoteView(), nil
}

// ClearQuoteService removes one service from the quote and discards its builder so that
// reaching the summary step again starts from a clean slate.
func (s *sessionService) ClearQuoteService(ctx context.Context, sessionID string, serviceType domain.ServiceType) (ClearServiceResult, error) {
	if _, err := s.store.Engine().Schema(serviceType); err != nil {
		return ClearServiceResult{}, err
	}
	var result ClearServiceResult
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, _ time.Time) error {
		result.Next, result.Removed = ws.quote.ClearServiceConfig(serviceType)
		delete(ws.builders, serviceType)
		return nil
	})
	if err != nil {
		return ClearServiceResult{}, err
	}
	result.Quote = ws.quoteView()
	s.logger(ctx, "quote.service_cleared", map[string]any{
		"sessionId":   ws.session.ID,
		"serviceType": string(serviceType),
		"removed":     result.Removed,
		"next":        string(result.Next),
	})
	return result, nil
}

func (s *sessionService) GetPlan(ctx context.Context, sessionID string) (domain.PlanSummary, error) {
	ws, err := s.store.read(ctx, sessionID)
	if err != nil {
		return domain.PlanSummary{}, err
	}
	return ws.plan.Summary(), nil
}

func (s *sessionService) PutPlanItem(ctx context.Context, cmd PlanItemCommand) (domain.PlanSummary, error) {
	ws, err := s.store.mutate(ctx, cmd.SessionID, func(ws *workspace, _ time.Time) error {
		_, err := ws.plan.AddItem(cmd.ServiceID, cmd.TierID, cmd.AddOnIDs)
		return err
	})
	if err != nil {
		return domain.PlanSummary{}, err
	}
	s.logger(ctx, "plan.item_put", map[string]any{"sessionId": ws.session.ID, "serviceId": cmd.ServiceID, "tierId": cmd.TierID})
	return ws.plan.Summary(), nil
}

func (s *sessionService) RemovePlanItem(ctx context.Context, sessionID, serviceID string) (domain.PlanSummary, error) {
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, _ time.Time) error {
		ws.plan.RemoveItem(serviceID)
		return nil
	})
	if err != nil {
		return domain.PlanSummary{}, err
	}
	s.logger(ctx, "plan.item_removed", map[string]any{"sessionId": ws.session.ID, "serviceId": serviceID})
	return ws.plan.Summary(), nil
}

func (s *sessionService) ClearPlan(ctx context.Context, sessionID string) (domain.PlanSummary, error) {
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, _ time.Time) error {
		ws.plan.Clear()
		return nil
	})
	if err != nil {
		return domain.PlanSummary{}, err
	}
	s.logger(ctx, "plan.cleared", map[string]any{"sessionId": ws.session.ID})
	return ws.plan.Summary(), nil
}

func (s *sessionService) UpdateContact(ctx context.Context, sessionID string, contact domain.Contact) (domain.Contact, error) {
	cleaned, err := sanitizeContact(contact, false)
	if err != nil {
		return domain.Contact{}, err
	}
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, _ time.Time) error {
		ws.session.Contact = cleaned
		return nil
	})
	if err != nil {
		return domain.Contact{}, err
	}
	return ws.session.Contact, nil
}

// mutateBuilder applies fn to one builder and re-saves it into the quote when it sits on its
// summary step.
func (s *sessionService) mutateBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType, event string, fields map[string]any, fn func(b *Builder, now time.Time) error) (BuilderView, error) {
	var target *Builder
	ws, err := s.store.mutate(ctx, sessionID, func(ws *workspace, now time.Time) error {
		b, err := ws.builder(serviceType)
		if err != nil {
			return err
		}
		if err := fn(b, now); err != nil {
			return err
		}
		ws.syncSummary(b, now)
		target = b
		return nil
	})
	if err != nil {
		return BuilderView{}, err
	}

	if fields == nil {
		fields = map[string]any{}
	}
	fields["sessionId"] = ws.session.ID
	fields["serviceType"] = string(serviceType)
	s.logger(ctx, event, fields)
	return ws.builderView(target), nil
}
