package services

import (
	"context"
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
)

// SessionService exposes the configurator's builder, quote, plan and contact operations.
// Every mutation is serialised per session and persisted before it returns.
type SessionService interface {
	CreateSession(ctx context.Context) (SessionView, error)
	GetSession(ctx context.Context, sessionID string) (SessionView, error)

	GetBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType) (BuilderView, error)
	ResetBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType) (BuilderView, error)
	SetOption(ctx context.Context, cmd SetOptionCommand) (BuilderView, error)
	ToggleAddOn(ctx context.Context, cmd ToggleAddOnCommand) (BuilderView, error)
	SetAddOnQuantity(ctx context.Context, cmd SetAddOnQuantityCommand) (BuilderView, error)
	SetFeatureOption(ctx context.Context, cmd SetFeatureOptionCommand) (BuilderView, error)
	Navigate(ctx context.Context, cmd NavigateCommand) (BuilderView, error)
	SaveBuilder(ctx context.Context, sessionID string, serviceType domain.ServiceType) (QuoteView, error)

	GetQuote(ctx context.Context, sessionID string) (QuoteView, error)
	ClearQuote(ctx context.Context, sessionID string) (QuoteView, error)
	ClearQuoteService(ctx context.Context, sessionID string, serviceType domain.ServiceType) (ClearServiceResult, error)

	GetPlan(ctx context.Context, sessionID string) (domain.PlanSummary, error)
	PutPlanItem(ctx context.Context, cmd PlanItemCommand) (domain.PlanSummary, error)
	RemovePlanItem(ctx context.Context, sessionID, serviceID string) (domain.PlanSummary, error)
	ClearPlan(ctx context.Context, sessionID string) (domain.PlanSummary, error)

	UpdateContact(ctx context.Context, sessionID string, contact domain.Contact) (domain.Contact, error)
}

// SubmissionService hands a finished quote to the submission publisher.
type SubmissionService interface {
	Submit(ctx context.Context, cmd SubmitCommand) (SubmissionResult, error)
}

// SubmissionPublisher delivers submissions to the sales pipeline and returns a delivery id.
type SubmissionPublisher interface {
	PublishSubmission(ctx context.Context, message SubmissionMessage) (string, error)
}

// SessionView is the derived read model of a session.
type SessionView struct {
	ID        string
	Builders  []BuilderView
	Quote     QuoteView
	Plan      domain.PlanSummary
	Contact   domain.Contact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BuilderView is one builder's state plus freshly computed totals.
type BuilderView struct {
	ServiceType     domain.ServiceType
	Step            int
	TotalSteps      int
	AtSummary       bool
	Selection       domain.Selection
	Totals          domain.Totals
	MissingRequired []string
	Saved           bool
	UpdatedAt       time.Time
}

// QuoteView is the unified quote: saved snapshots, remaining services and combined totals.
type QuoteView struct {
	Services  []domain.Snapshot
	Available []domain.ServiceType
	Combined  domain.CombinedTotals
}

// ClearServiceResult reports where navigation should continue after removing a service.
// Next is empty when no configured service remains.
type ClearServiceResult struct {
	Quote   QuoteView
	Next    domain.ServiceType
	Removed bool
}

// SetOptionCommand replaces a single-select answer. An empty OptionID clears it.
type SetOptionCommand struct {
	SessionID   string
	ServiceType domain.ServiceType
	Dimension   string
	OptionID    string
}

// ToggleAddOnCommand adds or removes one add-on.
type ToggleAddOnCommand struct {
	SessionID   string
	ServiceType domain.ServiceType
	Dimension   string
	OptionID    string
}

// SetAddOnQuantityCommand sets an add-on quantity; zero or less removes the add-on.
type SetAddOnQuantityCommand struct {
	SessionID   string
	ServiceType domain.ServiceType
	Dimension   string
	OptionID    string
	Quantity    int
}

// SetFeatureOptionCommand picks a tier for a feature. An empty OptionID removes the feature.
type SetFeatureOptionCommand struct {
	SessionID   string
	ServiceType domain.ServiceType
	Dimension   string
	FeatureID   string
	OptionID    string
}

// NavigateAction selects how a builder's step changes.
type NavigateAction string

const (
	NavigateNext NavigateAction = "next"
	NavigateBack NavigateAction = "back"
	NavigateGoto NavigateAction = "goto"
)

// NavigateCommand moves a builder between steps. Step is used by NavigateGoto only.
type NavigateCommand struct {
	SessionID   string
	ServiceType domain.ServiceType
	Action      NavigateAction
	Step        int
}

// PlanItemCommand adds or replaces the plan entry for ServiceID.
type PlanItemCommand struct {
	SessionID string
	ServiceID string
	TierID    string
	AddOnIDs  []string
}

// SubmitCommand submits the session's quote. Contact, when set, replaces the stored contact.
type SubmitCommand struct {
	SessionID      string
	Contact        *domain.Contact
	IdempotencyKey string
}

// SubmissionResult is returned by Submit. Replayed is set when an earlier result for the same
// idempotency key was returned without publishing again.
type SubmissionResult struct {
	Submission SubmissionMessage `json:"submission"`
	DeliveryID string            `json:"deliveryId"`
	Replayed   bool              `json:"-"`
}
