package domain

import "time"

// SavedService is the persisted form of a unified quote entry: the saved selections only.
// Totals are recomputed from the catalog when the session is loaded.
type SavedService struct {
	ServiceType ServiceType
	Selection   Selection
	SavedAt     time.Time
}

// Session is the durable state of one visitor's configurator.
type Session struct {
	ID        string
	Builders  map[ServiceType]BuilderState
	Quote     []SavedService
	Plan      []PlanLineItem
	Contact   Contact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuoteSubmission is the payload handed to the submission publisher.
type QuoteSubmission struct {
	ID          string
	SessionID   string
	Contact     Contact
	Currency    string
	Services    []Snapshot
	Combined    CombinedTotals
	Plan        *PlanSummary
	SubmittedAt time.Time
}

// Clone deep-copies the session so stored copies never alias caller state.
func (s Session) Clone() Session {
	out := s
	if s.Builders != nil {
		out.Builders = make(map[ServiceType]BuilderState, len(s.Builders))
		for k, state := range s.Builders {
			state.Selection = state.Selection.Clone()
			out.Builders[k] = state
		}
	}
	if s.Quote != nil {
		out.Quote = make([]SavedService, len(s.Quote))
		for i, saved := range s.Quote {
			saved.Selection = saved.Selection.Clone()
			out.Quote[i] = saved
		}
	}
	if s.Plan != nil {
		out.Plan = make([]PlanLineItem, len(s.Plan))
		for i, item := range s.Plan {
			if item.AddOnIDs != nil {
				item.AddOnIDs = append([]string(nil), item.AddOnIDs...)
			}
			out.Plan[i] = item
		}
	}
	return out
}
