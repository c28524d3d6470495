package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/finitefield/quote-configurator/internal/domain"
	pfirestore "github.com/finitefield/quote-configurator/internal/platform/firestore"
	"github.com/finitefield/quote-configurator/internal/repositories"
)

const defaultSessionCollection = "sessions"

// SessionRepository persists configurator sessions, one document per session.
// Totals are never written; they are recomputed from the catalog on load.
type SessionRepository struct {
	base *pfirestore.BaseRepository[sessionDocument]
}

var _ repositories.SessionRepository = (*SessionRepository)(nil)

// NewSessionRepository constructs a Firestore-backed session repository. An empty collection
// name falls back to "sessions".
func NewSessionRepository(provider *pfirestore.Provider, collection string) (*SessionRepository, error) {
	if provider == nil {
		return nil, errors.New("session repository requires firestore provider")
	}
	if strings.TrimSpace(collection) == "" {
		collection = defaultSessionCollection
	}
	return &SessionRepository{
		base: pfirestore.NewBaseRepository[sessionDocument](provider, collection),
	}, nil
}

// Get loads a session by id.
func (r *SessionRepository) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return domain.Session{}, err
	}
	session := doc.Data.toDomain()
	session.ID = doc.ID
	return session, nil
}

// Save replaces the stored session document.
func (r *SessionRepository) Save(ctx context.Context, session domain.Session) error {
	id := strings.TrimSpace(session.ID)
	if id == "" {
		return errors.New("session repository: session id is required")
	}
	_, err := r.base.Set(ctx, id, sessionFromDomain(session))
	return err
}

// Delete removes the session document.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(sessionID))
}

type sessionDocument struct {
	Builders  map[string]builderDocument `firestore:"builders"`
	Quote     []savedServiceDocument     `firestore:"quote"`
	Plan      []planItemDocument         `firestore:"plan"`
	Contact   contactDocument            `firestore:"contact"`
	CreatedAt time.Time                  `firestore:"createdAt"`
	UpdatedAt time.Time                  `firestore:"updatedAt"`
}

type builderDocument struct {
	Step      int               `firestore:"step"`
	Selection selectionDocument `firestore:"selection"`
	UpdatedAt time.Time         `firestore:"updatedAt"`
}

type savedServiceDocument struct {
	ServiceType string            `firestore:"serviceType"`
	Selection   selectionDocument `firestore:"selection"`
	SavedAt     time.Time         `firestore:"savedAt"`
}

type selectionDocument struct {
	Single   map[string]string            `firestore:"single,omitempty"`
	Multi    map[string][]addOnDocument   `firestore:"multi,omitempty"`
	Features map[string][]featureDocument `firestore:"features,omitempty"`
}

type addOnDocument struct {
	OptionID string `firestore:"optionId"`
	Quantity int    `firestore:"quantity"`
}

type featureDocument struct {
	FeatureID  string `firestore:"featureId"`
	OptionID   string `firestore:"optionId"`
	SetupPrice *int64 `firestore:"setupPrice"`
	UsagePrice *int64 `firestore:"usagePrice"`
	StartsAt   bool   `firestore:"startsAt"`
}

type planItemDocument struct {
	ServiceID string   `firestore:"serviceId"`
	TierID    string   `firestore:"tierId"`
	AddOnIDs  []string `firestore:"addOnIds,omitempty"`
}

type contactDocument struct {
	Name    string `firestore:"name,omitempty"`
	Email   string `firestore:"email,omitempty"`
	Phone   string `firestore:"phone,omitempty"`
	Company string `firestore:"company,omitempty"`
	Message string `firestore:"message,omitempty"`
}

func sessionFromDomain(session domain.Session) sessionDocument {
	doc := sessionDocument{
		Builders: make(map[string]builderDocument, len(session.Builders)),
		Contact: contactDocument{
			Name:    session.Contact.Name,
			Email:   session.Contact.Email,
			Phone:   session.Contact.Phone,
			Company: session.Contact.Company,
			Message: session.Contact.Message,
		},
		CreatedAt: session.CreatedAt.UTC(),
		UpdatedAt: session.UpdatedAt.UTC(),
	}
	for serviceType, state := range session.Builders {
		doc.Builders[string(serviceType)] = builderDocument{
			Step:      state.Step,
			Selection: selectionFromDomain(state.Selection),
			UpdatedAt: state.UpdatedAt.UTC(),
		}
	}
	for _, saved := range session.Quote {
		doc.Quote = append(doc.Quote, savedServiceDocument{
			ServiceType: string(saved.ServiceType),
			Selection:   selectionFromDomain(saved.Selection),
			SavedAt:     saved.SavedAt.UTC(),
		})
	}
	for _, item := range session.Plan {
		doc.Plan = append(doc.Plan, planItemDocument{
			ServiceID: item.ServiceID,
			TierID:    item.TierID,
			AddOnIDs:  append([]string(nil), item.AddOnIDs...),
		})
	}
	return doc
}

func (d sessionDocument) toDomain() domain.Session {
	session := domain.Session{
		Builders: make(map[domain.ServiceType]domain.BuilderState, len(d.Builders)),
		Contact: domain.Contact{
			Name:    d.Contact.Name,
			Email:   d.Contact.Email,
			Phone:   d.Contact.Phone,
			Company: d.Contact.Company,
			Message: d.Contact.Message,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for serviceType, state := range d.Builders {
		session.Builders[domain.ServiceType(serviceType)] = domain.BuilderState{
			ServiceType: domain.ServiceType(serviceType),
			Step:        state.Step,
			Selection:   state.Selection.toDomain(),
			UpdatedAt:   state.UpdatedAt,
		}
	}
	for _, saved := range d.Quote {
		session.Quote = append(session.Quote, domain.SavedService{
			ServiceType: domain.ServiceType(saved.ServiceType),
			Selection:   saved.Selection.toDomain(),
			SavedAt:     saved.SavedAt,
		})
	}
	// Prices are not persisted for plan items; the plan store reprices on restore.
	for _, item := range d.Plan {
		session.Plan = append(session.Plan, domain.PlanLineItem{
			ServiceID: item.ServiceID,
			TierID:    item.TierID,
			AddOnIDs:  append([]string(nil), item.AddOnIDs...),
		})
	}
	return session
}

func selectionFromDomain(sel domain.Selection) selectionDocument {
	doc := selectionDocument{}
	if len(sel.Single) > 0 {
		doc.Single = make(map[string]string, len(sel.Single))
		for k, v := range sel.Single {
			doc.Single[k] = v
		}
	}
	if len(sel.Multi) > 0 {
		doc.Multi = make(map[string][]addOnDocument, len(sel.Multi))
		for k, entries := range sel.Multi {
			out := make([]addOnDocument, 0, len(entries))
			for _, entry := range entries {
				out = append(out, addOnDocument{OptionID: entry.OptionID, Quantity: entry.Quantity})
			}
			doc.Multi[k] = out
		}
	}
	if len(sel.Features) > 0 {
		doc.Features = make(map[string][]featureDocument, len(sel.Features))
		for k, entries := range sel.Features {
			out := make([]featureDocument, 0, len(entries))
			for _, entry := range entries {
				out = append(out, featureDocument{
					FeatureID:  entry.FeatureID,
					OptionID:   entry.OptionID,
					SetupPrice: copyAmount(entry.SetupPrice),
					UsagePrice: copyAmount(entry.UsagePrice),
					StartsAt:   entry.StartsAt,
				})
			}
			doc.Features[k] = out
		}
	}
	return doc
}

func (d selectionDocument) toDomain() domain.Selection {
	sel := domain.NewSelection()
	for k, v := range d.Single {
		sel.Single[k] = v
	}
	for k, entries := range d.Multi {
		out := make([]domain.AddOnSelection, 0, len(entries))
		for _, entry := range entries {
			out = append(out, domain.AddOnSelection{OptionID: entry.OptionID, Quantity: entry.Quantity})
		}
		sel.Multi[k] = out
	}
	for k, entries := range d.Features {
		out := make([]domain.FeatureSelection, 0, len(entries))
		for _, entry := range entries {
			out = append(out, domain.FeatureSelection{
				FeatureID:  entry.FeatureID,
				OptionID:   entry.OptionID,
				SetupPrice: copyAmount(entry.SetupPrice),
				UsagePrice: copyAmount(entry.UsagePrice),
				StartsAt:   entry.StartsAt,
			})
		}
		sel.Features[k] = out
	}
	return sel
}

func copyAmount(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
