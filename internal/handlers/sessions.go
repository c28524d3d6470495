package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/platform/httpx"
	"github.com/finitefield/quote-configurator/internal/services"
)

const (
	defaultIdempotencyHeader = "Idempotency-Key"
	replayedHeader           = "Idempotent-Replayed"
)

// SessionHandlers exposes the configurator session: builders, unified quote, plan, contact
// and submission.
type SessionHandlers struct {
	sessions          services.SessionService
	submissions       services.SubmissionService
	formatter         *services.EstimateFormatter
	idempotencyHeader string
}

// SessionHandlerOption customises SessionHandlers.
type SessionHandlerOption func(*SessionHandlers)

// WithEstimateFormatter adds display strings to totals payloads.
func WithEstimateFormatter(formatter *services.EstimateFormatter) SessionHandlerOption {
	return func(h *SessionHandlers) {
		h.formatter = formatter
	}
}

// WithIdempotencyHeader overrides the header carrying the submission idempotency key.
func WithIdempotencyHeader(name string) SessionHandlerOption {
	return func(h *SessionHandlers) {
		if name = strings.TrimSpace(name); name != "" {
			h.idempotencyHeader = name
		}
	}
}

// NewSessionHandlers constructs session handlers. submissions may be nil, in which case the
// submission endpoint answers 503.
func NewSessionHandlers(sessions services.SessionService, submissions services.SubmissionService, opts ...SessionHandlerOption) *SessionHandlers {
	h := &SessionHandlers{
		sessions:          sessions,
		submissions:       submissions,
		idempotencyHeader: defaultIdempotencyHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /sessions endpoints.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createSession)
	r.Route("/{sessionID}", func(sr chi.Router) {
		sr.Get("/", h.getSession)

		sr.Route("/builders/{serviceType}", func(br chi.Router) {
			br.Get("/", h.getBuilder)
			br.Delete("/", h.resetBuilder)
			br.Put("/options/{dimension}", h.setOption)
			br.Post("/addons/{dimension}/toggle", h.toggleAddOn)
			br.Put("/addons/{dimension}/{optionID}", h.setAddOnQuantity)
			br.Put("/features/{dimension}/{featureID}", h.setFeatureOption)
			br.Post("/step", h.navigate)
			br.Post("/save", h.saveBuilder)
		})

		sr.Get("/quote", h.getQuote)
		sr.Delete("/quote", h.clearQuote)
		sr.Delete("/quote/services/{serviceType}", h.clearQuoteService)

		sr.Get("/plan", h.getPlan)
		sr.Delete("/plan", h.clearPlan)
		sr.Put("/plan/items/{serviceID}", h.putPlanItem)
		sr.Delete("/plan/items/{serviceID}", h.removePlanItem)

		sr.Put("/contact", h.updateContact)
		sr.Post("/submissions", h.submit)
	})
}

func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.CreateSession(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+view.ID)
	writeJSONResponse(w, http.StatusCreated, buildSessionPayload(view, h.formatter))
}

func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.GetSession(r.Context(), sessionIDParam(r))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	writeJSONResponse(w, http.StatusOK, buildSessionPayload(view, h.formatter))
}

func (h *SessionHandlers) getBuilder(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.GetBuilder(r.Context(), sessionIDParam(r), serviceTypeParam(r))
	h.writeBuilder(w, r, view, err)
}

func (h *SessionHandlers) resetBuilder(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.ResetBuilder(r.Context(), sessionIDParam(r), serviceTypeParam(r))
	h.writeBuilder(w, r, view, err)
}

type optionRequest struct {
	OptionID string `json:"optionId"`
}

func (h *SessionHandlers) setOption(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req optionRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	view, err := h.sessions.SetOption(r.Context(), services.SetOptionCommand{
		SessionID:   sessionIDParam(r),
		ServiceType: serviceTypeParam(r),
		Dimension:   chi.URLParam(r, "dimension"),
		OptionID:    strings.TrimSpace(req.OptionID),
	})
	h.writeBuilder(w, r, view, err)
}

func (h *SessionHandlers) toggleAddOn(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req optionRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	view, err := h.sessions.ToggleAddOn(r.Context(), services.ToggleAddOnCommand{
		SessionID:   sessionIDParam(r),
		ServiceType: serviceTypeParam(r),
		Dimension:   chi.URLParam(r, "dimension"),
		OptionID:    strings.TrimSpace(req.OptionID),
	})
	h.writeBuilder(w, r, view, err)
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *SessionHandlers) setAddOnQuantity(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req quantityRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}
	view, err := h.sessions.SetAddOnQuantity(r.Context(), services.SetAddOnQuantityCommand{
		SessionID:   sessionIDParam(r),
		ServiceType: serviceTypeParam(r),
		Dimension:   chi.URLParam(r, "dimension"),
		OptionID:    chi.URLParam(r, "optionID"),
		Quantity:    *req.Quantity,
	})
	h.writeBuilder(w, r, view, err)
}

func (h *SessionHandlers) setFeatureOption(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req optionRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	view, err := h.sessions.SetFeatureOption(r.Context(), services.SetFeatureOptionCommand{
		SessionID:   sessionIDParam(r),
		ServiceType: serviceTypeParam(r),
		Dimension:   chi.URLParam(r, "dimension"),
		FeatureID:   chi.URLParam(r, "featureID"),
		OptionID:    strings.TrimSpace(req.OptionID),
	})
	h.writeBuilder(w, r, view, err)
}

type navigateRequest struct {
	Action string `json:"action"`
	Step   int    `json:"step"`
}

func (h *SessionHandlers) navigate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req navigateRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	view, err := h.sessions.Navigate(r.Context(), services.NavigateCommand{
		SessionID:   sessionIDParam(r),
		ServiceType: serviceTypeParam(r),
		Action:      services.NavigateAction(strings.ToLower(strings.TrimSpace(req.Action))),
		Step:        req.Step,
	})
	h.writeBuilder(w, r, view, err)
}

func (h *SessionHandlers) saveBuilder(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.SaveBuilder(r.Context(), sessionIDParam(r), serviceTypeParam(r))
	h.writeQuote(w, r, view, err)
}

func (h *SessionHandlers) getQuote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.GetQuote(r.Context(), sessionIDParam(r))
	h.writeQuote(w, r, view, err)
}

func (h *SessionHandlers) clearQuote(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	view, err := h.sessions.ClearQuote(r.Context(), sessionIDParam(r))
	h.writeQuote(w, r, view, err)
}

func (h *SessionHandlers) clearQuoteService(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	result, err := h.sessions.ClearQuoteService(r.Context(), sessionIDParam(r), serviceTypeParam(r))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	writeJSONResponse(w, http.StatusOK, clearServicePayload{
		Quote:   buildQuotePayload(result.Quote, h.formatter),
		Next:    string(result.Next),
		Removed: result.Removed,
	})
}

func (h *SessionHandlers) getPlan(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	summary, err := h.sessions.GetPlan(r.Context(), sessionIDParam(r))
	h.writePlan(w, r, summary, err)
}

func (h *SessionHandlers) clearPlan(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	summary, err := h.sessions.ClearPlan(r.Context(), sessionIDParam(r))
	h.writePlan(w, r, summary, err)
}

type planItemRequest struct {
	TierID   string   `json:"tierId"`
	AddOnIDs []string `json:"addOnIds"`
}

func (h *SessionHandlers) putPlanItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req planItemRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	summary, err := h.sessions.PutPlanItem(r.Context(), services.PlanItemCommand{
		SessionID: sessionIDParam(r),
		ServiceID: chi.URLParam(r, "serviceID"),
		TierID:    strings.TrimSpace(req.TierID),
		AddOnIDs:  req.AddOnIDs,
	})
	h.writePlan(w, r, summary, err)
}

func (h *SessionHandlers) removePlanItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	summary, err := h.sessions.RemovePlanItem(r.Context(), sessionIDParam(r), chi.URLParam(r, "serviceID"))
	h.writePlan(w, r, summary, err)
}

func (h *SessionHandlers) updateContact(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w, r) {
		return
	}
	var req contactPayload
	if err := decodeJSONBody(r, maxRequestBodySize, &req, false); err != nil {
		writeBodyError(r.Context(), w, err)
		return
	}
	contact, err := h.sessions.UpdateContact(r.Context(), sessionIDParam(r), contactFromPayload(req))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	writeJSONResponse(w, http.StatusOK, buildContactPayload(contact))
}

type submitRequest struct {
	Contact *contactPayload `json:"contact"`
}

func (h *SessionHandlers) submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.submissions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("submission_unavailable", "submission service is unavailable", http.StatusServiceUnavailable))
		return
	}
	var req submitRequest
	if err := decodeJSONBody(r, maxRequestBodySize, &req, true); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	cmd := services.SubmitCommand{
		SessionID:      sessionIDParam(r),
		IdempotencyKey: strings.TrimSpace(r.Header.Get(h.idempotencyHeader)),
	}
	if req.Contact != nil {
		contact := contactFromPayload(*req.Contact)
		cmd.Contact = &contact
	}

	result, err := h.submissions.Submit(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	setNoStoreHeaders(w)
	status := http.StatusCreated
	if result.Replayed {
		w.Header().Set(replayedHeader, "true")
		status = http.StatusOK
	}
	writeJSONResponse(w, status, result)
}

func (h *SessionHandlers) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.sessions != nil {
		return true
	}
	httpx.WriteError(r.Context(), w, httpx.NewError("session_service_unavailable", "session service is unavailable", http.StatusServiceUnavailable))
	return false
}

func (h *SessionHandlers) writeBuilder(w http.ResponseWriter, r *http.Request, view services.BuilderView, err error) {
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	writeJSONResponse(w, http.StatusOK, buildBuilderPayload(view, h.formatter))
}

func (h *SessionHandlers) writeQuote(w http.ResponseWriter, r *http.Request, view services.QuoteView, err error) {
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	writeJSONResponse(w, http.StatusOK, buildQuotePayload(view, h.formatter))
}

func (h *SessionHandlers) writePlan(w http.ResponseWriter, r *http.Request, summary domain.PlanSummary, err error) {
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	setNoStoreHeaders(w)
	writeJSONResponse(w, http.StatusOK, buildPlanPayload(summary, h.formatter))
}

func sessionIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "sessionID"))
}

func serviceTypeParam(r *http.Request) domain.ServiceType {
	return domain.ServiceType(strings.ToLower(strings.TrimSpace(chi.URLParam(r, "serviceType"))))
}

func contactFromPayload(p contactPayload) domain.Contact {
	return domain.Contact{
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Company: p.Company,
		Message: p.Message,
	}
}
