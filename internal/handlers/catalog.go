package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/finitefield/quote-configurator/internal/domain"
	"github.com/finitefield/quote-configurator/internal/platform/httpx"
)

// CatalogHandlers serves the read-only option catalog.
type CatalogHandlers struct {
	catalog *domain.Catalog
}

// NewCatalogHandlers constructs catalog handlers for cat.
func NewCatalogHandlers(cat *domain.Catalog) *CatalogHandlers {
	return &CatalogHandlers{catalog: cat}
}

// Routes wires the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/services", h.listServices)
	r.Get("/services/{serviceType}", h.getService)
	r.Get("/plans", h.listPlans)
}

func (h *CatalogHandlers) listServices(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	items := make([]servicePayload, 0, len(h.catalog.Services))
	for _, schema := range h.catalog.Services {
		items = append(items, buildServicePayload(schema, false))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"currency":    h.catalog.Currency,
		"services":    items,
		"bundleTiers": sortedBundleTiers(h.catalog.BundleTiers),
	})
}

func (h *CatalogHandlers) getService(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	serviceType := domain.ServiceType(strings.TrimSpace(chi.URLParam(r, "serviceType")))
	schema, ok := h.catalog.Service(serviceType)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("service_not_found", "service not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildServicePayload(schema, true))
}

func (h *CatalogHandlers) listPlans(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("catalog_unavailable", "catalog is unavailable", http.StatusServiceUnavailable))
		return
	}
	items := make([]planOfferingPayload, 0, len(h.catalog.Plans))
	for _, offering := range h.catalog.Plans {
		items = append(items, planOfferingPayload{
			ServiceID: offering.ServiceID,
			Label:     offering.Label,
			Tiers:     buildOptionPayloads(offering.Tiers),
			AddOns:    buildOptionPayloads(offering.AddOns),
		})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"currency":    h.catalog.Currency,
		"plans":       items,
		"bundleTiers": sortedBundleTiers(h.catalog.BundleTiers),
	})
}
