package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finitefield/quote-configurator/internal/platform/httpx"
	"github.com/finitefield/quote-configurator/internal/services"
)

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

// writeServiceError maps service sentinel errors onto the error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrPricingUnknownService):
		httpx.WriteError(ctx, w, httpx.NewError("service_not_found", err.Error(), http.StatusNotFound).
			WithDetails(routeDetails(ctx, "serviceType")))
	case errors.Is(err, services.ErrContactInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_contact", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrBuilderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest).
			WithDetails(inputDetails(ctx, err)))
	case errors.Is(err, services.ErrPlanInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest).
			WithDetails(routeDetails(ctx, "serviceId")))
	case errors.Is(err, services.ErrSessionInvalidInput),
		errors.Is(err, services.ErrSubmissionInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found", http.StatusNotFound).
			WithDetails(routeDetails(ctx, "sessionId")))
	case errors.Is(err, services.ErrSessionConflict):
		httpx.WriteError(ctx, w, httpx.NewError("session_conflict", "session was modified concurrently; retry", http.StatusConflict))
	case errors.Is(err, services.ErrSubmissionInProgress):
		httpx.WriteError(ctx, w, httpx.NewError("submission_in_progress", "a submission with this idempotency key is in progress", http.StatusConflict))
	case errors.Is(err, services.ErrSubmissionKeyConflict):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key was used for another session", http.StatusConflict))
	case errors.Is(err, services.ErrSubmissionFailed):
		httpx.WriteError(ctx, w, httpx.NewError("submission_failed", "failed to deliver submission; retry", http.StatusBadGateway))
	case errors.Is(err, services.ErrSessionUnavailable), errors.Is(err, services.ErrSubmissionUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "service temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}

// routeParams maps envelope detail keys onto chi URL parameter names.
var routeParams = map[string]string{
	"sessionId":   "sessionID",
	"serviceType": "serviceType",
	"serviceId":   "serviceID",
	"dimension":   "dimension",
	"featureId":   "featureID",
	"optionId":    "optionID",
}

func routeDetails(ctx context.Context, keys ...string) map[string]string {
	rctx := chi.RouteContext(ctx)
	if rctx == nil {
		return nil
	}
	details := make(map[string]string, len(keys))
	for _, key := range keys {
		details[key] = rctx.URLParam(routeParams[key])
	}
	return details
}

// inputDetails prefers the fields recorded by the builder and falls back to the route.
func inputDetails(ctx context.Context, err error) map[string]string {
	var inputErr *services.InputError
	if !errors.As(err, &inputErr) {
		return routeDetails(ctx, "serviceType", "dimension", "featureId", "optionId")
	}
	return map[string]string{
		"serviceType": string(inputErr.ServiceType),
		"dimension":   inputErr.Dimension,
		"featureId":   inputErr.FeatureID,
		"optionId":    inputErr.OptionID,
	}
}
