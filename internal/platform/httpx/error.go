package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/finitefield/quote-configurator/internal/platform/requestctx"
)

// Error is the JSON error envelope returned by the API. The request and trace ids are
// taken from the request context when the envelope is written.
type Error struct {
	Code    string
	Message string
	Status  int
	// Details names the inputs the error refers to, such as serviceType or optionId.
	Details map[string]string
}

// NewError constructs a new Error with the provided parameters.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// WithDetails merges details into the envelope. Blank values are dropped.
func (e Error) WithDetails(details map[string]string) Error {
	merged := make(map[string]string, len(e.Details)+len(details))
	maps.Copy(merged, e.Details)
	for key, value := range details {
		value = sanitize(value, 128)
		if key == "" || value == "" {
			continue
		}
		merged[key] = value
	}
	if len(merged) == 0 {
		merged = nil
	}
	e.Details = merged
	return e
}

type errorPayload struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Status    int               `json:"status"`
	RequestID string            `json:"request_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// WriteError writes the structured error as JSON to the provided response writer.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := errorPayload{
		Error:     err.Code,
		Message:   err.Message,
		Status:    status,
		RequestID: sanitize(middleware.GetReqID(ctx), 80),
		TraceID:   sanitize(requestctx.TraceID(ctx), 64),
		Details:   err.Details,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
